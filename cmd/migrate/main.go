// Command migrate applies and rolls back the ledger schema migrations.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"finledger/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(&upCmd{}, "schema")
	commander.Register(&downCmd{}, "schema")
	commander.Register(&versionCmd{}, "schema")
	commander.Register(&forceCmd{}, "recovery")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
