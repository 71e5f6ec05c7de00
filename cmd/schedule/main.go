// Command schedule prints amortization schedules offline, without a
// database or a running server.
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
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&simulateCmd{}, "")
	commander.Register(&rateCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
