package database

import (
	"testing"

	"finledger/internal/config"
)

func TestConfigURLs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantDSN string
		wantURL string
	}{
		{
			name: "plain",
			cfg: config.Config{DBHost: "db", DBPort: "5433", DBUser: "ledger", DBPassword: "secret",
				DBName: "books", DBSSLMode: "require"},
			wantDSN: "host=db port=5433 user=ledger password=secret dbname=books sslmode=require",
			wantURL: "postgres://ledger:secret@db:5433/books?sslmode=require",
		},
		{
			name: "special characters",
			cfg: config.Config{DBHost: "db", DBPort: "5432", DBUser: "ledger", DBPassword: "p@ss/w rd's",
				DBName: "books", DBSSLMode: "disable"},
			wantDSN: `host=db port=5432 user=ledger password='p@ss/w rd\'s' dbname=books sslmode=disable`,
			wantURL: "postgres://ledger:p%40ss%2Fw%20rd%27s@db:5432/books?sslmode=disable",
		},
		{
			name: "empty password",
			cfg: config.Config{DBHost: "localhost", DBPort: "5432", DBUser: "ledger",
				DBName: "books", DBSSLMode: "disable"},
			wantDSN: "host=localhost port=5432 user=ledger password='' dbname=books sslmode=disable",
			wantURL: "postgres://ledger:@localhost:5432/books?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(&tt.cfg)
			if got := cfg.DSN(); got != tt.wantDSN {
				t.Errorf("DSN: expected %q, got %q", tt.wantDSN, got)
			}
			if got := cfg.MigrateURL(); got != tt.wantURL {
				t.Errorf("MigrateURL: expected %q, got %q", tt.wantURL, got)
			}
		})
	}
}

func TestNewConfigPool(t *testing.T) {
	cfg := NewConfig(&config.Config{DBMaxOpenConns: 25, DBMaxIdleConns: 5})
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 {
		t.Errorf("unexpected pool settings: open=%d idle=%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
}
