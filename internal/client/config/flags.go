package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-u string   backend base URL
//	-k string   backend anon key
//	-d string   Postgres DSN for direct table access
//	-db string  local preferences database path
//	-i int      online check interval (in seconds)
//	-l string   log level
//	-demo       run against the in-process demo backend
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-u", "-k", "-d", "-db", "-i", "-l"}, "-demo")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&cfg.BackendURL, "u", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.BackendAnonKey, "k", cfg.BackendAnonKey, "backend anon key")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "postgres DSN")
	fs.StringVar(&cfg.LocalDBPath, "db", cfg.LocalDBPath, "local database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.Demo, "demo", cfg.Demo, "use the in-process demo backend")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		}
	})
}
