package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the variables understood by the client. Unset variables
// leave the pointer nil so they do not clobber earlier sources.
type envConfig struct {
	BackendURL           *string        `env:"SUPABASE_URL"`
	BackendAnonKey       *string        `env:"SUPABASE_ANON_KEY"`
	DatabaseDSN          *string        `env:"TEMPLE_DATABASE_DSN"`
	LocalDBPath          *string        `env:"TEMPLE_LOCAL_DB"`
	OnlineCheckInterval  *time.Duration `env:"TEMPLE_ONLINE_CHECK_INTERVAL"`
	RequestTimeout       *time.Duration `env:"TEMPLE_REQUEST_TIMEOUT"`
	StorageBucket        *string        `env:"TEMPLE_STORAGE_BUCKET"`
	StorageRegion        *string        `env:"TEMPLE_STORAGE_REGION"`
	StorageEndpoint      *string        `env:"TEMPLE_STORAGE_ENDPOINT"`
	StorageAccessKey     *string        `env:"TEMPLE_STORAGE_ACCESS_KEY"`
	StorageSecretKey     *string        `env:"TEMPLE_STORAGE_SECRET_KEY"`
	StoragePublicBaseURL *string        `env:"TEMPLE_STORAGE_PUBLIC_URL"`
	LogLevel             *string        `env:"TEMPLE_LOG_LEVEL"`
	Demo                 *bool          `env:"TEMPLE_DEMO"`
}

func parseEnv(cfg *Config) {
	ec, err := env.ParseAs[envConfig]()
	if err != nil {
		panic(err)
	}

	for dst, src := range map[*string]*string{
		&cfg.BackendURL:           ec.BackendURL,
		&cfg.BackendAnonKey:       ec.BackendAnonKey,
		&cfg.DatabaseDSN:          ec.DatabaseDSN,
		&cfg.LocalDBPath:          ec.LocalDBPath,
		&cfg.StorageBucket:        ec.StorageBucket,
		&cfg.StorageRegion:        ec.StorageRegion,
		&cfg.StorageEndpoint:      ec.StorageEndpoint,
		&cfg.StorageAccessKey:     ec.StorageAccessKey,
		&cfg.StorageSecretKey:     ec.StorageSecretKey,
		&cfg.StoragePublicBaseURL: ec.StoragePublicBaseURL,
		&cfg.LogLevel:             ec.LogLevel,
	} {
		if src != nil {
			*dst = *src
		}
	}
	if ec.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = *ec.OnlineCheckInterval
	}
	if ec.RequestTimeout != nil {
		cfg.RequestTimeout = *ec.RequestTimeout
	}
	if ec.Demo != nil {
		cfg.Demo = *ec.Demo
	}
}
