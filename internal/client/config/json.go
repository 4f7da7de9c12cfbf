package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/templesanathan/internal/flagx"
	"github.com/dmitrijs2005/templesanathan/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// accepted as strings like "5s" or integer nanoseconds.
type JsonConfig struct {
	BackendURL           string          `json:"backend_url"`
	BackendAnonKey       string          `json:"backend_anon_key"`
	DatabaseDSN          string          `json:"database_dsn"`
	LocalDBPath          string          `json:"local_db_path"`
	OnlineCheckInterval  *timex.Duration `json:"online_check_interval"`
	RequestTimeout       *timex.Duration `json:"request_timeout"`
	StorageBucket        string          `json:"storage_bucket"`
	StorageRegion        string          `json:"storage_region"`
	StorageEndpoint      string          `json:"storage_endpoint"`
	StorageAccessKey     string          `json:"storage_access_key"`
	StorageSecretKey     string          `json:"storage_secret_key"`
	StoragePublicBaseURL string          `json:"storage_public_base_url"`
	LogLevel             string          `json:"log_level"`
	Demo                 *bool           `json:"demo"`
}

// parseJson overlays cfg with the file named by -c/-config. Empty fields in
// the file keep the current value.
func parseJson(cfg *Config, args []string) {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.BackendURL, jc.BackendURL)
	setString(&cfg.BackendAnonKey, jc.BackendAnonKey)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.LocalDBPath, jc.LocalDBPath)
	setString(&cfg.StorageBucket, jc.StorageBucket)
	setString(&cfg.StorageRegion, jc.StorageRegion)
	setString(&cfg.StorageEndpoint, jc.StorageEndpoint)
	setString(&cfg.StorageAccessKey, jc.StorageAccessKey)
	setString(&cfg.StorageSecretKey, jc.StorageSecretKey)
	setString(&cfg.StoragePublicBaseURL, jc.StoragePublicBaseURL)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.Demo != nil {
		cfg.Demo = *jc.Demo
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
