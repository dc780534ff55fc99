package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/daybook/internal/flagx"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Pointer and zero values
// leave the current setting untouched.
type JsonConfig struct {
	ServerEndpointAddr   *string        `json:"server_endpoint_addr"`
	AccessToken          string         `json:"access_token"`
	DatabasePath         string         `json:"database_path"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	DebounceInterval     timex.Duration `json:"debounce_interval"`
	IdleSyncDelay        timex.Duration `json:"idle_sync_delay"`
	IndexRefreshCooldown timex.Duration `json:"index_refresh_cooldown"`
	StoreRetryAttempts   uint64         `json:"store_retry_attempts"`
	StoreTimeout         timex.Duration `json:"store_timeout"`
	Verbose              bool           `json:"verbose"`
}

// parseJson overlays Config with values loaded from a JSON file named by
// the -c or -config flag. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	overlay(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	overlay(&cfg.DebounceInterval, jc.DebounceInterval)
	overlay(&cfg.IdleSyncDelay, jc.IdleSyncDelay)
	overlay(&cfg.IndexRefreshCooldown, jc.IndexRefreshCooldown)
	overlay(&cfg.StoreTimeout, jc.StoreTimeout)
	if jc.StoreRetryAttempts != 0 {
		cfg.StoreRetryAttempts = jc.StoreRetryAttempts
	}
	cfg.Verbose = cfg.Verbose || jc.Verbose
}

func overlay(dst *time.Duration, d timex.Duration) {
	if d.Duration != 0 {
		*dst = d.Duration
	}
}
