package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the daybook CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the sync server. Empty runs against
//     an in-process remote, which is useful for trying the CLI out.
//   - AccessToken: JWT issued by the server's token command.
//   - DatabasePath: location of the local SQLite store.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DebounceInterval / IdleSyncDelay: sync scheduling windows.
//   - IndexRefreshCooldown: minimum time between remote index refreshes.
//   - StoreRetryAttempts / StoreTimeout: local store retry policy.
type Config struct {
	ServerEndpointAddr   string        `validate:"omitempty,hostname_port"`
	AccessToken          string
	DatabasePath         string        `validate:"required"`
	OnlineCheckInterval  time.Duration `validate:"gt=0"`
	DebounceInterval     time.Duration `validate:"gt=0"`
	IdleSyncDelay        time.Duration `validate:"gt=0"`
	IndexRefreshCooldown time.Duration `validate:"gte=0"`
	StoreRetryAttempts   uint64        `validate:"min=1,max=10"`
	StoreTimeout         time.Duration `validate:"gt=0"`
	Verbose              bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "daybook.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.DebounceInterval = 2000 * time.Millisecond
	c.IdleSyncDelay = 4000 * time.Millisecond
	c.IndexRefreshCooldown = 2 * time.Second
	c.StoreRetryAttempts = 3
	c.StoreTimeout = 10 * time.Second
}

// Validate checks the struct tags of c.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
