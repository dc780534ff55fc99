// Package config loads runtime configuration for the daybook CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the sync server
//	-i int      online status check interval (seconds)
//	-k string   access token
//	-f string   local database file
//	-v          verbose logging
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "access_token": "eyJ...",
//	  "database_path": "/home/me/.daybook.db",
//	  "online_check_interval": "3s",
//	  "debounce_interval": "2s",
//	  "idle_sync_delay": "4s",
//	  "index_refresh_cooldown": "2s",
//	  "store_retry_attempts": 3,
//	  "store_timeout": "10s"
//	}
//
// Config.Validate checks the result with go-playground/validator tags.
package config
