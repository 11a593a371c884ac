// internal/config/validator.go
//
// Defaults and validation.
//
// Context
// -------
// `internal/config/loader.go` calls `applyDefaults` and then
// `validateStruct` immediately after it unmarshals the merged Koanf tree
// into a `Config` instance.  Any tag mismatch or validation error aborts
// startup, ensuring the binary never runs with partial, malformed, or
// missing configuration.
//
// Zero-valued tunables are filled here so YAML may stay short.  Autosave
// knobs are left at zero on purpose; the autosave package applies its own
// defaults.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.
//   • Section dividers use the simple comment style requested.

package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// defaults
//

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultMaxOpenConns    = 15
	defaultResolverTTL     = time.Minute
	defaultEvictInterval   = 5 * time.Minute
	defaultRedisChannel    = "sitebuilder:publish"
	defaultHostingTimeout  = 10 * time.Second
	defaultHostingRetries  = 3
	defaultLogLevel        = "info"
)

func applyDefaults(c *Config) {
	setDur(&c.HTTP.ReadTimeout, defaultReadTimeout)
	setDur(&c.HTTP.WriteTimeout, defaultWriteTimeout)
	setDur(&c.HTTP.IdleTimeout, defaultIdleTimeout)
	setDur(&c.HTTP.ShutdownTimeout, defaultShutdownTimeout)
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}
	setDur(&c.Autosave.EvictInterval, defaultEvictInterval)
	setDur(&c.Resolver.TTL, defaultResolverTTL)
	setDur(&c.Resolver.EvictInterval, defaultEvictInterval)
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}
	setDur(&c.Hosting.Timeout, defaultHostingTimeout)
	if c.Hosting.RetryMax == 0 {
		c.Hosting.RetryMax = defaultHostingRetries
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

func setDur(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
