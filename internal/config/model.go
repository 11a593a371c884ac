// internal/config/model.go
//
// Typed configuration model for the site builder.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                               – dotenv values,
//   • `conf/global.yaml`                            – primary static file,
//   • `SITEBUILDER_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • Durations accept Go syntax ("1200ms", "10m").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.  PlatformHosts are the hosts that serve
// the API and /s/ paths directly; every other host is treated as a
// potential custom domain.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	PlatformHosts   []string      `koanf:"platform_hosts"   validate:"dive,hostname"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

//
// Database section
//

// Database holds the DSN and its secret.
//
// The DSN is kept in YAML so operators can tweak host, port, or flags
// without touching Vault.  The password is stored in Vault and injected at
// runtime, keeping credentials out of flat files and git history.
type Database struct {
	DSN          string `koanf:"dsn"            validate:"required"`
	Password     string `koanf:"password"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gte=0"`
	Migrate      bool   `koanf:"migrate"`
}

//
// Auth section
//

// Auth configures bearer-token verification.
type Auth struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=16"`
	Issuer    string `koanf:"issuer"`
}

//
// Autosave section
//

// Autosave tunes the per-site coordinators.
type Autosave struct {
	Debounce      time.Duration `koanf:"debounce"       validate:"gte=0"`
	WriteTimeout  time.Duration `koanf:"write_timeout"  validate:"gte=0"`
	MaxParallel   int           `koanf:"max_parallel"   validate:"gte=0"`
	IdleTTL       time.Duration `koanf:"idle_ttl"       validate:"gte=0"`
	EvictInterval time.Duration `koanf:"evict_interval" validate:"gte=0"`
}

//
// Resolver section
//

// Resolver tunes the public site cache and the rendered-page LRU.
type Resolver struct {
	TTL             time.Duration `koanf:"ttl"               validate:"gte=0"`
	EvictInterval   time.Duration `koanf:"evict_interval"    validate:"gte=0"`
	RenderCacheSize int           `koanf:"render_cache_size" validate:"gte=0"`
}

//
// Redis section
//

// Redis carries publish events between instances.  An empty Addr keeps
// invalidation in-process.
type Redis struct {
	Addr     string `koanf:"addr"     validate:"omitempty,hostname_port"`
	Password string `koanf:"password"`
	Channel  string `koanf:"channel"`
}

//
// Hosting section
//

// Hosting configures the custom-domain provider.  An empty Token disables
// the domains endpoints.
type Hosting struct {
	BaseURL   string        `koanf:"base_url"   validate:"omitempty,url"`
	Token     string        `koanf:"token"`
	TeamID    string        `koanf:"team_id"`
	ProjectID string        `koanf:"project_id" validate:"required_with=Token"`
	Timeout   time.Duration `koanf:"timeout"    validate:"gte=0"`
	RetryMax  int           `koanf:"retry_max"  validate:"gte=0"`
}

// Enabled reports whether a hosting provider is configured.
func (h Hosting) Enabled() bool { return h.Token != "" }

//
// Log section
//

// Log selects the level of the file and console cores.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or SITEBUILDER_ROOT override) so later code
// can build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Auth     Auth     `koanf:"auth"`
	Autosave Autosave `koanf:"autosave"`
	Resolver Resolver `koanf:"resolver"`
	Redis    Redis    `koanf:"redis"`
	Hosting  Hosting  `koanf:"hosting"`
	Log      Log      `koanf:"log"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
