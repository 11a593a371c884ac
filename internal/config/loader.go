// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `SITEBUILDER_`, where `__` maps to “.”
     (e.g., `SITEBUILDER_HTTP__LISTEN_ADDR → http.listen_addr`).

String values of the form `vault:<mount>/<path>#<key>` are then swapped
for the secret they name through a SecretResolver.  After merging, the tree
is unmarshalled into strongly-typed structs, defaults are applied, the
result is validated, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` calls `Load()` again with
the same resolver and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read, env overlay, secret refs.
  • ERROR spans – YAML parse, env overlay, secrets, unmarshal, validation.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • A `vault:` value with no resolver configured is a load error.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "SITEBUILDER_"

// VaultPrefix marks values resolved through a SecretResolver.
const VaultPrefix = "vault:"

// SecretResolver turns a "mount/path#key" reference into its value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type secretHolder struct{ r SecretResolver }

var (
	current  atomic.Pointer[Config]
	resolver atomic.Pointer[secretHolder] // used by Reload
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves SITEBUILDER_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("SITEBUILDER_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.  secrets may be nil when no value uses the vault: prefix.
func Load(ctx context.Context, secrets SecretResolver) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: SITEBUILDER_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	resolver.Store(&secretHolder{r: secrets})
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"platform_hosts", cfg.HTTP.PlatformHosts,
		"redis", cfg.Redis.Addr != "",
		"hosting", cfg.Hosting.Enabled(),
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets replaces every vault: string in k.  Keys are visited in
// sorted order so failures are reported deterministically.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets SecretResolver) error {
	all := k.All()
	keys := make([]string, 0, len(all))
	for key, v := range all {
		if s, ok := v.(string); ok && strings.HasPrefix(s, VaultPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		ref := strings.TrimPrefix(k.String(key), VaultPrefix)
		if secrets == nil {
			return fmt.Errorf("config %s: %q needs a secret resolver", key, VaultPrefix+ref)
		}
		val, err := secrets.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return err
		}
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// DSNWithPassword returns the DSN with Password injected, or the DSN as-is
// when no password is configured.
func (d Database) DSNWithPassword() (string, error) {
	if d.Password == "" {
		return d.DSN, nil
	}
	mc, err := mysql.ParseDSN(d.DSN)
	if err != nil {
		return "", fmt.Errorf("database dsn: %w", err)
	}
	mc.Passwd = d.Password
	return mc.FormatDSN(), nil
}

func Get() *Config { return current.Load() }

func Reload(ctx context.Context) error {
	var sr SecretResolver
	if h := resolver.Load(); h != nil {
		sr = h.r
	}
	_, err := Load(ctx, sr)
	return err
}
