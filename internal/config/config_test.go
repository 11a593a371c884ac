package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const baseYAML = `
http:
  listen_addr: "0.0.0.0:8080"
  platform_hosts: ["builder.example.com", "localhost"]
database:
  dsn: "app@tcp(127.0.0.1:3306)/builder?parseTime=true"
  password: "vault:secret/builder#db_password"
auth:
  jwt_secret: "0123456789abcdef0123"
resolver:
  ttl: "30s"
`

func writeRoot(t *testing.T, yaml string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf", "global.yaml"), []byte(yaml), 0o644))
	t.Setenv("SITEBUILDER_ROOT", dir)
}

type fakeSecrets map[string]string

func (f fakeSecrets) Resolve(_ context.Context, ref string) (string, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return "", errors.New("no such secret")
}

func TestLoad_LayersAndDefaults(t *testing.T) {
	writeRoot(t, baseYAML)
	t.Setenv("SITEBUILDER_HTTP__LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("SITEBUILDER_REDIS__ADDR", "redis.internal:6379")

	cfg, err := Load(context.Background(), fakeSecrets{"secret/builder#db_password": "s3cret"})
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9090", cfg.HTTP.ListenAddr)
	require.Equal(t, []string{"builder.example.com", "localhost"}, cfg.HTTP.PlatformHosts)
	require.Equal(t, "s3cret", cfg.Database.Password)
	require.Equal(t, 30*time.Second, cfg.Resolver.TTL)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)

	// Defaults.
	require.Equal(t, 15*time.Second, cfg.HTTP.WriteTimeout)
	require.Equal(t, defaultRedisChannel, cfg.Redis.Channel)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Hosting.Enabled())

	require.Same(t, cfg, Get())
	require.NotEmpty(t, cfg.Paths.Root)
}

func TestLoad_VaultRefWithoutResolver(t *testing.T) {
	writeRoot(t, baseYAML)
	_, err := Load(context.Background(), nil)
	require.ErrorContains(t, err, "database.password")
}

func TestLoad_ResolverFailure(t *testing.T) {
	writeRoot(t, baseYAML)
	_, err := Load(context.Background(), fakeSecrets{})
	require.ErrorContains(t, err, "no such secret")
}

func TestLoad_ValidationFails(t *testing.T) {
	writeRoot(t, `
http:
  listen_addr: "0.0.0.0:8080"
database:
  dsn: "app@tcp(127.0.0.1:3306)/builder"
auth:
  jwt_secret: "short"
`)
	_, err := Load(context.Background(), nil)
	require.ErrorContains(t, err, "JWTSecret")
}

func TestLoad_HostingNeedsProject(t *testing.T) {
	writeRoot(t, baseYAML+`
hosting:
  token: "tok"
`)
	_, err := Load(context.Background(), fakeSecrets{"secret/builder#db_password": "x"})
	require.ErrorContains(t, err, "ProjectID")
}

func TestDSNWithPassword(t *testing.T) {
	d := Database{DSN: "app@tcp(127.0.0.1:3306)/builder?parseTime=true"}
	dsn, err := d.DSNWithPassword()
	require.NoError(t, err)
	require.Equal(t, d.DSN, dsn)

	d.Password = "p@ss"
	dsn, err = d.DSNWithPassword()
	require.NoError(t, err)
	require.Contains(t, dsn, "app:p@ss@tcp(127.0.0.1:3306)/builder")
	require.Contains(t, dsn, "parseTime=true")
}
