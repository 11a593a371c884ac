package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/require"
)

const kvBody = `{
  "data": {
    "data": {"db_password": "s3cret", "port": 5},
    "metadata": {
      "created_time": "2025-01-01T00:00:00Z",
      "deletion_time": "",
      "destroyed": false,
      "version": 1
    }
  }
}`

func newTestClient(t *testing.T) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/builder" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		require.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(kvBody))
	}))
	t.Cleanup(srv.Close)

	cfg := vault.DefaultConfig()
	cfg.Address = srv.URL
	cfg.MaxRetries = 0
	c, err := newClient(cfg, "test-token")
	require.NoError(t, err)
	return c, &hits
}

func TestResolve_FetchesAndCaches(t *testing.T) {
	c, hits := newTestClient(t)
	ctx := context.Background()

	v, err := c.Resolve(ctx, "secret/builder#db_password")
	require.NoError(t, err)
	require.Equal(t, "s3cret", v)

	v, err = c.Resolve(ctx, "secret/builder#db_password")
	require.NoError(t, err)
	require.Equal(t, "s3cret", v)
	require.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestResolve_Errors(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "secret/builder")
	require.ErrorContains(t, err, "want <mount>/<path>#<key>")

	_, err = c.Resolve(ctx, "secret/builder#missing")
	require.ErrorContains(t, err, "not found")

	_, err = c.Resolve(ctx, "secret/builder#port")
	require.ErrorContains(t, err, "not a string")

	_, err = c.Resolve(ctx, "secret#key")
	require.ErrorContains(t, err, "has no mount")

	_, err = c.Resolve(ctx, "secret/other#key")
	require.Error(t, err)
}

func TestSplitMount(t *testing.T) {
	m, r := splitMount("kv/app/db")
	require.Equal(t, "kv", m)
	require.Equal(t, "app/db", r)
}
