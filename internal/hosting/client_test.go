package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", TeamID: "team_1", ProjectID: "prj_1", RetryMax: 2})
	require.NoError(t, err)
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = 5 * time.Millisecond
	return c, srv
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{ProjectID: "p"})
	require.Error(t, err)
	_, err = NewClient(Config{Token: "t"})
	require.Error(t, err)
}

func TestAddDomain_SendsRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v10/projects/prj_1/domains", r.URL.Path)
		require.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "www.acme.test", body["name"])

		_, _ = w.Write([]byte(`{"name":"www.acme.test","apexName":"acme.test","verified":false,
			"verification":[{"type":"TXT","domain":"_vercel.acme.test","value":"vc=1","reason":"pending"}]}`))
	})

	pd, err := c.AddDomain(context.Background(), "www.acme.test")
	require.NoError(t, err)
	require.False(t, pd.Verified)
	require.Equal(t, "acme.test", pd.ApexName)
	require.Len(t, pd.Verification, 1)
}

func TestVerifyRemoveConfig_Paths(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /v9/projects/prj_1/domains/www.acme.test/verify":
			_, _ = w.Write([]byte(`{"name":"www.acme.test","verified":true}`))
		case "DELETE /v9/projects/prj_1/domains/www.acme.test":
			_, _ = w.Write([]byte(`{}`))
		case "GET /v6/domains/www.acme.test/config":
			_, _ = w.Write([]byte(`{"misconfigured":true}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()

	pd, err := c.VerifyDomain(ctx, "www.acme.test")
	require.NoError(t, err)
	require.True(t, pd.Verified)

	require.NoError(t, c.RemoveDomain(ctx, "www.acme.test"))

	cfg, err := c.Config(ctx, "www.acme.test")
	require.NoError(t, err)
	require.True(t, cfg.Misconfigured)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"misconfigured":false}`))
	})

	cfg, err := c.Config(context.Background(), "acme.test")
	require.NoError(t, err)
	require.False(t, cfg.Misconfigured)
	require.EqualValues(t, 3, calls.Load())
}

func TestDo_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		status int
		kind   apperr.Kind
	}{
		{http.StatusBadRequest, apperr.KindValidation},
		{http.StatusUnauthorized, apperr.KindAuth},
		{http.StatusForbidden, apperr.KindForbidden},
		{http.StatusNotFound, apperr.KindNotFound},
		{http.StatusConflict, apperr.KindConflict},
		{http.StatusInternalServerError, apperr.KindServer},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"code":"x","message":"Provider says no."}}`))
		})
		c.http.RetryMax = 0

		_, err := c.AddDomain(context.Background(), "acme.test")
		require.True(t, apperr.IsKind(err, tc.kind), "status %d gave %s", tc.status, apperr.KindOf(err))
		if tc.kind == apperr.KindValidation || tc.kind == apperr.KindConflict {
			require.Equal(t, "Provider says no.", apperr.UserMessage(err))
		}
	}
}

func TestDo_TransportFailureIsNetwork(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	c.http.RetryMax = 0

	_, err := c.Config(context.Background(), "acme.test")
	require.True(t, apperr.IsKind(err, apperr.KindNetwork))
	require.True(t, apperr.IsRetryable(err))
}
