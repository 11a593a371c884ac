// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/yanizio/sitebuilder/internal/routing"
)

// HostCheck reports whether host is served by this deployment.
type HostCheck func(ctx context.Context, host string) bool

// ForceHTTPS returns a wrapper that issues a 308 Permanent Redirect to the
// HTTPS version of the same URL when the request is plain HTTP, the host is
// not localhost, and known confirms the host.  Requests that arrived over
// TLS, directly or through a proxy setting X-Forwarded-Proto, pass through.
// Unknown hosts keep the normal flow and most likely 404 later.
func ForceHTTPS(known HostCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := routing.NormalizeHost(r.Host)
			if secure(r) || host == "localhost" || host == "" {
				next.ServeHTTP(w, r)
				return
			}
			if known(r.Context(), host) {
				target := "https://" + r.Host + r.URL.RequestURI()
				http.Redirect(w, r, target, http.StatusPermanentRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// KnownHosts builds a HostCheck from the platform hosts plus an optional
// custom-domain lookup.
func KnownHosts(lookup routing.HostResolver, platform ...string) HostCheck {
	own := make(map[string]struct{}, len(platform))
	for _, h := range platform {
		own[routing.NormalizeHost(h)] = struct{}{}
	}
	return func(ctx context.Context, host string) bool {
		if _, ok := own[host]; ok {
			return true
		}
		if lookup == nil {
			return false
		}
		_, err := lookup.SlugForDomain(ctx, host)
		return err == nil
	}
}
