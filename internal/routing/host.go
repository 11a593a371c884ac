// internal/routing/host.go
//
// Custom-domain rewrite middleware (import-cycle safe).
//
// Context
// -------
// Published sites are served under /s/{slug}/… on the platform host, and
// under / on any verified custom domain.  HostRewrite maps the second form
// onto the first so a single set of chi routes serves both.  A lightweight
// interface, HostResolver, keeps this package independent of *public*.
//
// Workflow
// --------
//  1. Requests for a platform host (or localhost) pass through untouched.
//  2. Any other host is looked up through HostResolver.SlugForDomain.
//  3. On a hit the path is rewritten to BuildPath(prefix+"/"+slug, path).
//     A miss answers 404 without exposing which hosts exist.
//  4. The original host is kept in the context; see CustomHost.
//
// Notes
// -----
//   - Hosts are lower-cased and the :port suffix stripped before lookup.
//   - Lookup errors other than not-found answer 502 and are logged.
//   - Oxford commas, two spaces after periods.
package routing

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// PublicPrefix is the path prefix public site pages are mounted under.
const PublicPrefix = "/s"

// HostResolver maps a custom domain to the slug of the site it serves.
type HostResolver interface {
	SlugForDomain(ctx context.Context, domain string) (string, error)
}

// HostRewrite returns a chi-compatible middleware that rewrites custom-domain
// requests onto PublicPrefix.  platformHosts lists the hosts that serve the
// API and /s/ paths directly.
func HostRewrite(res HostResolver, platformHosts ...string) func(http.Handler) http.Handler {
	own := make(map[string]struct{}, len(platformHosts)+1)
	own["localhost"] = struct{}{}
	for _, h := range platformHosts {
		own[NormalizeHost(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := NormalizeHost(r.Host)
			if _, ok := own[host]; ok || host == "" {
				next.ServeHTTP(w, r)
				return
			}

			slug, err := res.SlugForDomain(r.Context(), host)
			if err != nil {
				if apperr.IsKind(err, apperr.KindNotFound) {
					http.NotFound(w, r)
					return
				}
				zap.L().Warn("custom domain lookup failed",
					zap.String("host", host), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
				return
			}

			original := r.URL.Path
			target := BuildPath(PublicPrefix+"/"+slug, original)
			r.URL.Path = target
			r.URL.RawPath = ""
			r.RequestURI = target
			if r.URL.RawQuery != "" {
				r.RequestURI += "?" + r.URL.RawQuery
			}
			zap.L().Debug("custom domain rewrite",
				zap.String("host", host),
				zap.String("from", original),
				zap.String("to", target))

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), customHostKey{}, host)))
		})
	}
}

type customHostKey struct{}

// CustomHost returns the custom domain a request was rewritten from.  ok is
// false for requests that arrived on a platform host.
func CustomHost(ctx context.Context) (host string, ok bool) {
	host, ok = ctx.Value(customHostKey{}).(string)
	return host, ok
}

// NormalizeHost lower-cases h and strips any :port suffix and trailing dot.
func NormalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if strings.HasPrefix(h, "[") {
		if i := strings.IndexByte(h, ']'); i != -1 {
			return h[1:i]
		}
	}
	if i := strings.LastIndexByte(h, ':'); i != -1 {
		h = h[:i]
	}
	return strings.TrimSuffix(h, ".")
}
