// internal/acl/middleware.go
//
// Chi middleware helpers that enforce site-scoped roles.

package acl

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/auth"
	"github.com/yanizio/sitebuilder/internal/httpx"
)

// SiteRoles is the lookup RequireSiteRole needs.
type SiteRoles interface {
	SiteRole(ctx context.Context, userID, siteID string) (*Access, error)
}

type accessKey struct{}

// WithAccess stores a resolved Access in ctx.
func WithAccess(ctx context.Context, a *Access) context.Context {
	return context.WithValue(ctx, accessKey{}, a)
}

// FromContext returns the Access placed by RequireSiteRole, or nil.
func FromContext(ctx context.Context) *Access {
	a, _ := ctx.Value(accessKey{}).(*Access)
	return a
}

var (
	errSignIn    = apperr.New(apperr.KindAuth, "acl", "Sign in to continue.")
	errForbidden = apperr.New(apperr.KindForbidden, "acl", "")
)

// Check resolves userID's access to siteID and enforces roles.  Sites the
// user cannot see at all are FORBIDDEN rather than NOT_FOUND so callers
// cannot probe for site ids.
func Check(ctx context.Context, store SiteRoles, userID, siteID string, roles []string) (*Access, error) {
	a, err := store.SiteRole(ctx, userID, siteID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, errForbidden
		}
		return nil, err
	}
	if !Allowed(a.Role, roles) {
		return nil, errForbidden
	}
	return a, nil
}

// RequireSiteRole ensures the current user holds ANY of roles in the tenant
// owning the site named by the chi URL param.  It must run after
// auth.RequireUser.
func RequireSiteRole(store SiteRoles, param string, roles ...string) func(http.Handler) http.Handler {
	if len(roles) == 0 {
		panic("acl.RequireSiteRole: at least one role name must be supplied")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserID(r.Context())
			if !ok {
				httpx.Error(w, r, errSignIn)
				return
			}

			a, err := Check(r.Context(), store, uid, chi.URLParam(r, param), roles)
			if err != nil {
				if !apperr.IsKind(err, apperr.KindForbidden) {
					zap.L().Error("acl site role", zap.Error(err))
				}
				httpx.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccess(r.Context(), a)))
		})
	}
}
