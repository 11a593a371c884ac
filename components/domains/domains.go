// components/domains/domains.go
//
// Domains Component – custom-domain management proxy.
//
// Context
// -------
// The dashboard connects a site to a custom domain through three calls,
// each taking `{domain, siteId}`:
//
//	POST /domains/add     attach the domain to the hosting project
//	POST /domains/verify  re-check ownership and DNS
//	POST /domains/remove  detach the domain
//
// A bearer token is required and the caller must be an owner or admin of
// the tenant that owns siteId.  Answers are the hosting.Status JSON
// (`verified`, `configured`, `misconfigured`) or the usual `{error}` body.
//
// Notes
// -----
//   - When no hosting provider is configured every call answers 503.
//   - Oxford commas, two spaces after periods.
package domains

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yanizio/sitebuilder/internal/acl"
	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/auth"
	"github.com/yanizio/sitebuilder/internal/component"
	"github.com/yanizio/sitebuilder/internal/httpx"
	"github.com/yanizio/sitebuilder/internal/hosting"
)

// compile-time assertions
var (
	_ component.Component   = (*Comp)(nil)
	_ component.Initializer = (*Comp)(nil)
)

// Service is the domain lifecycle the component proxies to.
type Service interface {
	Add(ctx context.Context, siteID, tenantID, domain string) (*hosting.Status, error)
	Verify(ctx context.Context, siteID, tenantID, domain string) (*hosting.Status, error)
	Remove(ctx context.Context, siteID, domain string) (*hosting.Status, error)
}

// Comp implements component.Component.
type Comp struct {
	verifier *auth.Verifier
	roles    acl.SiteRoles
	svc      Service
}

func (c *Comp) Name() string   { return "domains" }
func (c *Comp) Prefix() string { return "/domains" }

func (c *Comp) Init(d component.Deps) error {
	c.verifier = d.Auth
	c.roles = d.ACL
	if d.Domains != nil {
		c.svc = d.Domains
	}
	return nil
}

func (c *Comp) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireUser(c.verifier))

	r.Post("/add", c.handle(func(ctx context.Context, a *acl.Access, d string) (*hosting.Status, error) {
		return c.svc.Add(ctx, a.SiteID, a.TenantID, d)
	}))
	r.Post("/verify", c.handle(func(ctx context.Context, a *acl.Access, d string) (*hosting.Status, error) {
		return c.svc.Verify(ctx, a.SiteID, a.TenantID, d)
	}))
	r.Post("/remove", c.handle(func(ctx context.Context, a *acl.Access, d string) (*hosting.Status, error) {
		return c.svc.Remove(ctx, a.SiteID, d)
	}))
	return r
}

// Register component at package init.
func init() {
	component.Register(&Comp{})
}

type request struct {
	Domain string `json:"domain" validate:"required,max=253"`
	SiteID string `json:"siteId" validate:"required"`
}

var validate = validator.New()

type action func(ctx context.Context, a *acl.Access, domain string) (*hosting.Status, error)

// handle decodes the request, enforces the admin role on siteId, and runs fn.
func (c *Comp) handle(fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "domains.handle"
		if c.svc == nil {
			w.Header().Set("Retry-After", "3600")
			httpx.JSON(w, http.StatusServiceUnavailable, httpx.ErrorBody{Error: httpx.ErrorDetail{
				Kind: apperr.KindServer, Message: "Custom domains are not available.",
			}})
			return
		}

		var req request
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, r, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.Error(w, r, apperr.New(apperr.KindValidation, op, "domain and siteId are required."))
			return
		}

		a, err := acl.Check(r.Context(), c.roles, auth.MustUser(r.Context()), req.SiteID, acl.Admins)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}

		st, err := fn(r.Context(), a, req.Domain)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, st)
	}
}
