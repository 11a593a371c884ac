// components/public/public.go
//
// Public Components – published sites, as JSON and as HTML.
//
// Context
// -------
// Two components share this package because they serve the same data under
// different prefixes:
//
//	GET /api/public/sites/{slug}?page=   resolver Result as JSON
//	GET /s/{slug}                        homepage HTML
//	GET /s/{slug}/{page}                 page HTML
//
// Neither requires a session.  Custom-domain requests reach the HTML routes
// through routing.HostRewrite; links are then rendered without the /s/slug
// prefix so visitors never see it.
//
// Notes
// -----
//   - Unknown sites, drafts, archived sites, and unknown pages all answer
//     404 with the same body.
//   - HTML responses carry an ETag derived from the published version, so
//     repeat visits revalidate cheaply.
//   - Oxford commas, two spaces after periods.
package public

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/component"
	"github.com/yanizio/sitebuilder/internal/httpx"
	pub "github.com/yanizio/sitebuilder/internal/public"
	"github.com/yanizio/sitebuilder/internal/render"
	"github.com/yanizio/sitebuilder/internal/routing"
)

// compile-time assertions
var (
	_ component.Component   = (*API)(nil)
	_ component.Initializer = (*API)(nil)
	_ component.Component   = (*Pages)(nil)
	_ component.Initializer = (*Pages)(nil)
)

// Resolver finds the current published version of a site.
type Resolver interface {
	Resolve(ctx context.Context, slug, pageSlug string) (*pub.Result, error)
}

// Renderer turns a published page into HTML.
type Renderer interface {
	Page(in render.Input) ([]byte, error)
}

// ─── JSON ──────────────────────────────────────────────────────────────────

// API serves published snapshots as JSON.
type API struct{ res Resolver }

func (a *API) Name() string   { return "public-api" }
func (a *API) Prefix() string { return "/api/public" }

func (a *API) Init(d component.Deps) error {
	a.res = d.Resolver
	return nil
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sites/{slug}", func(w http.ResponseWriter, r *http.Request) {
		res, err := a.res.Resolve(r.Context(), chi.URLParam(r, "slug"), r.URL.Query().Get("page"))
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, res)
	})
	return r
}

// ─── HTML ──────────────────────────────────────────────────────────────────

// Pages serves published sites as HTML.
type Pages struct {
	res Resolver
	rnd Renderer
}

func (p *Pages) Name() string   { return "public-pages" }
func (p *Pages) Prefix() string { return routing.PublicPrefix }

func (p *Pages) Init(d component.Deps) error {
	p.res = d.Resolver
	p.rnd = d.Renderer
	return nil
}

func (p *Pages) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{slug}", p.serve)
	r.Get("/{slug}/{page}", p.serve)
	return r
}

func (p *Pages) serve(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	res, err := p.res.Resolve(r.Context(), slug, chi.URLParam(r, "page"))
	if err != nil {
		htmlError(w, r, err)
		return
	}

	base, origin := routing.PublicPrefix+"/"+slug, "s"
	if _, custom := routing.CustomHost(r.Context()); custom {
		base, origin = "", "d"
	}

	etag := fmt.Sprintf(`"%s-%s-v%d-%s"`, origin, res.Slug, res.Version, res.Page.Slug)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	out, err := p.rnd.Page(render.Input{
		SiteSlug: res.Slug,
		SiteName: res.Site.Name,
		Settings: res.Site.Settings,
		Version:  res.Version,
		Pages:    res.Snapshot.Pages,
		Page:     res.Page,
		BasePath: base,
	})
	if err != nil {
		htmlError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(out); err != nil {
		zap.L().Debug("page write failed", zap.String("slug", slug), zap.Error(err))
	}
}

// htmlError answers with a plain status page.  Details stay in the log.
func htmlError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()
	if status >= 500 {
		zap.L().Error("public page", zap.String("path", r.URL.Path), zap.Error(err))
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, http.StatusText(status), status)
}

// Register components at package init.
func init() {
	component.Register(&API{})
	component.Register(&Pages{})
}
