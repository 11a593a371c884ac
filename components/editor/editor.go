// components/editor/editor.go
//
// Editor API – the authenticated surface the site builder talks to.
//
// Context
// -------
// Every route lives under /api/sites and requires a bearer token.  Routes
// scoped to one site additionally run acl.RequireSiteRole, which resolves
// the owning tenant once and leaves an *acl.Access in the context.  The
// handlers then check that every page or section id in the request
// belongs to that site before touching it.
//
// Routes
// ------
//
//	GET    /                              sites of ?tenantId=
//	POST   /                              create a site
//	GET    /{siteID}                      site record
//	PATCH  /{siteID}                      partial site update
//	PUT    /{siteID}/status               draft or archived (admins)
//	GET    /{siteID}/pages                pages in display order
//	POST   /{siteID}/pages                create a page
//	PUT    /{siteID}/pages/order          bulk sort_order
//	PATCH  /{siteID}/pages/{pageID}       partial page update
//	DELETE /{siteID}/pages/{pageID}       delete (never the homepage)
//	POST   /{siteID}/pages/{pageID}/homepage
//	GET    /{siteID}/pages/{pageID}/sections
//	POST   /{siteID}/pages/{pageID}/sections
//	PUT    /{siteID}/pages/{pageID}/sections/order   atomic reorder
//	PATCH  /{siteID}/sections/{sectionID}
//	DELETE /{siteID}/sections/{sectionID}
//	POST   /{siteID}/sections/{sectionID}/duplicate
//	GET    /{siteID}/autosave             saving / lastSaved / pending
//	POST   /{siteID}/autosave             queue partial edits
//	POST   /{siteID}/autosave/flush       flush now
//	GET    /{siteID}/versions             publish history
//	POST   /{siteID}/publish              flush, then publish (admins)
//	POST   /{siteID}/rollback             {version} (admins)
//
// Notes
// -----
//   - Ids that exist but belong to another site answer 404, same as ids
//     that do not exist.
//   - Oxford commas, two spaces after periods.
package editor

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/sitebuilder/internal/acl"
	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/auth"
	"github.com/yanizio/sitebuilder/internal/autosave"
	"github.com/yanizio/sitebuilder/internal/component"
	"github.com/yanizio/sitebuilder/internal/database"
	"github.com/yanizio/sitebuilder/internal/page"
	"github.com/yanizio/sitebuilder/internal/publish"
	"github.com/yanizio/sitebuilder/internal/section"
	"github.com/yanizio/sitebuilder/internal/site"
)

// compile-time assertions
var (
	_ component.Component   = (*Comp)(nil)
	_ component.Initializer = (*Comp)(nil)
)

type SiteStore interface {
	Get(ctx context.Context, id string) (*site.Site, error)
	ListByTenant(ctx context.Context, tenantID string) ([]site.Site, error)
	Create(ctx context.Context, rec *site.Site) error
	Update(ctx context.Context, id string, fields map[string]any) error
	SetStatus(ctx context.Context, id string, st site.Status) error
}

type PageStore interface {
	ListBySite(ctx context.Context, siteID string) ([]page.Page, error)
	Get(ctx context.Context, id string) (*page.Page, error)
	Create(ctx context.Context, p *page.Page, appendLast bool) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	UpdateOrder(ctx context.Context, items []database.OrderItem) error
	SetHomepage(ctx context.Context, siteID, pageID string) error
}

type SectionStore interface {
	ListByPage(ctx context.Context, pageID string) ([]section.Section, error)
	Get(ctx context.Context, id string) (*section.Section, error)
	NextSortOrder(ctx context.Context, pageID string) (int, error)
	Create(ctx context.Context, sec *section.Section) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, pageID string, orderedIDs []string) error
	Duplicate(ctx context.Context, id, tenantID string) (*section.Section, error)
}

type Publisher interface {
	FlushAndPublish(ctx context.Context, siteID, tenantID string) (*publish.Publish, error)
	Rollback(ctx context.Context, siteID string, target int) (*publish.Publish, error)
	ListBySite(ctx context.Context, siteID string) ([]publish.Publish, error)
}

type Autosaver interface {
	Queue(siteID string, kind autosave.Kind, id string, partial map[string]any) error
	FlushSite(ctx context.Context, siteID string) error
	Lookup(siteID string) (*autosave.Coordinator, bool)
}

// Roles answers tenant- and site-scoped membership questions.
type Roles interface {
	acl.SiteRoles
	TenantRole(ctx context.Context, userID, tenantID string) (string, error)
}

// Comp implements component.Component.
type Comp struct {
	verifier  *auth.Verifier
	roles     Roles
	sites     SiteStore
	pages     PageStore
	sections  SectionStore
	publisher Publisher
	autosave  Autosaver
}

func (c *Comp) Name() string   { return "editor" }
func (c *Comp) Prefix() string { return "/api/sites" }

func (c *Comp) Init(d component.Deps) error {
	c.verifier = d.Auth
	c.roles = d.ACL
	c.sites = d.Sites
	c.pages = d.Pages
	c.sections = d.Sections
	c.publisher = d.Publisher
	c.autosave = d.Autosave
	return nil
}

func (c *Comp) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireUser(c.verifier))

	r.Get("/", c.listSites)
	r.Post("/", c.createSite)

	r.Route("/{siteID}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(acl.RequireSiteRole(c.roles, "siteID", acl.Editors...))

			r.Get("/", c.getSite)
			r.Patch("/", c.updateSite)

			r.Get("/pages", c.listPages)
			r.Post("/pages", c.createPage)
			r.Put("/pages/order", c.orderPages)
			r.Patch("/pages/{pageID}", c.updatePage)
			r.Delete("/pages/{pageID}", c.deletePage)
			r.Post("/pages/{pageID}/homepage", c.setHomepage)

			r.Get("/pages/{pageID}/sections", c.listSections)
			r.Post("/pages/{pageID}/sections", c.createSection)
			r.Put("/pages/{pageID}/sections/order", c.reorderSections)
			r.Patch("/sections/{sectionID}", c.updateSection)
			r.Delete("/sections/{sectionID}", c.deleteSection)
			r.Post("/sections/{sectionID}/duplicate", c.duplicateSection)

			r.Get("/autosave", c.autosaveStatus)
			r.Post("/autosave", c.queueEdits)
			r.Post("/autosave/flush", c.flushEdits)

			r.Get("/versions", c.listVersions)
		})

		r.Group(func(r chi.Router) {
			r.Use(acl.RequireSiteRole(c.roles, "siteID", acl.Admins...))

			r.Put("/status", c.setStatus)
			r.Post("/publish", c.publish)
			r.Post("/rollback", c.rollback)
		})
	})
	return r
}

// Register component at package init.
func init() {
	component.Register(&Comp{})
}

// ─── ownership helpers ─────────────────────────────────────────────────────

var (
	errPageNotFound    = apperr.New(apperr.KindNotFound, "editor", "Page not found.")
	errSectionNotFound = apperr.New(apperr.KindNotFound, "editor", "Section not found.")
)

// access returns the site access placed by RequireSiteRole.
func access(r *http.Request) *acl.Access { return acl.FromContext(r.Context()) }

// ownPage loads pageID and confirms it belongs to the site in a.
func (c *Comp) ownPage(ctx context.Context, a *acl.Access, pageID string) (*page.Page, error) {
	p, err := c.pages.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if p.SiteID != a.SiteID || p.TenantID != a.TenantID {
		return nil, errPageNotFound
	}
	return p, nil
}

// ownSection loads sectionID and confirms its page belongs to the site.
func (c *Comp) ownSection(ctx context.Context, a *acl.Access, sectionID string) (*section.Section, error) {
	s, err := c.sections.Get(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if s.TenantID != a.TenantID {
		return nil, errSectionNotFound
	}
	if _, err := c.ownPage(ctx, a, s.PageID); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, errSectionNotFound
		}
		return nil, err
	}
	return s, nil
}
