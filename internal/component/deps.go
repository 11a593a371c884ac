// internal/component/deps.go
package component

import (
	"github.com/yanizio/sitebuilder/internal/acl"
	"github.com/yanizio/sitebuilder/internal/auth"
	"github.com/yanizio/sitebuilder/internal/autosave"
	"github.com/yanizio/sitebuilder/internal/hosting"
	"github.com/yanizio/sitebuilder/internal/page"
	"github.com/yanizio/sitebuilder/internal/public"
	"github.com/yanizio/sitebuilder/internal/publish"
	"github.com/yanizio/sitebuilder/internal/render"
	"github.com/yanizio/sitebuilder/internal/section"
	"github.com/yanizio/sitebuilder/internal/site"
)

// Deps exposes shared services to Components during Init.  Domains is nil
// when no hosting provider is configured.
type Deps struct {
	Auth      *auth.Verifier
	ACL       *acl.Store
	Sites     *site.Store
	Pages     *page.Store
	Sections  *section.Store
	Publisher *publish.Engine
	Autosave  *autosave.Manager
	Resolver  *public.Resolver
	Renderer  *render.Renderer
	Domains   *hosting.Service
}
