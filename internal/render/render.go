// internal/render/render.go
//
// Variant-driven HTML renderer for published snapshots.
//
// Context
// -------
// Public pages are rendered from the immutable snapshot, never from live
// rows.  Each section picks its template by type and variant, falling back
// from "section/<type>/<variant>" to "section/<type>" and finally to
// "section/fallback" for types this build does not know.  Text sections
// carry markdown, converted with goldmark and sanitized with bluemonday.
//
// Workflow
// --------
//  1. Page(in) checks the LRU for (base path, slug, version, page).
//  2. On a miss, each section is decoded through the content registry and
//     executed into its template.
//  3. The layout wraps the sections with a <head> built from the page SEO.
//
// Notes
// -----
//   - Snapshots never change, so cached output is only displaced by LRU
//     pressure; a publish bumps the version and misses naturally.
//   - A section that fails to decode or execute renders the fallback so one
//     bad block never takes down the page.
//   - Oxford commas, two spaces after periods.
package render

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/cache"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/head"
	"github.com/yanizio/sitebuilder/internal/metrics"
	"github.com/yanizio/sitebuilder/internal/publish"
	"github.com/yanizio/sitebuilder/internal/routing"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultCacheSize bounds the rendered-page LRU.
const DefaultCacheSize = 512

// Input is one page of a published snapshot plus the site context needed
// to lay it out.
type Input struct {
	SiteSlug string
	SiteName string
	Settings content.JSON // site settings (lang, primaryColor)
	Version  int
	Pages    []publish.SnapshotPage // all pages, for navigation
	Page     *publish.SnapshotPage

	// BasePath prefixes navigation links: "/s/<slug>" on the platform host,
	// "" on a custom domain.
	BasePath string
}

type key struct {
	base, slug, page string
	version          int
}

// Renderer turns snapshot pages into HTML.  Safe for concurrent use.
type Renderer struct {
	tpl    *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
	lru    *cache.LRU[key, []byte]
	now    func() time.Time
}

// New parses the embedded templates.  size <= 0 selects DefaultCacheSize.
func New(size int) (*Renderer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	tpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{
		tpl:    tpl,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
		lru:    cache.New[key, []byte](size),
		now:    time.Now,
	}, nil
}

// Page renders in to a complete HTML document.
func (r *Renderer) Page(in Input) ([]byte, error) {
	if in.Page == nil {
		return nil, apperr.New(apperr.KindNotFound, "render.Page", "Page not found.")
	}
	k := key{base: in.BasePath, slug: in.SiteSlug, page: in.Page.Slug, version: in.Version}
	if out, ok := r.lru.Get(k); ok {
		metrics.RenderTotal.WithLabelValues("hit").Inc()
		return out, nil
	}

	out, err := r.page(in)
	if err != nil {
		metrics.RenderTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.KindServer, "render.Page", err)
	}
	r.lru.Add(k, out)
	metrics.RenderTotal.WithLabelValues("miss").Inc()
	return out, nil
}

// Purge drops every cached page of slug.  Rollbacks do not need it because
// they publish a new version; it exists for template changes at runtime.
func (r *Renderer) Purge(slug string) int {
	return r.lru.RemoveFunc(func(k key) bool { return k.slug == slug })
}

type navItem struct {
	Title  string
	Href   string
	Active bool
}

type layoutData struct {
	Lang     string
	Slug     string
	SiteName string
	Primary  string
	Year     int
	Head     *head.Builder
	Nav      []navItem
	Sections []template.HTML
}

func (r *Renderer) page(in Input) ([]byte, error) {
	h := head.New()
	h.FromSEO(in.Page.SEO, in.Page.Title, in.SiteName)
	h.JSONLD(map[string]string{
		"@context": "https://schema.org",
		"@type":    "WebPage",
		"name":     in.Page.Title,
	})

	data := layoutData{
		Lang:     setting(in.Settings, "lang", "en"),
		Slug:     in.SiteSlug,
		SiteName: in.SiteName,
		Primary:  setting(in.Settings, "primaryColor", ""),
		Year:     r.now().Year(),
		Head:     h,
		Nav:      nav(in),
		Sections: make([]template.HTML, 0, len(in.Page.Sections)),
	}
	for _, s := range in.Page.Sections {
		data.Sections = append(data.Sections, r.Section(s))
	}

	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type sectionData struct {
	ID       string
	Type     string
	Variant  string
	Content  any
	Settings content.JSON
	Body     template.HTML // rendered markdown for text sections
}

// Section renders one snapshot section.  It never fails; problems render
// the fallback block and are logged.
func (r *Renderer) Section(s publish.SnapshotSection) template.HTML {
	d := sectionData{
		ID:       s.ID,
		Type:     s.Type,
		Variant:  content.ResolveVariant(s.Type, s.Variant),
		Settings: s.Settings,
	}

	name := r.templateFor(d.Type, d.Variant)
	if name != "section/fallback" {
		c, err := content.Decode(s.Type, s.Content)
		if err != nil {
			zap.L().Warn("section content does not decode",
				zap.String("section", s.ID), zap.String("type", s.Type), zap.Error(err))
			name = "section/fallback"
		} else {
			d.Content = c
			if t, ok := c.(*content.Text); ok {
				d.Body = r.Markdown(t.Body)
			}
		}
	}

	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, name, d); err != nil {
		zap.L().Warn("section render failed",
			zap.String("section", s.ID), zap.String("template", name), zap.Error(err))
		buf.Reset()
		_ = r.tpl.ExecuteTemplate(&buf, "section/fallback", d)
	}
	return template.HTML(buf.String())
}

// templateFor walks the lookup chain for typ and variant.
func (r *Renderer) templateFor(typ, variant string) string {
	if variant != "" {
		if n := "section/" + typ + "/" + variant; r.tpl.Lookup(n) != nil {
			return n
		}
	}
	if n := "section/" + typ; r.tpl.Lookup(n) != nil {
		return n
	}
	return "section/fallback"
}

// Markdown converts src to sanitized HTML.
func (r *Renderer) Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

func nav(in Input) []navItem {
	out := make([]navItem, 0, len(in.Pages))
	for _, p := range in.Pages {
		href := routing.BuildPath(in.BasePath, p.Slug)
		if p.IsHomepage {
			href = routing.BuildPath(in.BasePath, "")
		}
		out = append(out, navItem{Title: p.Title, Href: href, Active: p.ID == in.Page.ID})
	}
	return out
}

func setting(m content.JSON, k, def string) string {
	if s, ok := m[k].(string); ok && s != "" {
		return s
	}
	return def
}
