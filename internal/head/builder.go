// internal/head/builder.go
//
// The Builder collects everything that should appear inside a published
// page's <head> element.  It is scoped to a single render call.  The
// renderer seeds it from the page's SEO object and the site name, then the
// layout template emits each slice.
//
// Features
// --------
//   - SetTitle            – single <title> tag (last call wins).
//   - Meta, Property      – name= and property= meta tags, deduplicated by
//     key so the first writer wins.
//   - Link                – rel/href pairs (canonical, icon).
//   - JSONLD              – marshals a value and wraps it in
//     <script type="application/ld+json">…</script>.
//   - FromSEO             – applies the editor's SEO object in one call.
package head

import (
	"encoding/json"
	"html/template"
	"strings"
	"sync"

	"github.com/yanizio/sitebuilder/internal/content"
)

// Builder is safe for concurrent use, although a render call normally owns
// it from one goroutine.
type Builder struct {
	mu sync.Mutex

	title string

	metas  []string
	links  []string
	jsonLD []string

	seen map[string]struct{}
}

func New() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// ------------------------------------------------------------------
// Single-value helper
// ------------------------------------------------------------------

// SetTitle overrides the page <title>.  The last caller wins.
func (b *Builder) SetTitle(t string) {
	b.mu.Lock()
	b.title = t
	b.mu.Unlock()
}

// Title returns a fully formed <title> tag or an empty string.
func (b *Builder) Title() template.HTML {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.title == "" {
		return ""
	}
	return template.HTML("<title>" + template.HTMLEscapeString(b.title) + "</title>")
}

// ------------------------------------------------------------------
// Tag helpers with deduplication
// ------------------------------------------------------------------

// Meta adds <meta name=… content=…>.  Empty content is skipped.
func (b *Builder) Meta(name, value string) {
	if value == "" {
		return
	}
	b.add("meta:"+name, &b.metas, `<meta name="`+esc(name)+`" content="`+esc(value)+`">`)
}

// Property adds <meta property=… content=…> (Open Graph).
func (b *Builder) Property(prop, value string) {
	if value == "" {
		return
	}
	b.add("prop:"+prop, &b.metas, `<meta property="`+esc(prop)+`" content="`+esc(value)+`">`)
}

// Link adds <link rel=… href=…>.
func (b *Builder) Link(rel, href string) {
	if href == "" {
		return
	}
	b.add("link:"+rel+":"+href, &b.links, `<link rel="`+esc(rel)+`" href="`+esc(href)+`">`)
}

// JSONLD marshals v into a structured-data block.  Values that cannot be
// marshalled are dropped.
func (b *Builder) JSONLD(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// json.Marshal escapes <, >, and & so the payload cannot close the tag.
	b.add("jsonld:"+string(raw), &b.jsonLD, string(raw))
}

func (b *Builder) add(key string, tgt *[]string, tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	*tgt = append(*tgt, tag)
}

func esc(s string) string { return template.HTMLEscapeString(s) }

// ------------------------------------------------------------------
// SEO
// ------------------------------------------------------------------

// FromSEO applies the page SEO object.  Recognised keys are title,
// description, keywords, image, canonical, and noindex.  pageTitle and
// siteName build the fallback title "Page | Site".
func (b *Builder) FromSEO(seo content.JSON, pageTitle, siteName string) {
	title := str(seo, "title")
	if title == "" {
		title = joinTitle(pageTitle, siteName)
	}
	b.SetTitle(title)

	desc := str(seo, "description")
	b.Meta("description", desc)
	b.Meta("keywords", str(seo, "keywords"))
	if noindex, _ := seo["noindex"].(bool); noindex {
		b.Meta("robots", "noindex")
	}

	b.Property("og:title", title)
	b.Property("og:description", desc)
	b.Property("og:image", str(seo, "image"))
	b.Property("og:site_name", siteName)
	b.Link("canonical", str(seo, "canonical"))
}

func str(m content.JSON, k string) string {
	s, _ := m[k].(string)
	return strings.TrimSpace(s)
}

func joinTitle(page, site string) string {
	switch {
	case page == "":
		return site
	case site == "" || page == site:
		return page
	default:
		return page + " | " + site
	}
}

// ------------------------------------------------------------------
// Rendering helpers called from layout templates
// ------------------------------------------------------------------

func (b *Builder) Metas() template.HTML { return b.concat(b.metas) }
func (b *Builder) Links() template.HTML { return b.concat(b.links) }

// JSON returns all JSON-LD blocks wrapped in <script> tags.
func (b *Builder) JSON() template.HTML {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.jsonLD) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, js := range b.jsonLD {
		sb.WriteString(`<script type="application/ld+json">`)
		sb.WriteString(js)
		sb.WriteString(`</script>`)
	}
	return template.HTML(sb.String())
}

// concat joins pre-escaped tags without a separator.
func (b *Builder) concat(sl []string) template.HTML {
	b.mu.Lock()
	defer b.mu.Unlock()
	return template.HTML(strings.Join(sl, ""))
}
