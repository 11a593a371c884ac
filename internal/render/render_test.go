package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/publish"
)

func strp(s string) *string { return &s }

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(8)
	require.NoError(t, err)
	return r
}

func sampleInput() Input {
	pages := []publish.SnapshotPage{
		{
			ID: "p-home", Slug: "home", Title: "Home", IsHomepage: true,
			SEO: content.JSON{"description": "Acme makes things"},
			Sections: []publish.SnapshotSection{
				{ID: "s1", Type: "hero", Variant: strp("split"),
					Content: content.JSON{"heading": "Build faster", "image": "/img/hero.png",
						"cta": map[string]any{"label": "Start", "href": "/signup"}}},
				{ID: "s2", Type: "text",
					Content: content.JSON{"body": "Hello **world** <script>alert(1)</script>"}},
				{ID: "s3", Type: "mystery", Content: content.JSON{"x": 1}},
			},
		},
		{ID: "p-about", Slug: "about", Title: "About"},
	}
	return Input{
		SiteSlug: "acme", SiteName: "Acme", Version: 3,
		Settings: content.JSON{"lang": "fr"},
		Pages:    pages, Page: &pages[0], BasePath: "/s/acme",
	}
}

func TestPage_RendersSectionsInOrder(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Page(sampleInput())
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, `<html lang="fr">`)
	require.Contains(t, html, "<title>Home | Acme</title>")
	require.Contains(t, html, `content="Acme makes things"`)

	hero := strings.Index(html, `id="s-s1"`)
	text := strings.Index(html, `id="s-s2"`)
	unknown := strings.Index(html, `id="s-s3"`)
	require.True(t, hero > 0 && hero < text && text < unknown, "sections out of order")

	require.Contains(t, html, "section--split")
	require.Contains(t, html, `<a class="button" href="/signup">Start</a>`)
	require.Contains(t, html, "<strong>world</strong>")
	require.NotContains(t, html, "<script>alert(1)</script>")
	require.Contains(t, html, `data-type="mystery"`)

	require.Contains(t, html, `<a href="/s/acme" aria-current="page">Home</a>`)
	require.Contains(t, html, `<a href="/s/acme/about">About</a>`)
}

func TestPage_CachesByVersion(t *testing.T) {
	r := newRenderer(t)
	in := sampleInput()

	first, err := r.Page(in)
	require.NoError(t, err)
	in.Page.Title = "Changed"
	again, err := r.Page(in)
	require.NoError(t, err)
	require.Equal(t, first, again, "same version must be served from cache")

	in.Version = 4
	next, err := r.Page(in)
	require.NoError(t, err)
	require.Contains(t, string(next), "<title>Changed | Acme</title>")

	require.Equal(t, 2, r.Purge("acme"))
}

func TestPage_NilPage(t *testing.T) {
	r := newRenderer(t)
	_, err := r.Page(Input{SiteSlug: "acme"})
	require.Error(t, err)
}

func TestSection_VariantFallbackChain(t *testing.T) {
	r := newRenderer(t)

	require.Equal(t, "section/hero/split", r.templateFor("hero", "split"))
	require.Equal(t, "section/hero", r.templateFor("hero", "centered"))
	require.Equal(t, "section/fallback", r.templateFor("widget", "x"))

	// Unknown variant resolves to the type default.
	out := r.Section(publish.SnapshotSection{ID: "h", Type: "hero", Variant: strp("nope"),
		Content: content.JSON{"heading": "Hi"}})
	require.Contains(t, string(out), "section--centered")
}

func TestSection_BadContentRendersFallback(t *testing.T) {
	r := newRenderer(t)
	out := r.Section(publish.SnapshotSection{ID: "f", Type: "features",
		Content: content.JSON{"items": 42}})
	require.Contains(t, string(out), "section--unknown")
}

func TestSection_UnsafeURLsNeutralized(t *testing.T) {
	r := newRenderer(t)
	out := r.Section(publish.SnapshotSection{ID: "c", Type: "cta",
		Content: content.JSON{"heading": "Go", "button": map[string]any{
			"label": "Click", "href": "javascript:alert(1)"}}})
	require.NotContains(t, string(out), "javascript:")
}

func TestMarkdown(t *testing.T) {
	r := newRenderer(t)
	out := string(r.Markdown("# Title\n\n[link](https://example.com)"))
	require.Contains(t, out, "<h1")
	require.Contains(t, out, `href="https://example.com"`)
}
