package head

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/content"
)

func TestFromSEO_Fallbacks(t *testing.T) {
	b := New()
	b.FromSEO(content.JSON{}, "About", "Acme")

	require.Equal(t, "<title>About | Acme</title>", string(b.Title()))
	require.Contains(t, string(b.Metas()), `<meta property="og:site_name" content="Acme">`)
	require.NotContains(t, string(b.Metas()), `name="description"`)
	require.Empty(t, b.Links())
}

func TestFromSEO_Fields(t *testing.T) {
	b := New()
	b.FromSEO(content.JSON{
		"title":       "Custom <title>",
		"description": `Fast "sites"`,
		"canonical":   "https://acme.test/",
		"noindex":     true,
	}, "Home", "Acme")

	require.Equal(t, "<title>Custom &lt;title&gt;</title>", string(b.Title()))
	metas := string(b.Metas())
	require.Contains(t, metas, `<meta name="description" content="Fast &#34;sites&#34;">`)
	require.Contains(t, metas, `<meta name="robots" content="noindex">`)
	require.Equal(t, `<link rel="canonical" href="https://acme.test/">`, string(b.Links()))
}

func TestMeta_FirstWriterWins(t *testing.T) {
	b := New()
	b.Meta("description", "one")
	b.Meta("description", "two")
	require.Equal(t, `<meta name="description" content="one">`, string(b.Metas()))
}

func TestJSONLD_EscapesScriptClose(t *testing.T) {
	b := New()
	b.JSONLD(map[string]string{"name": "</script><b>"})
	out := string(b.JSON())
	require.Contains(t, out, `<script type="application/ld+json">`)
	require.NotContains(t, out, "</script><b>")
}

func TestJoinTitle(t *testing.T) {
	require.Equal(t, "Acme", joinTitle("", "Acme"))
	require.Equal(t, "Acme", joinTitle("Acme", "Acme"))
	require.Equal(t, "Home", joinTitle("Home", ""))
}
