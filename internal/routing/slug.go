// internal/routing/slug.go
//
// Slug and path helpers.
//
// • MakeSlug(title) ─ converts a site or page name into a URL-safe slug
//   restricted to ASCII a-z, 0-9 and “-”.
// • ValidSlug(s)    ─ reports whether s is already in MakeSlug's output form.
// • BuildPath(parent, slug) ─ joins parent path + slug with a single “/” and
//   guarantees exactly one leading slash.
//
// Rules (MakeSlug)
// ----------------
// 1. Lower-case everything.
// 2. Convert any run of non-[a-z0-9] characters to one “-”.  That strips
//    spaces, punctuation, emoji, and non-ASCII.
// 3. Trim leading / trailing “-”.
// 4. If the result is empty, return the fallback ("site" or "page").
//
// Notes
// -----
// • No Unicode transliteration; editors may type any slug they like as long
//   as it passes ValidSlug.
// • Slugs are max 100 bytes.

package routing

import (
	"strings"
)

// MaxSlugLen bounds both generated and user-supplied slugs.
const MaxSlugLen = 100

// MakeSlug converts title → lower-kebab ASCII, using fallback when nothing
// survives the conversion.
func MakeSlug(title, fallback string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastWasDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return fallback
	}
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	return slug
}

// ValidSlug reports whether s is non-empty lower-kebab ASCII with no
// leading, trailing, or doubled dashes.
func ValidSlug(s string) bool {
	if s == "" || len(s) > MaxSlugLen {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' || strings.Contains(s, "--") {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}

// BuildPath joins parent + slug ensuring exactly one leading slash and no
// duplicate separators.
func BuildPath(parent, slug string) string {
	parent = strings.Trim(parent, "/")
	slug = strings.Trim(slug, "/")

	switch {
	case parent == "" && slug == "":
		return "/"
	case parent == "":
		return "/" + slug
	case slug == "":
		return "/" + parent
	default:
		return "/" + parent + "/" + slug
	}
}
