// internal/content/types.go
//
// Built-in section types.  Struct fields mirror the JSON an editor stores
// in sections.content; validate tags describe the minimum a section needs
// to render.  Unrecognised keys in the payload are ignored by the decoder.
package content

// Link is a labelled href used by several section types.
type Link struct {
	Label string `json:"label" validate:"required,max=80"`
	Href  string `json:"href"  validate:"required"`
}

type Hero struct {
	Heading    string `json:"heading"    validate:"required,max=200"`
	Subheading string `json:"subheading" validate:"max=400"`
	Image      string `json:"image"`
	CTA        *Link  `json:"cta"`
}

// Text holds a markdown body.
type Text struct {
	Heading string `json:"heading" validate:"max=200"`
	Body    string `json:"body"`
}

type Feature struct {
	Title       string `json:"title"       validate:"required,max=120"`
	Description string `json:"description" validate:"max=600"`
	Icon        string `json:"icon"`
}

type Features struct {
	Heading string    `json:"heading" validate:"max=200"`
	Items   []Feature `json:"items"   validate:"dive"`
}

type Image struct {
	Src string `json:"src" validate:"required"`
	Alt string `json:"alt" validate:"max=200"`
}

type Gallery struct {
	Heading string  `json:"heading" validate:"max=200"`
	Images  []Image `json:"images"  validate:"dive"`
}

type CTA struct {
	Heading string `json:"heading" validate:"required,max=200"`
	Body    string `json:"body"    validate:"max=600"`
	Button  Link   `json:"button"`
}

type Contact struct {
	Heading string `json:"heading" validate:"max=200"`
	Email   string `json:"email"   validate:"omitempty,email"`
	Phone   string `json:"phone"   validate:"max=40"`
	Address string `json:"address" validate:"max=400"`
}

func init() {
	Register(TypeDef{
		Key:            "hero",
		Label:          "Hero",
		Variants:       []string{"centered", "split", "image-background"},
		DefaultVariant: "centered",
		Defaults: func() JSON {
			return JSON{"heading": "Welcome to our site", "subheading": "Tell visitors what you do."}
		},
		Schema: func() any { return &Hero{} },
	})
	Register(TypeDef{
		Key:            "text",
		Label:          "Text",
		Variants:       []string{"default", "narrow"},
		DefaultVariant: "default",
		Defaults:       func() JSON { return JSON{"body": "Write something here."} },
		Schema:         func() any { return &Text{} },
	})
	Register(TypeDef{
		Key:            "features",
		Label:          "Features",
		Variants:       []string{"grid", "list"},
		DefaultVariant: "grid",
		Defaults: func() JSON {
			return JSON{
				"heading": "Why choose us",
				"items": []any{
					map[string]any{"title": "Fast", "description": "Pages load quickly."},
					map[string]any{"title": "Simple", "description": "Easy to update."},
				},
			}
		},
		Schema: func() any { return &Features{} },
	})
	Register(TypeDef{
		Key:            "gallery",
		Label:          "Gallery",
		Variants:       []string{"grid", "carousel"},
		DefaultVariant: "grid",
		Defaults:       func() JSON { return JSON{"images": []any{}} },
		Schema:         func() any { return &Gallery{} },
	})
	Register(TypeDef{
		Key:            "cta",
		Label:          "Call to action",
		Variants:       []string{"banner", "card"},
		DefaultVariant: "banner",
		Defaults: func() JSON {
			return JSON{
				"heading": "Ready to get started?",
				"button":  map[string]any{"label": "Contact us", "href": "#contact"},
			}
		},
		Schema: func() any { return &CTA{} },
	})
	Register(TypeDef{
		Key:            "contact",
		Label:          "Contact",
		Variants:       []string{"simple", "map"},
		DefaultVariant: "simple",
		Defaults:       func() JSON { return JSON{"heading": "Get in touch"} },
		Schema:         func() any { return &Contact{} },
	})
}
