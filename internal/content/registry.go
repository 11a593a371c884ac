// internal/content/registry.go
//
// Section-type registry.
//
// Context
// -------
// A section's `type` is a key into this registry.  Each registered TypeDef
// names the variants the renderer understands, the default variant, the
// content a freshly added section is seeded with, and a typed struct the
// content decodes into for validation.  Types registered in init() below
// are known at compile time; any other type string is accepted as an opaque
// payload so content created by newer editors still round-trips.
//
// Workflow
// --------
//  1. Built-in types call Register from init().
//  2. Section create/update calls Validate(type, content).
//  3. The renderer calls ResolveVariant to pick a template and Decode to
//     hand it typed content.
//
// Notes
// -----
//   - Decoding uses mapstructure with the `json` tag so the typed structs
//     mirror the wire payload.
//   - Validation failures surface as VALIDATION errors naming each field.
package content

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// TypeDef describes one section type.
type TypeDef struct {
	Key            string
	Label          string
	Variants       []string
	DefaultVariant string
	Defaults       func() JSON // seed content for "add section"
	Schema         func() any  // pointer to a typed struct; nil means opaque
}

// HasVariant reports whether v is one of the declared variants.
func (d TypeDef) HasVariant(v string) bool {
	for _, x := range d.Variants {
		if x == v {
			return true
		}
	}
	return false
}

var (
	mu       sync.RWMutex
	registry = map[string]TypeDef{}

	validate = validator.New()
)

// Register adds or replaces a type definition.
func Register(d TypeDef) {
	if d.Key == "" {
		panic("content.Register: empty type key")
	}
	mu.Lock()
	registry[d.Key] = d
	mu.Unlock()
}

// Lookup returns the definition for key.
func Lookup(key string) (TypeDef, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[key]
	return d, ok
}

// Keys lists registered type keys in sorted order.
func Keys() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultsFor returns the seed content and variant for a new section of
// type key.  Unknown types seed an empty object and no variant.
func DefaultsFor(key string) (JSON, *string) {
	d, ok := Lookup(key)
	if !ok {
		return JSON{}, nil
	}
	c := JSON{}
	if d.Defaults != nil {
		c = Clone(d.Defaults())
	}
	if d.DefaultVariant == "" {
		return c, nil
	}
	v := d.DefaultVariant
	return c, &v
}

// ResolveVariant maps a possibly-nil or unknown variant onto the one the
// renderer should use.  Unknown types keep whatever they were given.
func ResolveVariant(key string, variant *string) string {
	d, ok := Lookup(key)
	if !ok {
		if variant == nil {
			return ""
		}
		return *variant
	}
	if variant != nil && d.HasVariant(*variant) {
		return *variant
	}
	return d.DefaultVariant
}

// Validate checks c against the typed schema for key.  Unknown types and
// types without a schema always pass.
func Validate(key string, variant *string, c JSON) error {
	const op = "content.Validate"
	if strings.TrimSpace(key) == "" {
		return apperr.New(apperr.KindValidation, op, "Section type is required.")
	}
	d, ok := Lookup(key)
	if !ok {
		return nil
	}
	if variant != nil && len(d.Variants) > 0 && !d.HasVariant(*variant) {
		return apperr.New(apperr.KindValidation, op,
			fmt.Sprintf("Unknown variant %q for %s sections.", *variant, key))
	}
	if d.Schema == nil {
		return nil
	}

	target, err := decode(d, c)
	if err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Op: op,
			Message: fmt.Sprintf("Content does not match the %s section shape.", key), Err: err}
	}

	if err := validate.Struct(target); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fe.Namespace())
			}
			return &apperr.Error{Kind: apperr.KindValidation, Op: op,
				Message: "Invalid content fields: " + strings.Join(fields, ", ") + ".", Err: err}
		}
		return apperr.Wrap(apperr.KindValidation, op, err)
	}
	return nil
}

// Decode returns c decoded into the typed struct registered for key.  Types
// without a schema return c itself.
func Decode(key string, c JSON) (any, error) {
	d, ok := Lookup(key)
	if !ok || d.Schema == nil {
		return map[string]any(c), nil
	}
	return decode(d, c)
}

func decode(d TypeDef, c JSON) (any, error) {
	target := d.Schema()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(c)); err != nil {
		return nil, err
	}
	return target, nil
}
