// Package content holds the schema-less payload type shared by sites, pages,
// sections, and snapshots, plus the section-type registry that gives those
// payloads a shape where the type is known.
package content

import (
	"github.com/mitchellh/copystructure"
	"gorm.io/datatypes"
)

// JSON is an opaque JSON object.  It scans from and writes to MySQL JSON
// columns and encodes as a plain object.
type JSON = datatypes.JSONMap

// Merge shallow-merges src over dst and returns the result.  dst is not
// modified.
func Merge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Clone deep-copies m so nested maps and slices are not shared.  A nil map
// clones to an empty one.
func Clone(m JSON) JSON {
	if m == nil {
		return JSON{}
	}
	cp, err := copystructure.Copy(map[string]any(m))
	if err != nil {
		// copystructure only fails on unsupported kinds (chan, func), which
		// decoded JSON never contains.
		panic("content: clone: " + err.Error())
	}
	return JSON(cp.(map[string]any))
}
