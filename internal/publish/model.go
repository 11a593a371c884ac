// internal/publish/model.go
//
// Publish rows and the snapshot they carry.
//
// Context
// -------
// A snapshot is a fully denormalised, self-contained copy of a site at
// publish time: settings plus every page with its ordered sections.  It is
// persisted in `publishes.snapshot` and served verbatim by the public
// resolver, so the JSON tags below are the wire shape.
//
// Notes
// -----
//   - Snapshot implements sql.Scanner and driver.Valuer over JSON.
//   - Clone deep-copies every payload map; a snapshot never shares memory
//     with live page or section records.
package publish

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yanizio/sitebuilder/internal/content"
)

type SnapshotSection struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Variant   *string      `json:"variant"`
	Content   content.JSON `json:"content"`
	Settings  content.JSON `json:"settings"`
	SortOrder *int         `json:"sort_order"`
}

type SnapshotPage struct {
	ID         string            `json:"id"`
	Slug       string            `json:"slug"`
	Title      string            `json:"title"`
	IsHomepage bool              `json:"is_homepage"`
	SEO        content.JSON      `json:"seo"`
	Sections   []SnapshotSection `json:"sections"`
}

// Snapshot is the servable copy of a site.
type Snapshot struct {
	Pages       []SnapshotPage `json:"pages"`
	Settings    content.JSON   `json:"settings"`
	PublishedAt time.Time      `json:"published_at"`
}

// Value encodes the snapshot for a JSON column.
func (s Snapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON column.
func (s *Snapshot) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*s = Snapshot{}
		return nil
	default:
		return fmt.Errorf("publish: cannot scan %T into Snapshot", src)
	}
	return json.Unmarshal(b, s)
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Pages:       make([]SnapshotPage, len(s.Pages)),
		Settings:    content.Clone(s.Settings),
		PublishedAt: s.PublishedAt,
	}
	for i, p := range s.Pages {
		cp := p
		cp.SEO = content.Clone(p.SEO)
		cp.Sections = make([]SnapshotSection, len(p.Sections))
		for j, sec := range p.Sections {
			cs := sec
			cs.Content = content.Clone(sec.Content)
			cs.Settings = content.Clone(sec.Settings)
			if sec.Variant != nil {
				v := *sec.Variant
				cs.Variant = &v
			}
			if sec.SortOrder != nil {
				o := *sec.SortOrder
				cs.SortOrder = &o
			}
			cp.Sections[j] = cs
		}
		out.Pages[i] = cp
	}
	return out
}

// Page finds a page by slug.  An empty slug selects the homepage, or the
// first page when none is flagged.
func (s Snapshot) Page(slug string) (*SnapshotPage, bool) {
	if len(s.Pages) == 0 {
		return nil, false
	}
	if slug == "" {
		for i := range s.Pages {
			if s.Pages[i].IsHomepage {
				return &s.Pages[i], true
			}
		}
		return &s.Pages[0], true
	}
	for i := range s.Pages {
		if s.Pages[i].Slug == slug {
			return &s.Pages[i], true
		}
	}
	return nil, false
}

// Publish mirrors one row in `publishes`.  Rows are append-only; only
// is_current ever changes after insert.
type Publish struct {
	ID        string    `db:"id"         json:"id"`
	SiteID    string    `db:"site_id"    json:"site_id"`
	TenantID  string    `db:"tenant_id"  json:"tenant_id"`
	Version   int       `db:"version"    json:"version"`
	Snapshot  Snapshot  `db:"snapshot"   json:"snapshot"`
	Changelog *string   `db:"changelog"  json:"changelog"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
