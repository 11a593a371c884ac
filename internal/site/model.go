package site

import (
	"time"

	"github.com/yanizio/sitebuilder/internal/content"
)

// Status is the lifecycle state of a site.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Site mirrors one row in the `sites` table.  Sites are never physically
// deleted here; archiving hides them from the public resolver.
type Site struct {
	ID         string       `db:"id"          json:"id"`
	TenantID   string       `db:"tenant_id"   json:"tenant_id"`
	Slug       string       `db:"slug"        json:"slug"`
	Name       string       `db:"name"        json:"name"`
	Status     Status       `db:"status"      json:"status"`
	Settings   content.JSON `db:"settings"    json:"settings"`
	TemplateID *string      `db:"template_id" json:"template_id"`
	CreatedAt  time.Time    `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"  json:"updated_at"`
}
