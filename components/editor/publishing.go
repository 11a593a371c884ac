package editor

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/sitebuilder/internal/acl"
	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/autosave"
	"github.com/yanizio/sitebuilder/internal/httpx"
	"github.com/yanizio/sitebuilder/internal/page"
	"github.com/yanizio/sitebuilder/internal/publish"
	"github.com/yanizio/sitebuilder/internal/routing"
	"github.com/yanizio/sitebuilder/internal/section"
	"github.com/yanizio/sitebuilder/internal/site"
)

// ─── autosave ──────────────────────────────────────────────────────────────

// Edit is one partial update queued through the autosave endpoint.
type Edit struct {
	Kind   autosave.Kind  `json:"kind"   validate:"required,oneof=sections pages sites"`
	ID     string         `json:"id"     validate:"required"`
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

type queueReq struct {
	Edits []Edit `json:"edits" validate:"required,min=1,max=200,dive"`
}

// SaveStatus is the editor's "Saving… / Saved" indicator.
type SaveStatus struct {
	Saving    bool       `json:"saving"`
	LastSaved *time.Time `json:"lastSaved"`
	Pending   []string   `json:"pending"`
}

func (c *Comp) status(siteID string) SaveStatus {
	st := SaveStatus{Pending: []string{}}
	co, ok := c.autosave.Lookup(siteID)
	if !ok {
		return st
	}
	st.Saving = co.IsSaving()
	if t := co.LastSaved(); !t.IsZero() {
		st.LastSaved = &t
	}
	for _, k := range co.PendingKeys() {
		st.Pending = append(st.Pending, k.String())
	}
	return st
}

// checkEdit confirms the edit targets this site, names only writable
// fields, and carries values their columns accept, so nothing is queued
// that a later flush would refuse.
func (c *Comp) checkEdit(ctx context.Context, a *acl.Access, e Edit) error {
	const op = "editor.queueEdits"
	if err := checkValues(op, e.Fields); err != nil {
		return err
	}
	switch e.Kind {
	case autosave.KindSites:
		if e.ID != a.SiteID {
			return apperr.New(apperr.KindNotFound, op, "Site not found.")
		}
		return writable(op, e.Fields, site.Writable)
	case autosave.KindPages:
		if err := writable(op, e.Fields, page.Writable); err != nil {
			return err
		}
		_, err := c.ownPage(ctx, a, e.ID)
		return err
	case autosave.KindSections:
		if err := writable(op, e.Fields, section.Writable); err != nil {
			return err
		}
		_, err := c.ownSection(ctx, a, e.ID)
		return err
	}
	return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Unknown autosave target %q.", e.Kind))
}

// checkValues applies the column rules of every writable field.  Fields
// not listed here are rejected earlier by writable.
func checkValues(op string, fields map[string]any) error {
	bad := func(k, why string) error {
		return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Field %q is invalid (%s).", k, why))
	}
	for k, v := range fields {
		switch k {
		case "slug":
			if s, _ := v.(string); !routing.ValidSlug(s) {
				return bad(k, "slug")
			}
		case "title", "name", "type":
			if s, _ := v.(string); strings.TrimSpace(s) == "" || len(s) > 200 {
				return bad(k, "required")
			}
		case "variant", "template_id":
			if _, ok := v.(string); !ok && v != nil {
				return bad(k, "string")
			}
		case "content", "settings", "seo":
			if _, ok := v.(map[string]any); !ok {
				return bad(k, "object")
			}
		case "sort_order":
			if n, ok := v.(float64); !ok || n != math.Trunc(n) {
				return bad(k, "integer")
			}
		}
	}
	return nil
}

// queueEdits accepts a batch of partial updates.  The batch is checked as a
// whole before anything is queued.
func (c *Comp) queueEdits(w http.ResponseWriter, r *http.Request) {
	const op = "editor.queueEdits"
	var req queueReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	a := access(r)
	for _, e := range req.Edits {
		if err := c.checkEdit(r.Context(), a, e); err != nil {
			httpx.Error(w, r, err)
			return
		}
	}
	for _, e := range req.Edits {
		if err := c.autosave.Queue(a.SiteID, e.Kind, e.ID, e.Fields); err != nil {
			httpx.Error(w, r, err)
			return
		}
	}
	httpx.JSON(w, http.StatusAccepted, c.status(a.SiteID))
}

func (c *Comp) flushEdits(w http.ResponseWriter, r *http.Request) {
	siteID := access(r).SiteID
	if err := c.autosave.FlushSite(r.Context(), siteID); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c.status(siteID))
}

func (c *Comp) autosaveStatus(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, c.status(access(r).SiteID))
}

// ─── publishing ────────────────────────────────────────────────────────────

// Version is one publish history entry without its snapshot.
type Version struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	IsCurrent bool      `json:"isCurrent"`
	Changelog *string   `json:"changelog"`
	CreatedAt time.Time `json:"createdAt"`
}

func versionOf(p *publish.Publish) Version {
	return Version{
		ID:        p.ID,
		Version:   p.Version,
		IsCurrent: p.IsCurrent,
		Changelog: p.Changelog,
		CreatedAt: p.CreatedAt,
	}
}

func (c *Comp) listVersions(w http.ResponseWriter, r *http.Request) {
	list, err := c.publisher.ListBySite(r.Context(), access(r).SiteID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	out := make([]Version, 0, len(list))
	for i := range list {
		out = append(out, versionOf(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"versions": out})
}

// publish flushes pending autosave edits and then snapshots the site.  A
// failed flush aborts the publish.
func (c *Comp) publish(w http.ResponseWriter, r *http.Request) {
	a := access(r)
	p, err := c.publisher.FlushAndPublish(r.Context(), a.SiteID, a.TenantID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, versionOf(p))
}

type rollbackReq struct {
	Version int `json:"version" validate:"required,gt=0"`
}

func (c *Comp) rollback(w http.ResponseWriter, r *http.Request) {
	const op = "editor.rollback"
	var req rollbackReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}
	p, err := c.publisher.Rollback(r.Context(), access(r).SiteID, req.Version)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, versionOf(p))
}
