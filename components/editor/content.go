package editor

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/database"
	"github.com/yanizio/sitebuilder/internal/httpx"
	"github.com/yanizio/sitebuilder/internal/page"
	"github.com/yanizio/sitebuilder/internal/section"
)

// ─── pages ─────────────────────────────────────────────────────────────────

func (c *Comp) listPages(w http.ResponseWriter, r *http.Request) {
	list, err := c.pages.ListBySite(r.Context(), access(r).SiteID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if list == nil {
		list = []page.Page{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": list})
}

type createPageReq struct {
	Title     string       `json:"title"     validate:"required,max=200"`
	Slug      string       `json:"slug"      validate:"omitempty,max=100"`
	SEO       content.JSON `json:"seo"`
	SortOrder *int         `json:"sortOrder" validate:"omitempty,gte=0"`
}

// createPage appends the page unless the client picked a sort order.
func (c *Comp) createPage(w http.ResponseWriter, r *http.Request) {
	const op = "editor.createPage"
	var req createPageReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	a := access(r)
	p := &page.Page{
		SiteID:   a.SiteID,
		TenantID: a.TenantID,
		Title:    req.Title,
		Slug:     req.Slug,
		SEO:      req.SEO,
	}
	if req.SortOrder != nil {
		p.SortOrder = *req.SortOrder
	}
	if err := c.pages.Create(r.Context(), p, req.SortOrder == nil); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

type orderReq struct {
	Items []database.OrderItem `json:"items" validate:"required,min=1,dive"`
}

func (c *Comp) orderPages(w http.ResponseWriter, r *http.Request) {
	const op = "editor.orderPages"
	var req orderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	a := access(r)
	existing, err := c.pages.ListBySite(r.Context(), a.SiteID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.ID] = true
	}
	for _, it := range req.Items {
		if !known[it.ID] {
			httpx.Error(w, r, apperr.New(apperr.KindValidation, op,
				fmt.Sprintf("Page %q does not belong to this site.", it.ID)))
			return
		}
	}

	if err := c.pages.UpdateOrder(r.Context(), req.Items); err != nil {
		httpx.Error(w, r, err)
		return
	}
	c.listPages(w, r)
}

func (c *Comp) updatePage(w http.ResponseWriter, r *http.Request) {
	fields, err := httpx.DecodeMap(r)
	if err == nil {
		err = writable("editor.updatePage", fields, page.Writable)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	p, err := c.ownPage(r.Context(), access(r), chi.URLParam(r, "pageID"))
	if err == nil {
		err = c.pages.Update(r.Context(), p.ID, fields)
	}
	if err == nil {
		p, err = c.pages.Get(r.Context(), p.ID)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (c *Comp) deletePage(w http.ResponseWriter, r *http.Request) {
	p, err := c.ownPage(r.Context(), access(r), chi.URLParam(r, "pageID"))
	if err == nil {
		err = c.pages.Delete(r.Context(), p.ID)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Comp) setHomepage(w http.ResponseWriter, r *http.Request) {
	a := access(r)
	p, err := c.ownPage(r.Context(), a, chi.URLParam(r, "pageID"))
	if err == nil {
		err = c.pages.SetHomepage(r.Context(), a.SiteID, p.ID)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	c.listPages(w, r)
}

// ─── sections ──────────────────────────────────────────────────────────────

func (c *Comp) listSections(w http.ResponseWriter, r *http.Request) {
	p, err := c.ownPage(r.Context(), access(r), chi.URLParam(r, "pageID"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	list, err := c.sections.ListByPage(r.Context(), p.ID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if list == nil {
		list = []section.Section{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sections": list})
}

type createSectionReq struct {
	Type      string       `json:"type"      validate:"required,max=50"`
	Variant   *string      `json:"variant"   validate:"omitempty,max=50"`
	Content   content.JSON `json:"content"`
	Settings  content.JSON `json:"settings"`
	SortOrder *int         `json:"sortOrder" validate:"omitempty,gte=0"`
}

// createSection appends to the page unless the client picked a sort order.
// Missing content and variant are seeded from the section type defaults.
func (c *Comp) createSection(w http.ResponseWriter, r *http.Request) {
	const op = "editor.createSection"
	var req createSectionReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	a := access(r)
	p, err := c.ownPage(r.Context(), a, chi.URLParam(r, "pageID"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	sec := &section.Section{
		PageID:   p.ID,
		TenantID: a.TenantID,
		Type:     req.Type,
		Variant:  req.Variant,
		Content:  req.Content,
		Settings: req.Settings,
	}
	if req.SortOrder != nil {
		sec.SortOrder = *req.SortOrder
	} else if sec.SortOrder, err = c.sections.NextSortOrder(r.Context(), p.ID); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := c.sections.Create(r.Context(), sec); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sec)
}

type reorderReq struct {
	IDs []string `json:"ids" validate:"required,dive,required"`
}

// reorderSections rewrites the whole page order atomically.  ids must list
// every section on the page exactly once.
func (c *Comp) reorderSections(w http.ResponseWriter, r *http.Request) {
	const op = "editor.reorderSections"
	var req reorderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}
	p, err := c.ownPage(r.Context(), access(r), chi.URLParam(r, "pageID"))
	if err == nil {
		err = c.sections.Reorder(r.Context(), p.ID, req.IDs)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	c.listSections(w, r)
}

func (c *Comp) updateSection(w http.ResponseWriter, r *http.Request) {
	fields, err := httpx.DecodeMap(r)
	if err == nil {
		err = writable("editor.updateSection", fields, section.Writable)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	s, err := c.ownSection(r.Context(), access(r), chi.URLParam(r, "sectionID"))
	if err == nil {
		err = c.sections.Update(r.Context(), s.ID, fields)
	}
	if err == nil {
		s, err = c.sections.Get(r.Context(), s.ID)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (c *Comp) deleteSection(w http.ResponseWriter, r *http.Request) {
	s, err := c.ownSection(r.Context(), access(r), chi.URLParam(r, "sectionID"))
	if err == nil {
		err = c.sections.Delete(r.Context(), s.ID)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Comp) duplicateSection(w http.ResponseWriter, r *http.Request) {
	a := access(r)
	s, err := c.ownSection(r.Context(), a, chi.URLParam(r, "sectionID"))
	if err == nil {
		s, err = c.sections.Duplicate(r.Context(), s.ID, a.TenantID)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}
