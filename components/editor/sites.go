package editor

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/sitebuilder/internal/acl"
	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/auth"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/httpx"
	"github.com/yanizio/sitebuilder/internal/site"
)

var validate = validator.New()

// invalid turns a validator failure into a user-facing VALIDATION error.
func invalid(op string, err error) error {
	if err == nil {
		return nil
	}
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		fe := ves[0]
		return &apperr.Error{Kind: apperr.KindValidation, Op: op,
			Message: fmt.Sprintf("Field %q is invalid (%s).", fe.Field(), fe.Tag()), Err: err}
	}
	return apperr.Wrap(apperr.KindValidation, op, err)
}

// writable rejects field maps that name columns the store will not update.
func writable(op string, fields map[string]any, ok func(string) bool) error {
	if len(fields) == 0 {
		return apperr.New(apperr.KindValidation, op, "Nothing to update.")
	}
	for k := range fields {
		if k == "updated_at" || !ok(k) {
			return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Field %q cannot be updated.", k))
		}
	}
	return nil
}

// tenantAccess checks the caller's membership in tenantID.
func (c *Comp) tenantAccess(r *http.Request, tenantID string, roles []string) error {
	role, err := c.roles.TenantRole(r.Context(), auth.MustUser(r.Context()), tenantID)
	if apperr.IsKind(err, apperr.KindNotFound) || (err == nil && !acl.Allowed(role, roles)) {
		return apperr.New(apperr.KindForbidden, "editor.tenant", "")
	}
	return err
}

func (c *Comp) listSites(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		httpx.Error(w, r, apperr.New(apperr.KindValidation, "editor.listSites", "tenantId is required."))
		return
	}
	all := []string{acl.RoleOwner, acl.RoleAdmin, acl.RoleEditor, acl.RoleViewer}
	if err := c.tenantAccess(r, tenantID, all); err != nil {
		httpx.Error(w, r, err)
		return
	}
	list, err := c.sites.ListByTenant(r.Context(), tenantID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if list == nil {
		list = []site.Site{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sites": list})
}

type createSiteReq struct {
	TenantID   string       `json:"tenantId"   validate:"required"`
	Name       string       `json:"name"       validate:"required,max=200"`
	Slug       string       `json:"slug"       validate:"omitempty,max=100"`
	Settings   content.JSON `json:"settings"`
	TemplateID *string      `json:"templateId"`
}

func (c *Comp) createSite(w http.ResponseWriter, r *http.Request) {
	const op = "editor.createSite"
	var req createSiteReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := invalid(op, validate.Struct(req)); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := c.tenantAccess(r, req.TenantID, acl.Admins); err != nil {
		httpx.Error(w, r, err)
		return
	}

	rec := &site.Site{
		TenantID:   req.TenantID,
		Name:       req.Name,
		Slug:       req.Slug,
		Settings:   req.Settings,
		TemplateID: req.TemplateID,
	}
	if err := c.sites.Create(r.Context(), rec); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (c *Comp) getSite(w http.ResponseWriter, r *http.Request) {
	s, err := c.sites.Get(r.Context(), access(r).SiteID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (c *Comp) updateSite(w http.ResponseWriter, r *http.Request) {
	fields, err := httpx.DecodeMap(r)
	if err == nil {
		err = writable("editor.updateSite", fields, site.Writable)
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := c.sites.Update(r.Context(), access(r).SiteID, fields); err != nil {
		httpx.Error(w, r, err)
		return
	}
	c.getSite(w, r)
}

type statusReq struct {
	Status site.Status `json:"status" validate:"required,oneof=draft archived"`
}

// setStatus archives or un-archives a site.  The published state is only
// reachable through publish.
func (c *Comp) setStatus(w http.ResponseWriter, r *http.Request) {
	const op = "editor.setStatus"
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Error(w, r, apperr.New(apperr.KindValidation, op, "Status must be draft or archived."))
		return
	}
	if err := c.sites.SetStatus(r.Context(), access(r).SiteID, req.Status); err != nil {
		httpx.Error(w, r, err)
		return
	}
	c.getSite(w, r)
}
