// internal/acl/store.go
//
// Query helpers for tenant role checks.
//
// Context
// -------
// Access is granted per tenant:
//
//	tenant_members (tenant_id, user_id, role)
//	sites          (id, tenant_id, …)
//
// Components need answers to two questions:
//  1. Which role does user X hold in tenant T?           → `TenantRole()`
//  2. Which tenant owns site S, and what is X's role?   → `SiteRole()`
//
// The helpers run one parameterised query each; callers may cache results
// per request.
//
// Notes
// -----
// • A missing membership is reported as NOT_FOUND so middleware can turn
//   it into FORBIDDEN without a second query.
// • Oxford commas, two spaces after periods.
// • Max line length 100 columns.
package acl

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// Role names, highest privilege first.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Editors covers every role allowed to change site content.
var Editors = []string{RoleOwner, RoleAdmin, RoleEditor}

// Admins covers roles allowed to manage domains and publishing settings.
var Admins = []string{RoleOwner, RoleAdmin}

// Access is the outcome of a site-scoped role lookup.
type Access struct {
	SiteID   string `db:"site_id"`
	TenantID string `db:"tenant_id"`
	Role     string `db:"role"`
}

// Store runs membership queries against the control-plane database.
type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// TenantRole returns userID's role in tenantID.
func (s *Store) TenantRole(ctx context.Context, userID, tenantID string) (string, error) {
	const q = `SELECT role
                 FROM tenant_members
                WHERE tenant_id = ? AND user_id = ?`

	var role string
	err := s.db.GetContext(ctx, &role, q, tenantID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.KindNotFound, "acl.TenantRole", "")
	}
	if err != nil {
		return "", apperr.FromDB("acl.TenantRole", err)
	}
	return role, nil
}

// SiteRole returns the owning tenant of siteID and userID's role in it.
// Unknown sites and non-members both yield NOT_FOUND.
func (s *Store) SiteRole(ctx context.Context, userID, siteID string) (*Access, error) {
	const q = `SELECT s.id AS site_id, s.tenant_id, m.role
                 FROM sites s
                 JOIN tenant_members m ON m.tenant_id = s.tenant_id
                WHERE s.id = ? AND m.user_id = ?`

	var a Access
	err := s.db.GetContext(ctx, &a, q, siteID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "acl.SiteRole", "")
	}
	if err != nil {
		return nil, apperr.FromDB("acl.SiteRole", err)
	}
	return &a, nil
}

// Allowed reports whether role is one of roles.
func Allowed(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
