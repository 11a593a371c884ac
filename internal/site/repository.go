// internal/site/repository.go
//
// SQL access for the `sites` table.
//
// Context
// -------
// Every query goes through database.Conn so a caller running inside
// TxRunner.WithinTx (the publish engine) sees its own transaction.  Errors
// are classified once here with apperr.FromDB and returned unchanged by
// everything above.
//
// Notes
// -----
//   - Lock takes a row lock (SELECT … FOR UPDATE).  Outside a transaction
//     the lock is released as soon as the statement completes.
//   - Update accepts partial field maps from the autosave coordinator and
//     the settings dialog; the column whitelist lives in updatable.
//   - Oxford commas, two spaces after periods.
package site

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/database"
	"github.com/yanizio/sitebuilder/internal/routing"
)

const columns = `id, tenant_id, slug, name, status, settings, template_id, created_at, updated_at`

var updatable = map[string]bool{
	"name":        true,
	"slug":        true,
	"settings":    true,
	"template_id": true,
	"updated_at":  true,
}

// Writable reports whether field may be set through Update.
func Writable(field string) bool { return updatable[field] }

// Store reads and writes sites.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wires a Store to the shared pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns one site by id.  A missing row is NOT_FOUND.
func (s *Store) Get(ctx context.Context, id string) (*Site, error) {
	return s.getOne(ctx, "site.Get", `SELECT `+columns+` FROM sites WHERE id = ? LIMIT 1`, id)
}

// GetBySlug returns one site by its public slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Site, error) {
	return s.getOne(ctx, "site.GetBySlug", `SELECT `+columns+` FROM sites WHERE slug = ? LIMIT 1`, slug)
}

// Lock reads the site row with an exclusive row lock.
func (s *Store) Lock(ctx context.Context, id string) (*Site, error) {
	return s.getOne(ctx, "site.Lock", `SELECT `+columns+` FROM sites WHERE id = ? FOR UPDATE`, id)
}

func (s *Store) getOne(ctx context.Context, op, q string, arg any) (*Site, error) {
	var rec Site
	if err := sqlx.GetContext(ctx, database.Conn(ctx, s.db), &rec, q, arg); err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &rec, nil
}

// ListByTenant returns a tenant's sites, newest first.
func (s *Store) ListByTenant(ctx context.Context, tenantID string) ([]Site, error) {
	const q = `SELECT ` + columns + ` FROM sites WHERE tenant_id = ? ORDER BY created_at DESC, id ASC`
	rows := make([]Site, 0, 8)
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, s.db), &rows, q, tenantID); err != nil {
		return nil, apperr.FromDB("site.ListByTenant", err)
	}
	return rows, nil
}

// Create inserts rec as a draft.  ID, timestamps, and an empty slug are
// filled in; rec is updated in place.
func (s *Store) Create(ctx context.Context, rec *Site) error {
	const op = "site.Create"
	if strings.TrimSpace(rec.Name) == "" {
		return apperr.New(apperr.KindValidation, op, "Site name is required.")
	}
	if rec.Slug == "" {
		rec.Slug = routing.MakeSlug(rec.Name, "site")
	}
	if !routing.ValidSlug(rec.Slug) {
		return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Invalid slug %q.", rec.Slug))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Settings == nil {
		rec.Settings = content.JSON{}
	}
	rec.Status = StatusDraft
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt

	const q = `INSERT INTO sites (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, q,
		rec.ID, rec.TenantID, rec.Slug, rec.Name, rec.Status, rec.Settings,
		rec.TemplateID, rec.CreatedAt, rec.UpdatedAt)
	return apperr.FromDB(op, err)
}

// Update applies a partial field map.  An empty map writes nothing.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	const op = "site.Update"
	if v, ok := fields["slug"]; ok {
		if slug, _ := v.(string); !routing.ValidSlug(slug) {
			return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Invalid slug %q.", slug))
		}
	}
	q, args, err := database.BuildUpdate("sites", id, fields, updatable)
	if err != nil || q == "" {
		return err
	}
	return s.execOne(ctx, op, q, args...)
}

// SetStatus moves a site between draft, published, and archived.
func (s *Store) SetStatus(ctx context.Context, id string, st Status) error {
	const op = "site.SetStatus"
	if !st.Valid() {
		return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Unknown status %q.", st))
	}
	return s.execOne(ctx, op, `UPDATE sites SET status = ?, updated_at = ? WHERE id = ?`, st, s.now(), id)
}

// execOne runs a single-row write and reports NOT_FOUND when nothing
// matched.  Every write stamps updated_at, so an existing row always
// counts as affected.
func (s *Store) execOne(ctx context.Context, op, q string, args ...any) error {
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.FromDB(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, op, "Site not found.")
	}
	return nil
}
