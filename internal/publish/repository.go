// internal/publish/repository.go
//
// SQL access for the `publishes` table.
//
// Notes
// -----
//   - Current and ByVersion return (nil, nil) when no row matches; the
//     engine decides whether absence is an error.
//   - The unique (site_id, version) index makes a racing insert fail with
//     CONFLICT rather than reuse a version number.
//   - Oxford commas, two spaces after periods.
package publish

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/database"
)

// Repository is the persistence contract the engine runs against.
type Repository interface {
	LatestVersion(ctx context.Context, siteID string) (int, error)
	ClearCurrent(ctx context.Context, siteID string) error
	Insert(ctx context.Context, p *Publish) error
	ListBySite(ctx context.Context, siteID string) ([]Publish, error)
	Current(ctx context.Context, siteID string) (*Publish, error)
	ByVersion(ctx context.Context, siteID string, version int) (*Publish, error)
}

const columns = `id, site_id, tenant_id, version, snapshot, changelog, is_current, created_at`

// SQLRepository implements Repository over MySQL.
type SQLRepository struct {
	db *sqlx.DB
}

func NewSQLRepository(db *sqlx.DB) *SQLRepository { return &SQLRepository{db: db} }

// LatestVersion returns the highest version for the site, or 0.
func (r *SQLRepository) LatestVersion(ctx context.Context, siteID string) (int, error) {
	var v int
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &v,
		`SELECT COALESCE(MAX(version), 0) FROM publishes WHERE site_id = ?`, siteID)
	if err != nil {
		return 0, apperr.FromDB("publish.LatestVersion", err)
	}
	return v, nil
}

func (r *SQLRepository) ClearCurrent(ctx context.Context, siteID string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE publishes SET is_current = FALSE WHERE site_id = ? AND is_current = TRUE`, siteID)
	return apperr.FromDB("publish.ClearCurrent", err)
}

func (r *SQLRepository) Insert(ctx context.Context, p *Publish) error {
	const q = `INSERT INTO publishes (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, q,
		p.ID, p.SiteID, p.TenantID, p.Version, p.Snapshot, p.Changelog, p.IsCurrent, p.CreatedAt)
	return apperr.FromDB("publish.Insert", err)
}

// ListBySite returns every version, newest first.
func (r *SQLRepository) ListBySite(ctx context.Context, siteID string) ([]Publish, error) {
	rows := make([]Publish, 0, 8)
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &rows,
		`SELECT `+columns+` FROM publishes WHERE site_id = ? ORDER BY version DESC`, siteID)
	if err != nil {
		return nil, apperr.FromDB("publish.ListBySite", err)
	}
	return rows, nil
}

// Current returns the row flagged current, or nil.  Should a race have
// left two rows flagged, the higher version wins.
func (r *SQLRepository) Current(ctx context.Context, siteID string) (*Publish, error) {
	return r.one(ctx, "publish.Current",
		`SELECT `+columns+` FROM publishes WHERE site_id = ? AND is_current = TRUE ORDER BY version DESC LIMIT 1`,
		siteID)
}

func (r *SQLRepository) ByVersion(ctx context.Context, siteID string, version int) (*Publish, error) {
	return r.one(ctx, "publish.ByVersion",
		`SELECT `+columns+` FROM publishes WHERE site_id = ? AND version = ? LIMIT 1`,
		siteID, version)
}

func (r *SQLRepository) one(ctx context.Context, op, q string, args ...any) (*Publish, error) {
	var p Publish
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &p, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &p, nil
}
