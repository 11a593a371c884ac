// internal/hosting/store.go
//
// site_domains persistence.  Rows mirror the provider's last-known state so
// the public resolver can map Host headers to sites without calling out.
package hosting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/database"
)

// Domain is one custom domain attached to a site.
type Domain struct {
	Domain     string    `db:"domain"     json:"domain"`
	SiteID     string    `db:"site_id"    json:"siteId"`
	TenantID   string    `db:"tenant_id"  json:"tenantId"`
	Verified   bool      `db:"verified"   json:"verified"`
	Configured bool      `db:"configured" json:"configured"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

const domainColumns = `domain, site_id, tenant_id, verified, configured, created_at, updated_at`

// Store reads and writes site_domains.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db, now: time.Now} }

// Get returns the row for domain or NOT_FOUND.
func (s *Store) Get(ctx context.Context, domain string) (*Domain, error) {
	const q = `SELECT ` + domainColumns + ` FROM site_domains WHERE domain = ?`
	var d Domain
	if err := sqlx.GetContext(ctx, database.Conn(ctx, s.db), &d, q, domain); err != nil {
		return nil, apperr.FromDB("hosting.Store.Get", err)
	}
	return &d, nil
}

// ListBySite returns a site's domains ordered by name.
func (s *Store) ListBySite(ctx context.Context, siteID string) ([]Domain, error) {
	const q = `SELECT ` + domainColumns + ` FROM site_domains WHERE site_id = ? ORDER BY domain`
	out := []Domain{}
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, s.db), &out, q, siteID); err != nil {
		return nil, apperr.FromDB("hosting.Store.ListBySite", err)
	}
	return out, nil
}

// Upsert inserts d or refreshes its state flags.  The owning site of an
// existing row is never changed.
func (s *Store) Upsert(ctx context.Context, d *Domain) error {
	const q = `
INSERT INTO site_domains (` + domainColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE verified = VALUES(verified), configured = VALUES(configured),
    updated_at = VALUES(updated_at)`
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, q,
		d.Domain, d.SiteID, d.TenantID, d.Verified, d.Configured, d.CreatedAt, d.UpdatedAt)
	return apperr.FromDB("hosting.Store.Upsert", err)
}

// Delete removes domain.  Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, domain string) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM site_domains WHERE domain = ?`, domain)
	return apperr.FromDB("hosting.Store.Delete", err)
}

// SlugForDomain returns the slug of the site a verified domain serves.
func (s *Store) SlugForDomain(ctx context.Context, domain string) (string, error) {
	const q = `
SELECT s.slug FROM site_domains d
JOIN sites s ON s.id = d.site_id
WHERE d.domain = ? AND d.verified = TRUE`
	var slug string
	err := sqlx.GetContext(ctx, database.Conn(ctx, s.db), &slug, q, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.KindNotFound, "hosting.Store.SlugForDomain", "")
	}
	if err != nil {
		return "", apperr.FromDB("hosting.Store.SlugForDomain", err)
	}
	return slug, nil
}
