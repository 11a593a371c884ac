// internal/page/page.go
//
// Page Store.
//
// Context
// -------
// Pages belong to one site and carry a denormalised tenant_id for the
// authorization check.  Presentation order is sort_order ASC with
// created_at and id as tie-breakers so two pages sharing an order value
// always list the same way.
//
// Homepage rule
// -------------
// Exactly one page per site should have is_homepage set.  Application code
// keeps that true: the first page created for a site becomes the homepage,
// SetHomepage moves the flag inside one transaction, and Delete refuses to
// remove the homepage.
//
// Notes
// -----
//   - Update takes partial field maps (editor PATCH and autosave).
//   - UpdateOrder is the per-row baseline; there is no atomic page variant
//     because page lists are short and rarely reordered concurrently.
//   - Oxford commas, two spaces after periods.
package page

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

// Page mirrors one row in `pages`.
type Page struct {
	ID         string       `db:"id"          json:"id"`
	SiteID     string       `db:"site_id"     json:"site_id"`
	TenantID   string       `db:"tenant_id"   json:"tenant_id"`
	Slug       string       `db:"slug"        json:"slug"`
	Title      string       `db:"title"       json:"title"`
	IsHomepage bool         `db:"is_homepage" json:"is_homepage"`
	SortOrder  int          `db:"sort_order"  json:"sort_order"`
	SEO        content.JSON `db:"seo"         json:"seo"`
	CreatedAt  time.Time    `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"  json:"updated_at"`
}

const columns = `id, site_id, tenant_id, slug, title, is_homepage, sort_order, seo, created_at, updated_at`

const orderBy = ` ORDER BY sort_order ASC, created_at ASC, id ASC`

var updatable = map[string]bool{
	"slug":       true,
	"title":      true,
	"seo":        true,
	"sort_order": true,
	"updated_at": true,
}

// Writable reports whether field may be set through Update.
func Writable(field string) bool { return updatable[field] }

// Store reads and writes pages.
type Store struct {
	db  *sqlx.DB
	tx  *database.TxRunner
	now func() time.Time
}

// NewStore wires a Store to the shared pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		tx:  database.NewTxRunner(db),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ListBySite returns a site's pages in presentation order.
func (s *Store) ListBySite(ctx context.Context, siteID string) ([]Page, error) {
	q := `SELECT ` + columns + ` FROM pages WHERE site_id = ?` + orderBy
	rows := make([]Page, 0, 8)
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, s.db), &rows, q, siteID); err != nil {
		return nil, apperr.FromDB("page.ListBySite", err)
	}
	return rows, nil
}

// Get returns one page.  A missing row is NOT_FOUND.
func (s *Store) Get(ctx context.Context, id string) (*Page, error) {
	var p Page
	q := `SELECT ` + columns + ` FROM pages WHERE id = ? LIMIT 1`
	if err := sqlx.GetContext(ctx, database.Conn(ctx, s.db), &p, q, id); err != nil {
		return nil, apperr.FromDB("page.Get", err)
	}
	return &p, nil
}

// Create inserts p.  An empty slug is derived from the title.  When
// appendLast is set, sort_order is placed after the current last page.
// The first page of a site always becomes its homepage.
func (s *Store) Create(ctx context.Context, p *Page, appendLast bool) error {
	const op = "page.Create"
	if strings.TrimSpace(p.Title) == "" {
		return apperr.New(apperr.KindValidation, op, "Page title is required.")
	}
	if p.Slug == "" {
		p.Slug = routing.MakeSlug(p.Title, "page")
	}
	if !routing.ValidSlug(p.Slug) {
		return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Invalid slug %q.", p.Slug))
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.SEO == nil {
		p.SEO = content.JSON{}
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db)

		var stats struct {
			Count int `db:"n"`
			Next  int `db:"next"`
		}
		const qs = `SELECT COUNT(*) AS n, COALESCE(MAX(sort_order) + 1, 0) AS next FROM pages WHERE site_id = ?`
		if err := sqlx.GetContext(ctx, conn, &stats, qs, p.SiteID); err != nil {
			return apperr.FromDB(op, err)
		}
		if stats.Count == 0 {
			p.IsHomepage = true
		}
		if appendLast {
			p.SortOrder = stats.Next
		}

		const q = `INSERT INTO pages (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := conn.ExecContext(ctx, q,
			p.ID, p.SiteID, p.TenantID, p.Slug, p.Title, p.IsHomepage,
			p.SortOrder, p.SEO, p.CreatedAt, p.UpdatedAt)
		return apperr.FromDB(op, err)
	})
}

// Update applies a partial field map.  is_homepage is not writable here;
// use SetHomepage.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	const op = "page.Update"
	if v, ok := fields["slug"]; ok {
		if slug, _ := v.(string); !routing.ValidSlug(slug) {
			return apperr.New(apperr.KindValidation, op, fmt.Sprintf("Invalid slug %q.", slug))
		}
	}
	q, args, err := database.BuildUpdate("pages", id, fields, updatable)
	if err != nil || q == "" {
		return err
	}
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.FromDB(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, op, "Page not found.")
	}
	return nil
}

// Delete removes a page and, through the foreign key, its sections.  The
// homepage cannot be deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "page.Delete"
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsHomepage {
		return apperr.New(apperr.KindValidation, op, "The homepage cannot be deleted.  Choose another homepage first.")
	}
	_, err = database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	return apperr.FromDB(op, err)
}

// UpdateOrder writes sort_order for each item, one statement per item.
func (s *Store) UpdateOrder(ctx context.Context, items []database.OrderItem) error {
	return database.UpdateOrder(ctx, database.Conn(ctx, s.db), "pages", items)
}

// SetHomepage makes pageID the only homepage of siteID.
func (s *Store) SetHomepage(ctx context.Context, siteID, pageID string) error {
	const op = "page.SetHomepage"
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db)

		var id string
		err := sqlx.GetContext(ctx, conn, &id,
			`SELECT id FROM pages WHERE id = ? AND site_id = ? FOR UPDATE`, pageID, siteID)
		if err != nil {
			return apperr.FromDB(op, err)
		}
		_, err = conn.ExecContext(ctx,
			`UPDATE pages SET is_homepage = (id = ?), updated_at = ? WHERE site_id = ?`,
			pageID, s.now(), siteID)
		return apperr.FromDB(op, err)
	})
}
