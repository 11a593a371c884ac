// internal/section/section.go
//
// Section Store.
//
// Context
// -------
// Sections are ordered content blocks inside a page.  `type` keys into the
// content registry; `variant` picks a rendering sub-template and may be
// NULL (renderer default).  Presentation order is sort_order ASC, then
// created_at ASC, then id ASC.  The secondary keys matter because
// Duplicate writes original+1 without shifting siblings, so equal
// sort_order values are expected.
//
// Reordering
// ----------
//   - UpdateOrder: one UPDATE per item, first error wins, not atomic.
//   - Reorder:     the full ordered id list for a page, written inside one
//                  transaction; all-or-nothing.
//
// Notes
// -----
//   - Create validates content against the registry and seeds defaults.
//   - Update does not validate content; the autosave path writes whatever
//     the editor last held.
//   - Oxford commas, two spaces after periods.
package section

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/database"
)

// Section mirrors one row in `sections`.
type Section struct {
	ID        string       `db:"id"         json:"id"`
	PageID    string       `db:"page_id"    json:"page_id"`
	TenantID  string       `db:"tenant_id"  json:"tenant_id"`
	Type      string       `db:"type"       json:"type"`
	Variant   *string      `db:"variant"    json:"variant"`
	Content   content.JSON `db:"content"    json:"content"`
	Settings  content.JSON `db:"settings"   json:"settings"`
	SortOrder int          `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

const columns = `id, page_id, tenant_id, type, variant, content, settings, sort_order, created_at, updated_at`

const orderBy = ` ORDER BY sort_order ASC, created_at ASC, id ASC`

var updatable = map[string]bool{
	"type":       true,
	"variant":    true,
	"content":    true,
	"settings":   true,
	"sort_order": true,
	"updated_at": true,
}

// Writable reports whether field may be set through Update.
func Writable(field string) bool { return updatable[field] }

// Store reads and writes sections.
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

// ListByPage returns a page's sections in presentation order.
func (s *Store) ListByPage(ctx context.Context, pageID string) ([]Section, error) {
	q := `SELECT ` + columns + ` FROM sections WHERE page_id = ?` + orderBy
	rows := make([]Section, 0, 16)
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, s.db), &rows, q, pageID); err != nil {
		return nil, apperr.FromDB("section.ListByPage", err)
	}
	return rows, nil
}

// ListByPages returns the sections of every page in pageIDs, each page's
// sections in presentation order.  Rows of different pages are interleaved;
// callers group by PageID.
func (s *Store) ListByPages(ctx context.Context, pageIDs []string) ([]Section, error) {
	const op = "section.ListByPages"
	if len(pageIDs) == 0 {
		return []Section{}, nil
	}
	q, args, err := sqlx.In(`SELECT `+columns+` FROM sections WHERE page_id IN (?)`+orderBy, pageIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServer, op, err)
	}
	rows := make([]Section, 0, 16*len(pageIDs))
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, s.db), &rows, q, args...); err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return rows, nil
}

// Get returns one section.  A missing row is NOT_FOUND.
func (s *Store) Get(ctx context.Context, id string) (*Section, error) {
	var sec Section
	q := `SELECT ` + columns + ` FROM sections WHERE id = ? LIMIT 1`
	if err := sqlx.GetContext(ctx, database.Conn(ctx, s.db), &sec, q, id); err != nil {
		return nil, apperr.FromDB("section.Get", err)
	}
	return &sec, nil
}

// NextSortOrder returns one past the highest sort_order on the page, or 0.
func (s *Store) NextSortOrder(ctx context.Context, pageID string) (int, error) {
	var next int
	err := sqlx.GetContext(ctx, database.Conn(ctx, s.db), &next,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM sections WHERE page_id = ?`, pageID)
	if err != nil {
		return 0, apperr.FromDB("section.NextSortOrder", err)
	}
	return next, nil
}

// Create validates sec against the content registry and inserts it.  Nil
// content and variant are seeded from the registry defaults.
func (s *Store) Create(ctx context.Context, sec *Section) error {
	const op = "section.Create"
	if sec.Content == nil || sec.Variant == nil {
		c, v := content.DefaultsFor(sec.Type)
		if sec.Content == nil {
			sec.Content = c
		}
		if sec.Variant == nil {
			sec.Variant = v
		}
	}
	if sec.Settings == nil {
		sec.Settings = content.JSON{}
	}
	if err := content.Validate(sec.Type, sec.Variant, sec.Content); err != nil {
		return err
	}
	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	sec.CreatedAt = s.now()
	sec.UpdatedAt = sec.CreatedAt
	return s.insert(ctx, op, sec)
}

func (s *Store) insert(ctx context.Context, op string, sec *Section) error {
	const q = `INSERT INTO sections (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, q,
		sec.ID, sec.PageID, sec.TenantID, sec.Type, sec.Variant,
		sec.Content, sec.Settings, sec.SortOrder, sec.CreatedAt, sec.UpdatedAt)
	return apperr.FromDB(op, err)
}

// Update applies a partial field map.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	const op = "section.Update"
	q, args, err := database.BuildUpdate("sections", id, fields, updatable)
	if err != nil || q == "" {
		return err
	}
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.FromDB(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, op, "Section not found.")
	}
	return nil
}

// Delete removes one section.  Deleting a missing section is NOT_FOUND.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "section.Delete"
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return apperr.FromDB(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, op, "Section not found.")
	}
	return nil
}

// UpdateOrder writes sort_order for each item, one statement per item.
// Empty input performs no writes.
func (s *Store) UpdateOrder(ctx context.Context, items []database.OrderItem) error {
	return database.UpdateOrder(ctx, database.Conn(ctx, s.db), "sections", items)
}

// Reorder assigns sort_order 0..n-1 to orderedIDs inside one transaction.
// orderedIDs must list every section of the page exactly once.
func (s *Store) Reorder(ctx context.Context, pageID string, orderedIDs []string) error {
	const op = "section.Reorder"
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db)

		var current []string
		err := sqlx.SelectContext(ctx, conn, &current,
			`SELECT id FROM sections WHERE page_id = ? FOR UPDATE`, pageID)
		if err != nil {
			return apperr.FromDB(op, err)
		}
		if msg := sameSet(current, orderedIDs); msg != "" {
			return apperr.New(apperr.KindValidation, op, msg)
		}

		now := s.now()
		for i, id := range orderedIDs {
			_, err := conn.ExecContext(ctx,
				`UPDATE sections SET sort_order = ?, updated_at = ? WHERE id = ? AND page_id = ?`,
				i, now, id, pageID)
			if err != nil {
				return apperr.FromDB(op, err)
			}
		}
		return nil
	})
}

// sameSet returns a user-facing complaint when ordered is not a
// permutation of current, or "" when it is.
func sameSet(current, ordered []string) string {
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	seen := make(map[string]bool, len(ordered))
	for _, id := range ordered {
		if !have[id] {
			return fmt.Sprintf("Section %q does not belong to this page.", id)
		}
		if seen[id] {
			return fmt.Sprintf("Section %q is listed twice.", id)
		}
		seen[id] = true
	}
	if len(seen) != len(have) {
		return fmt.Sprintf("Expected %d sections, got %d.", len(have), len(seen))
	}
	return ""
}

// Duplicate copies a section onto the same page with sort_order one past
// the original.  Siblings are not shifted.  A section owned by another
// tenant is reported as NOT_FOUND.
func (s *Store) Duplicate(ctx context.Context, id, tenantID string) (*Section, error) {
	const op = "section.Duplicate"
	orig, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.TenantID != tenantID {
		return nil, apperr.New(apperr.KindNotFound, op, "Section not found.")
	}

	cp := &Section{
		ID:        uuid.NewString(),
		PageID:    orig.PageID,
		TenantID:  orig.TenantID,
		Type:      orig.Type,
		Content:   content.Clone(orig.Content),
		Settings:  content.Clone(orig.Settings),
		SortOrder: orig.SortOrder + 1,
		CreatedAt: s.now(),
	}
	if orig.Variant != nil {
		v := *orig.Variant
		cp.Variant = &v
	}
	cp.UpdatedAt = cp.CreatedAt

	if err := s.insert(ctx, op, cp); err != nil {
		return nil, err
	}
	return cp, nil
}
