// internal/database/update.go
//
// Shared write helpers for the page, section, and site stores.
//
//   - BuildUpdate turns a partial field map into one parameterised UPDATE,
//     restricted to a column whitelist.
//   - UpdateOrder is the baseline bulk reorder: one UPDATE per item, fanned
//     out concurrently, first error surfaced.
package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// OrderItem is one entry of a bulk reorder request.
type OrderItem struct {
	ID        string `json:"id"         validate:"required"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

// maxOrderFanOut caps concurrent UPDATEs issued by UpdateOrder.
const maxOrderFanOut = 8

// BuildUpdate returns `UPDATE <table> SET … WHERE id = ?` and its args.
// Columns are emitted in sorted order so the statement text is stable.
// updated_at is always set; callers may pass their own value.  An empty
// query means there was nothing to write.
func BuildUpdate(table, id string, fields map[string]any, allowed map[string]bool) (string, []any, error) {
	cols := make([]string, 0, len(fields)+1)
	for k := range fields {
		if !allowed[k] {
			return "", nil, apperr.New(apperr.KindValidation, table+".update",
				fmt.Sprintf("Field %q cannot be updated.", k))
		}
		cols = append(cols, k)
	}
	if len(cols) == 0 {
		return "", nil, nil
	}
	if _, ok := fields["updated_at"]; !ok {
		cols = append(cols, "updated_at")
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
		v, ok := fields[c]
		if !ok && c == "updated_at" {
			v = time.Now().UTC()
		}
		args = append(args, normalize(v))
	}
	args = append(args, id)

	q := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	return q, args, nil
}

// normalize converts decoded-JSON values into driver-friendly types.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return datatypes.JSONMap(t)
	case datatypes.JSONMap:
		return t
	case float64:
		// JSON numbers arrive as float64; integral values map to int columns.
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	}
	return v
}

// UpdateOrder writes sort_order for every item.  Writes are not atomic: a
// failure leaves earlier items updated.  Empty input performs zero writes.
func UpdateOrder(ctx context.Context, db DBTX, table string, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	q := "UPDATE " + table + " SET sort_order = ?, updated_at = ? WHERE id = ?"
	now := time.Now().UTC()

	var g errgroup.Group
	g.SetLimit(maxOrderFanOut)
	for _, it := range items {
		g.Go(func() error {
			if _, err := db.ExecContext(ctx, q, it.SortOrder, now, it.ID); err != nil {
				return apperr.FromDB(table+".UpdateOrder", err)
			}
			return nil
		})
	}
	return g.Wait()
}
