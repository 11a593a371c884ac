// internal/publish/engine.go
//
// Publish/versioning engine.
//
// Context
// -------
// Versions form an append-only log per site: version numbers start at 1,
// grow by exactly one per publish or rollback, and are never reused.
// Content is what rewinds.  A rollback inserts a new version whose
// snapshot is the target's snapshot, verbatim.
//
// Workflow (Publish)
// ------------------
//  1. Lock the site row and check it belongs to the tenant.
//  2. Read the highest version (0 when none).
//  3. Read pages and their sections; sort sections per page.
//  4. Assemble the snapshot.
//  5. Clear is_current on every row of the site.
//  6. Insert version+1 flagged current.
//  7. Mark the site published.
//
// With a TxRunner (the MySQL deployment) all seven steps run in one
// transaction and the row lock in step 1 serialises concurrent publishers
// of the same site.  Without one the steps run in sequence; a failure
// between 5 and 6 leaves the site with no current version until the next
// successful publish, and Current returns nil in that window.
//
// Listeners run after the write commits and never affect the result.
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
package publish

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/metrics"
	"github.com/yanizio/sitebuilder/internal/page"
	"github.com/yanizio/sitebuilder/internal/section"
	"github.com/yanizio/sitebuilder/internal/site"
)

// Sites is the slice of the site store the engine needs.
type Sites interface {
	Lock(ctx context.Context, id string) (*site.Site, error)
	SetStatus(ctx context.Context, id string, st site.Status) error
}

// Pages lists a site's pages.
type Pages interface {
	ListBySite(ctx context.Context, siteID string) ([]page.Page, error)
}

// Sections lists the sections of several pages at once.
type Sections interface {
	ListByPages(ctx context.Context, pageIDs []string) ([]section.Section, error)
}

// TxRunner runs fn inside one transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Flusher persists pending autosave edits for a site.
type Flusher interface {
	FlushSite(ctx context.Context, siteID string) error
}

// EventKind distinguishes a fresh publish from a rollback.
type EventKind string

const (
	EventPublish  EventKind = "publish"
	EventRollback EventKind = "rollback"
)

// Event describes a committed version change.
type Event struct {
	Kind     EventKind
	SiteID   string
	SiteSlug string
	Version  int
}

// Listener is notified after a version change commits.
type Listener func(ctx context.Context, ev Event)

// Engine creates and rolls back published versions.
type Engine struct {
	repo      Repository
	sites     Sites
	pages     Pages
	sections  Sections
	tx        TxRunner
	flusher   Flusher
	listeners []Listener
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTx runs every write sequence inside one transaction.
func WithTx(tx TxRunner) Option { return func(e *Engine) { e.tx = tx } }

// WithFlusher enables FlushAndPublish.
func WithFlusher(f Flusher) Option { return func(e *Engine) { e.flusher = f } }

// WithListener adds a post-commit listener.
func WithListener(l Listener) Option { return func(e *Engine) { e.listeners = append(e.listeners, l) } }

// WithClock overrides time.Now; tests use it for stable snapshots.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine wires an Engine.
func NewEngine(repo Repository, sites Sites, pages Pages, sections Sections, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		sites:    sites,
		pages:    pages,
		sections: sections,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AddListener registers l after construction.  Not safe to call
// concurrently with Publish or Rollback.
func (e *Engine) AddListener(l Listener) { e.listeners = append(e.listeners, l) }

func (e *Engine) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.tx == nil {
		return fn(ctx)
	}
	return e.tx.WithinTx(ctx, fn)
}

// Publish snapshots the site's live pages and sections as a new current
// version.
func (e *Engine) Publish(ctx context.Context, siteID, tenantID string) (*Publish, error) {
	const op = "publish.Publish"
	start := time.Now()

	var (
		out  *Publish
		slug string
	)
	err := e.run(ctx, func(ctx context.Context) error {
		s, err := e.sites.Lock(ctx, siteID)
		if err != nil {
			return err
		}
		if s.TenantID != tenantID {
			return apperr.New(apperr.KindNotFound, op, "Site not found.")
		}
		if s.Status == site.StatusArchived {
			return apperr.New(apperr.KindValidation, op, "Archived sites cannot be published.")
		}
		slug = s.Slug

		latest, err := e.repo.LatestVersion(ctx, siteID)
		if err != nil {
			return err
		}
		snap, err := e.buildSnapshot(ctx, s)
		if err != nil {
			return err
		}
		if err := e.repo.ClearCurrent(ctx, siteID); err != nil {
			return err
		}
		p := &Publish{
			ID:        uuid.NewString(),
			SiteID:    siteID,
			TenantID:  tenantID,
			Version:   latest + 1,
			Snapshot:  snap,
			IsCurrent: true,
			CreatedAt: e.now(),
		}
		if err := e.repo.Insert(ctx, p); err != nil {
			return err
		}
		if err := e.sites.SetStatus(ctx, siteID, site.StatusPublished); err != nil {
			return err
		}
		out = p
		return nil
	})

	e.observe(EventPublish, start, err)
	if err != nil {
		zap.S().Warnw("publish failed", "site", siteID, "kind", apperr.KindOf(err), "err", err)
		return nil, err
	}
	zap.S().Infow("site published", "site", siteID, "version", out.Version)
	e.notify(ctx, Event{Kind: EventPublish, SiteID: siteID, SiteSlug: slug, Version: out.Version})
	return out, nil
}

// FlushAndPublish flushes pending autosave edits for the site and then
// publishes.  A failed flush aborts the publish.
func (e *Engine) FlushAndPublish(ctx context.Context, siteID, tenantID string) (*Publish, error) {
	if e.flusher != nil {
		if err := e.flusher.FlushSite(ctx, siteID); err != nil {
			zap.S().Warnw("publish aborted: autosave flush failed", "site", siteID, "err", err)
			return nil, err
		}
	}
	return e.Publish(ctx, siteID, tenantID)
}

// Rollback makes a copy of version target the new current version.  The
// version counter keeps growing.  A missing target is NOT_FOUND and
// nothing is written.
func (e *Engine) Rollback(ctx context.Context, siteID string, target int) (*Publish, error) {
	const op = "publish.Rollback"
	start := time.Now()

	var (
		out  *Publish
		slug string
	)
	err := e.run(ctx, func(ctx context.Context) error {
		s, err := e.sites.Lock(ctx, siteID)
		if err != nil {
			return err
		}
		slug = s.Slug

		old, err := e.repo.ByVersion(ctx, siteID, target)
		if err != nil {
			return err
		}
		if old == nil {
			return apperr.New(apperr.KindNotFound, op, "Version not found")
		}
		if err := e.repo.ClearCurrent(ctx, siteID); err != nil {
			return err
		}
		latest, err := e.repo.LatestVersion(ctx, siteID)
		if err != nil {
			return err
		}
		note := fmt.Sprintf("Rollback to version %d", target)
		p := &Publish{
			ID:        uuid.NewString(),
			SiteID:    siteID,
			TenantID:  old.TenantID,
			Version:   latest + 1,
			Snapshot:  old.Snapshot.Clone(),
			Changelog: &note,
			IsCurrent: true,
			CreatedAt: e.now(),
		}
		if err := e.repo.Insert(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})

	e.observe(EventRollback, start, err)
	if err != nil {
		zap.S().Warnw("rollback failed", "site", siteID, "target", target, "kind", apperr.KindOf(err), "err", err)
		return nil, err
	}
	zap.S().Infow("site rolled back", "site", siteID, "target", target, "version", out.Version)
	e.notify(ctx, Event{Kind: EventRollback, SiteID: siteID, SiteSlug: slug, Version: out.Version})
	return out, nil
}

// ListBySite returns every version, newest first.
func (e *Engine) ListBySite(ctx context.Context, siteID string) ([]Publish, error) {
	return e.repo.ListBySite(ctx, siteID)
}

// Current returns the current version, or nil when there is none.
func (e *Engine) Current(ctx context.Context, siteID string) (*Publish, error) {
	return e.repo.Current(ctx, siteID)
}

// ByVersion returns one version, or nil when it does not exist.
func (e *Engine) ByVersion(ctx context.Context, siteID string, v int) (*Publish, error) {
	return e.repo.ByVersion(ctx, siteID, v)
}

// LatestVersion returns the highest version number, or 0.  It is not the
// current version after a rollback chain; use Current for that.
func (e *Engine) LatestVersion(ctx context.Context, siteID string) (int, error) {
	return e.repo.LatestVersion(ctx, siteID)
}

func (e *Engine) buildSnapshot(ctx context.Context, s *site.Site) (Snapshot, error) {
	pages, err := e.pages.ListBySite(ctx, s.ID)
	if err != nil {
		return Snapshot{}, err
	}
	ids := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	secs, err := e.sections.ListByPages(ctx, ids)
	if err != nil {
		return Snapshot{}, err
	}

	byPage := make(map[string][]section.Section, len(pages))
	for _, sec := range secs {
		byPage[sec.PageID] = append(byPage[sec.PageID], sec)
	}

	snap := Snapshot{
		Pages:       make([]SnapshotPage, 0, len(pages)),
		Settings:    content.Clone(s.Settings),
		PublishedAt: e.now(),
	}
	for _, p := range pages {
		list := byPage[p.ID]
		sortSections(list)

		sp := SnapshotPage{
			ID:         p.ID,
			Slug:       p.Slug,
			Title:      p.Title,
			IsHomepage: p.IsHomepage,
			SEO:        content.Clone(p.SEO),
			Sections:   make([]SnapshotSection, 0, len(list)),
		}
		for _, sec := range list {
			order := sec.SortOrder
			ss := SnapshotSection{
				ID:        sec.ID,
				Type:      sec.Type,
				Content:   content.Clone(sec.Content),
				Settings:  content.Clone(sec.Settings),
				SortOrder: &order,
			}
			if sec.Variant != nil {
				v := *sec.Variant
				ss.Variant = &v
			}
			sp.Sections = append(sp.Sections, ss)
		}
		snap.Pages = append(snap.Pages, sp)
	}
	return snap, nil
}

// sortSections orders by sort_order, then created_at, then id, matching
// the store's ORDER BY so snapshots do not depend on source order.
func sortSections(list []section.Section) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (e *Engine) observe(kind EventKind, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PublishTotal.WithLabelValues(string(kind), outcome).Inc()
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) notify(ctx context.Context, ev Event) {
	for _, l := range e.listeners {
		l(ctx, ev)
	}
}
