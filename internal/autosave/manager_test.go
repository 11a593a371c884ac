package autosave

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/page"
)

func TestManager_OneSessionPerSite(t *testing.T) {
	m := NewManager(&fakePersister{}, testOpts(), time.Minute)

	a := m.Session("site-a")
	require.Same(t, a, m.Session("site-a"))
	require.NotSame(t, a, m.Session("site-b"))
	require.Equal(t, 2, m.Len())
}

func TestManager_FlushSite(t *testing.T) {
	p := &fakePersister{}
	m := NewManager(p, testOpts(), time.Minute)
	ctx := context.Background()

	require.NoError(t, m.FlushSite(ctx, "unknown"))
	require.Zero(t, m.Len(), "FlushSite must not create sessions")

	require.NoError(t, m.Queue("site-a", KindSections, "s1", map[string]any{"a": 1}))
	require.NoError(t, m.Queue("site-b", KindSections, "s2", map[string]any{"b": 1}))
	require.NoError(t, m.FlushSite(ctx, "site-a"))

	w := p.snapshot()
	require.Len(t, w, 1)
	require.Equal(t, "s1", w[0].ID)
}

func TestManager_EvictsIdleAfterFlushing(t *testing.T) {
	p := &fakePersister{}
	m := NewManager(p, testOpts(), time.Minute)

	require.NoError(t, m.Queue("site-a", KindPages, "p1", map[string]any{"title": "x"}))
	m.Session("site-b")

	n := m.evictIdle(context.Background(), time.Now().Add(2*time.Minute))
	require.Equal(t, 2, n)
	require.Zero(t, m.Len())
	require.Len(t, p.snapshot(), 1)
}

func TestManager_KeepsSessionWhenEvictionFlushFails(t *testing.T) {
	p := &fakePersister{}
	p.setFail(Key{KindPages, "p1"}, apperr.New(apperr.KindNetwork, "page.Update", ""))
	m := NewManager(p, testOpts(), time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Queue("site-a", KindPages, "p1", map[string]any{"title": "x"}))
	later := time.Now().Add(2 * time.Minute)

	require.Zero(t, m.evictIdle(ctx, later))
	require.Equal(t, 1, m.Len())
	c, ok := m.Lookup("site-a")
	require.True(t, ok)
	require.Equal(t, []Key{{KindPages, "p1"}}, c.PendingKeys())

	// The replacement session accepts edits and flushes once the store recovers.
	require.NoError(t, m.Queue("site-a", KindPages, "p1", map[string]any{"slug": "x"}))
	p.setFail(Key{KindPages, "p1"}, nil)
	require.Equal(t, 1, m.evictIdle(ctx, later.Add(time.Hour)))

	w := p.snapshot()
	require.Len(t, w, 1)
	require.Equal(t, "x", w[0].Fields["title"])
	require.Equal(t, "x", w[0].Fields["slug"])
}

func TestManager_InvalidEditDoesNotBlockFlushOrEviction(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	m := NewManager(StorePersister{Pages: page.NewStore(sqlx.NewDb(raw, "mysql"))}, testOpts(), time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Queue("s", KindPages, "p1", map[string]any{"slug": "Bad Slug!"}))
	err = m.FlushSite(ctx, "s")
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	c, ok := m.Lookup("s")
	require.True(t, ok)
	require.Zero(t, c.Pending())
	require.NoError(t, m.FlushSite(ctx, "s"))
	require.NoError(t, m.FlushSite(ctx, "s"))

	require.Equal(t, 1, m.evictIdle(ctx, time.Now().Add(2*time.Minute)))
	require.Zero(t, m.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_QueueAfterEvictionOpensNewSession(t *testing.T) {
	p := &fakePersister{}
	m := NewManager(p, testOpts(), time.Minute)

	old := m.Session("site-a")
	require.NoError(t, old.Close(context.Background()))

	require.NoError(t, m.Queue("site-a", KindSites, "site-a", map[string]any{"name": "n"}))
	require.NotSame(t, old, m.Session("site-a"))
	require.Equal(t, 1, m.Session("site-a").Pending())
}

func TestManager_Shutdown(t *testing.T) {
	p := &fakePersister{}
	p.setFail(Key{KindSections, "bad"}, errors.New("boom"))
	m := NewManager(p, testOpts(), time.Minute)

	require.NoError(t, m.Queue("a", KindSections, "good", map[string]any{"x": 1}))
	require.NoError(t, m.Queue("b", KindSections, "bad", map[string]any{"x": 1}))

	err := m.Shutdown(context.Background())
	var fe *FlushError
	require.ErrorAs(t, err, &fe)
	require.Zero(t, m.Len())
	require.Len(t, p.snapshot(), 1)
}
