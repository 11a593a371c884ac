package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

type write struct {
	Kind   Kind
	ID     string
	Fields map[string]any
}

type fakePersister struct {
	mu     sync.Mutex
	writes []write
	fail   map[Key]error
	block  chan struct{}
}

func (f *fakePersister) Persist(ctx context.Context, kind Kind, id string, fields map[string]any) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[Key{kind, id}]; err != nil {
		return err
	}
	f.writes = append(f.writes, write{kind, id, fields})
	return nil
}

func (f *fakePersister) snapshot() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func (f *fakePersister) setFail(k Key, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = map[Key]error{}
	}
	if err == nil {
		delete(f.fail, k)
		return
	}
	f.fail[k] = err
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testOpts() Options {
	return Options{Debounce: time.Hour, now: func() time.Time { return fixedNow }}
}

func TestQueue_MergesPerKey(t *testing.T) {
	p := &fakePersister{}
	c := New(p, testOpts())

	require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"a": 1}))
	require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"b": 2}))
	require.Equal(t, 1, c.Pending())
	require.NoError(t, c.Flush(context.Background()))

	w := p.snapshot()
	require.Len(t, w, 1)
	require.Equal(t, map[string]any{"a": 1, "b": 2, "updated_at": fixedNow}, w[0].Fields)
	require.Zero(t, c.Pending())
}

func TestQueue_LaterFieldsWin(t *testing.T) {
	p := &fakePersister{}
	c := New(p, testOpts())

	require.NoError(t, c.Queue(KindPages, "p1", map[string]any{"title": "Draft", "updated_at": "client"}))
	require.NoError(t, c.Queue(KindPages, "p1", map[string]any{"title": "Final"}))
	require.NoError(t, c.Flush(context.Background()))

	w := p.snapshot()
	require.Equal(t, "Final", w[0].Fields["title"])
	require.Equal(t, fixedNow, w[0].Fields["updated_at"])
}

func TestDebounce_OneFlushForABurst(t *testing.T) {
	p := &fakePersister{}
	var starts atomic.Int32
	opts := testOpts()
	opts.Debounce = 40 * time.Millisecond
	opts.OnSaveStart = func() { starts.Add(1) }
	c := New(p, opts)

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"n": i}))
		require.NoError(t, c.Queue(KindPages, "p1", map[string]any{"n": i}))
	}

	require.Eventually(t, func() bool { return len(p.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	require.Len(t, p.snapshot(), 2)
	require.EqualValues(t, 1, starts.Load())
	for _, w := range p.snapshot() {
		require.Equal(t, 19, w.Fields["n"])
	}
}

func TestDebounce_TimerRestartsOnQueue(t *testing.T) {
	p := &fakePersister{}
	opts := testOpts()
	opts.Debounce = 150 * time.Millisecond
	c := New(p, opts)

	require.NoError(t, c.Queue(KindSites, "site", map[string]any{"name": "a"}))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Queue(KindSites, "site", map[string]any{"name": "b"}))
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, p.snapshot(), "timer should have been restarted by the second Queue")

	require.Eventually(t, func() bool { return len(p.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestFlush_EmptyIsNoop(t *testing.T) {
	p := &fakePersister{}
	called := false
	opts := testOpts()
	opts.OnSaveStart = func() { called = true }
	c := New(p, opts)

	require.NoError(t, c.Flush(context.Background()))
	require.False(t, called)
	require.True(t, c.LastSaved().IsZero())
}

func TestFlush_PartialFailureRequeuesFailedKeys(t *testing.T) {
	p := &fakePersister{}
	boom := apperr.New(apperr.KindNetwork, "section.Update", "")
	p.setFail(Key{KindSections, "bad"}, boom)

	var hookErr error
	opts := testOpts()
	opts.OnError = func(err error) { hookErr = err }
	c := New(p, opts)

	require.NoError(t, c.Queue(KindSections, "good", map[string]any{"x": 1}))
	require.NoError(t, c.Queue(KindSections, "bad", map[string]any{"y": 1}))

	err := c.Flush(context.Background())
	var fe *FlushError
	require.ErrorAs(t, err, &fe)
	require.Same(t, fe, hookErr)
	require.Equal(t, []Key{{KindSections, "good"}}, fe.Saved)
	require.Contains(t, fe.Failed, Key{KindSections, "bad"})
	require.True(t, apperr.IsKind(err, apperr.KindNetwork))
	require.True(t, apperr.IsRetryable(err))

	require.Equal(t, []Key{{KindSections, "bad"}}, c.PendingKeys())
	require.Equal(t, fixedNow, c.LastSaved())

	// A newer edit arriving before the retry wins over the failed data.
	require.NoError(t, c.Queue(KindSections, "bad", map[string]any{"y": 2, "z": 3}))
	p.setFail(Key{KindSections, "bad"}, nil)
	require.NoError(t, c.Flush(context.Background()))

	w := p.snapshot()
	require.Len(t, w, 2)
	require.Equal(t, "bad", w[1].ID)
	require.Equal(t, 2, w[1].Fields["y"])
	require.Equal(t, 3, w[1].Fields["z"])
}

func TestFlush_PermanentFailureIsDropped(t *testing.T) {
	p := &fakePersister{}
	p.setFail(Key{KindPages, "p1"}, apperr.New(apperr.KindValidation, "page.Update", `Invalid slug "Bad Slug!".`))
	c := New(p, testOpts())

	require.NoError(t, c.Queue(KindPages, "p1", map[string]any{"slug": "Bad Slug!"}))
	require.NoError(t, c.Queue(KindPages, "p2", map[string]any{"title": "ok"}))

	err := c.Flush(context.Background())
	var fe *FlushError
	require.ErrorAs(t, err, &fe)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
	require.Equal(t, []Key{{KindPages, "p1"}}, fe.Dropped)
	require.Equal(t, []Key{{KindPages, "p2"}}, fe.Saved)
	require.Zero(t, c.Pending())

	// Nothing left to retry, so later flushes succeed.
	require.NoError(t, c.Flush(context.Background()))
	require.Len(t, p.snapshot(), 1)
}

func TestFlush_TransientFailureIsNotDropped(t *testing.T) {
	p := &fakePersister{}
	p.setFail(Key{KindSites, "s1"}, apperr.New(apperr.KindServer, "site.Update", ""))
	c := New(p, testOpts())

	require.NoError(t, c.Queue(KindSites, "s1", map[string]any{"name": "n"}))
	err := c.Flush(context.Background())
	var fe *FlushError
	require.ErrorAs(t, err, &fe)
	require.Empty(t, fe.Dropped)
	require.Equal(t, []Key{{KindSites, "s1"}}, c.PendingKeys())
}

func TestTimerFlush_SupersededTimerDoesNotFlush(t *testing.T) {
	p := &fakePersister{}
	c := New(p, testOpts())

	require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"a": 1}))
	require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"b": 2}))

	// The first timer's callback started before the second Queue stopped it.
	c.timerFlush(1)
	require.Empty(t, p.snapshot())
	require.Equal(t, 1, c.Pending())

	c.timerFlush(2)
	w := p.snapshot()
	require.Len(t, w, 1)
	require.Equal(t, 1, w[0].Fields["a"])
	require.Equal(t, 2, w[0].Fields["b"])
}

func TestClose_FlushesAndRejectsQueue(t *testing.T) {
	p := &fakePersister{}
	c := New(p, testOpts())

	require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"a": 1}))
	require.NoError(t, c.Close(context.Background()))
	require.Len(t, p.snapshot(), 1)
	require.ErrorIs(t, c.Queue(KindSections, "s1", map[string]any{"a": 2}), ErrClosed)
}

func TestQueue_Validation(t *testing.T) {
	c := New(&fakePersister{}, testOpts())
	require.True(t, apperr.IsKind(c.Queue("widgets", "x", nil), apperr.KindValidation))
	require.True(t, apperr.IsKind(c.Queue(KindPages, "", nil), apperr.KindValidation))
}

func TestSavingStateAndHooks(t *testing.T) {
	p := &fakePersister{block: make(chan struct{})}
	var ended atomic.Int32
	opts := testOpts()
	opts.OnSaveEnd = func(saved int) { ended.Store(int32(saved)) }
	c := New(p, opts)

	require.NoError(t, c.Queue(KindSections, "s1", map[string]any{"a": 1}))
	done := make(chan error, 1)
	go func() { done <- c.Flush(context.Background()) }()

	require.Eventually(t, c.IsSaving, time.Second, time.Millisecond)
	close(p.block)
	require.NoError(t, <-done)
	require.False(t, c.IsSaving())
	require.EqualValues(t, 1, ended.Load())
}

func TestFlush_WriteTimeout(t *testing.T) {
	p := &fakePersister{block: make(chan struct{})}
	opts := testOpts()
	opts.WriteTimeout = 20 * time.Millisecond
	c := New(p, opts)

	require.NoError(t, c.Queue(KindSections, "slow", map[string]any{"a": 1}))
	err := c.Flush(context.Background())
	var fe *FlushError
	require.ErrorAs(t, err, &fe)
	require.True(t, errors.Is(fe.Failed[Key{KindSections, "slow"}], context.DeadlineExceeded))
	require.Equal(t, 1, c.Pending())
}

func TestStorePersister_Routes(t *testing.T) {
	sec, pg := &recUpdater{}, &recUpdater{}
	sp := StorePersister{Sections: sec, Pages: pg}

	require.NoError(t, sp.Persist(context.Background(), KindSections, "a", map[string]any{"x": 1}))
	require.NoError(t, sp.Persist(context.Background(), KindPages, "b", nil))
	require.Equal(t, []string{"a"}, sec.ids)
	require.Equal(t, []string{"b"}, pg.ids)

	err := sp.Persist(context.Background(), KindSites, "c", nil)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

type recUpdater struct{ ids []string }

func (r *recUpdater) Update(_ context.Context, id string, _ map[string]any) error {
	r.ids = append(r.ids, id)
	return nil
}
