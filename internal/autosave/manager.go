// internal/autosave/manager.go
//
// Per-site autosave sessions.
//
// Context
// -------
// The server holds one Coordinator per site being edited.  Sessions are
// created on first use, kept in a sync.Map, and closed by a background
// evictor once idle for longer than the idle TTL.  Closing flushes, so an
// evicted session never drops a writable edit.  A session whose flush
// leaves re-queued edits stays in the map and is tried again on the next
// pass; one whose failed edits were all dropped as permanent is evicted.
//
// Workflow
// --------
//  1. Session(siteID) loads or creates the site's Coordinator.
//  2. StartEvictor runs until its context ends, sweeping every interval.
//  3. Shutdown closes every session and reports the combined error.
//
// Notes
// -----
//   - The active-session gauge is kept in step with the map.
//   - Oxford commas, two spaces after periods.
package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/metrics"
)

const (
	DefaultIdleTTL       = 15 * time.Minute
	DefaultEvictInterval = time.Minute
)

type session struct {
	c        *Coordinator
	lastSeen int64 // UnixNano
}

func (s *session) touch() { atomic.StoreInt64(&s.lastSeen, time.Now().UnixNano()) }

// Manager owns the per-site Coordinators.
type Manager struct {
	p       Persister
	opts    Options
	idleTTL time.Duration

	m sync.Map // siteID → *session
}

// NewManager returns a Manager whose sessions share opts.
func NewManager(p Persister, opts Options, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Manager{p: p, opts: opts, idleTTL: idleTTL}
}

// Session returns the site's Coordinator, creating it when absent.
func (m *Manager) Session(siteID string) *Coordinator {
	return m.entry(siteID).c
}

func (m *Manager) entry(siteID string) *session {
	if v, ok := m.m.Load(siteID); ok {
		s := v.(*session)
		s.touch()
		return s
	}
	fresh := &session{c: m.newCoordinator(siteID), lastSeen: time.Now().UnixNano()}
	v, loaded := m.m.LoadOrStore(siteID, fresh)
	s := v.(*session)
	if loaded {
		s.touch()
	} else {
		metrics.AutosaveSessions.Inc()
	}
	return s
}

func (m *Manager) newCoordinator(siteID string) *Coordinator {
	opts := m.opts
	userErr := opts.OnError
	opts.OnError = func(err error) {
		zap.S().Warnw("autosave flush failed", "site", siteID, "err", err)
		if userErr != nil {
			userErr(err)
		}
	}
	return New(m.p, opts)
}

// Queue forwards to the site's session.  A session closed by the evictor
// between lookup and Queue is replaced and the edit queued on the new one.
func (m *Manager) Queue(siteID string, kind Kind, id string, partial map[string]any) error {
	s := m.entry(siteID)
	err := s.c.Queue(kind, id, partial)
	if !errors.Is(err, ErrClosed) {
		return err
	}
	if m.m.CompareAndDelete(siteID, s) {
		metrics.AutosaveSessions.Dec()
	}
	return m.entry(siteID).c.Queue(kind, id, partial)
}

// Lookup returns the site's Coordinator without creating one.
func (m *Manager) Lookup(siteID string) (*Coordinator, bool) {
	v, ok := m.m.Load(siteID)
	if !ok {
		return nil, false
	}
	return v.(*session).c, true
}

// FlushSite flushes the site's session, if there is one.
func (m *Manager) FlushSite(ctx context.Context, siteID string) error {
	c, ok := m.Lookup(siteID)
	if !ok {
		return nil
	}
	return c.Flush(ctx)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	n := 0
	m.m.Range(func(_, _ any) bool { n++; return true })
	return n
}

// StartEvictor sweeps idle sessions every interval until ctx is done.
func (m *Manager) StartEvictor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultEvictInterval
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.evictIdle(ctx, time.Now())
			}
		}
	}()
}

// evictIdle closes and removes sessions idle longer than idleTTL.
func (m *Manager) evictIdle(ctx context.Context, now time.Time) int {
	evicted := 0
	m.m.Range(func(key, value any) bool {
		s := value.(*session)
		idle := time.Duration(now.UnixNano() - atomic.LoadInt64(&s.lastSeen))
		if idle <= m.idleTTL {
			return true
		}
		if err := s.c.Close(ctx); err != nil {
			if s.c.Pending() > 0 {
				zap.S().Warnw("autosave session kept: flush on eviction failed",
					"site", key, "err", err)
				m.reopen(key.(string), s)
				return true
			}
			zap.S().Warnw("autosave edits dropped on eviction", "site", key, "err", err)
		}
		if m.m.CompareAndDelete(key, s) {
			evicted++
			metrics.AutosaveEvictTotal.Inc()
			metrics.AutosaveSessions.Dec()
			zap.S().Infow("autosave session evicted", "site", key, "idle", idle.Truncate(time.Second))
		}
		return true
	})
	return evicted
}

// reopen replaces a closed session with a fresh one that carries the
// closed session's re-queued edits.  If the map entry was already
// replaced, the edits are queued on the replacement instead.
func (m *Manager) reopen(siteID string, old *session) {
	old.c.mu.Lock()
	pending := old.c.pending
	old.c.pending = make(map[Key]map[string]any)
	old.c.mu.Unlock()

	fresh := &session{c: m.newCoordinator(siteID), lastSeen: atomic.LoadInt64(&old.lastSeen)}
	fresh.c.pending = pending
	if m.m.CompareAndSwap(siteID, old, fresh) {
		return
	}
	cur := m.entry(siteID).c
	for k, fields := range pending {
		_ = cur.Queue(k.Kind, k.ID, fields)
	}
}

// Shutdown closes every session.  Sessions that fail to flush are still
// removed; their errors are joined and returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	m.m.Range(func(key, value any) bool {
		if err := value.(*session).c.Close(ctx); err != nil {
			zap.S().Errorw("autosave edits lost at shutdown", "site", key, "err", err)
			errs = append(errs, err)
		}
		m.m.Delete(key)
		metrics.AutosaveSessions.Dec()
		return true
	})
	return errors.Join(errs...)
}
