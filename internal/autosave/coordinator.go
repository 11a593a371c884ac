// internal/autosave/coordinator.go
//
// Debounced, merging write-behind for editor edits.
//
// Context
// -------
// The editor fires a stream of small partial updates while a user types or
// drags.  Each update targets one (kind, id) key.  The Coordinator merges
// repeated updates to the same key (shallow merge, later fields win) and
// writes them after a quiet period.  One timer is shared by every key, so
// a burst of edits across several entities resolves in one flush.
//
// Workflow
// --------
//  1. Queue merges the partial data and restarts the shared timer.
//  2. When the timer fires, or Flush is called, the whole queue is taken,
//     stamped with updated_at, and written: one write per key, fanned out
//     with a small concurrency limit and a per-write timeout.
//  3. Keys whose write failed with a transient error (network, rate
//     limit, server, or write timeout) are put back in the queue underneath
//     any edits that arrived meanwhile.  Keys that failed permanently
//     (validation, not found, conflict, and the like) are dropped, since
//     writing them again can only fail again.  Flush returns a *FlushError
//     that lists saved, failed, and dropped keys.  Nothing is retried
//     automatically; the next Queue, Flush, or Close picks requeued keys up.
//  4. Close stops the timer and flushes whatever is left.
//
// Notes
// -----
//   - Flushes are serialised.  A timer flush and an explicit flush never
//     overlap, so a key is never written twice concurrently.
//   - Hooks run on the flushing goroutine; they must not call back into
//     the Coordinator's Flush or Close.
//   - Oxford commas, two spaces after periods.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/metrics"
)

// Kind names the entity family an edit targets.
type Kind string

const (
	KindSections Kind = "sections"
	KindPages    Kind = "pages"
	KindSites    Kind = "sites"
)

// Valid reports whether k is a known target kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSections, KindPages, KindSites:
		return true
	}
	return false
}

// Key identifies one pending operation.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + "/" + k.ID }

// Persister writes one merged operation.
type Persister interface {
	Persist(ctx context.Context, kind Kind, id string, fields map[string]any) error
}

// ErrClosed is returned by Queue after Close.
var ErrClosed = errors.New("autosave: coordinator closed")

const (
	DefaultDebounce     = 1200 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
	DefaultMaxParallel  = 4
)

// Options tunes a Coordinator.  Zero values select the defaults.
type Options struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	MaxParallel  int

	OnSaveStart func()
	OnSaveEnd   func(saved int)
	OnError     func(err error)

	now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = DefaultMaxParallel
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// FlushError reports a partially failed flush.  Failed holds every failed
// key; those listed in Dropped failed permanently and were not re-queued.
type FlushError struct {
	Failed  map[Key]error
	Saved   []Key
	Dropped []Key
}

func (e *FlushError) Error() string {
	keys := e.failedKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Failed[k]))
	}
	return fmt.Sprintf("autosave: %d of %d writes failed, %d dropped (%s)",
		len(e.Failed), len(e.Failed)+len(e.Saved), len(e.Dropped), strings.Join(parts, "; "))
}

// Unwrap exposes the per-key errors in key order so errors.As and
// apperr.KindOf find the first failure deterministically.
func (e *FlushError) Unwrap() []error {
	keys := e.failedKeys()
	out := make([]error, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.Failed[k])
	}
	return out
}

func (e *FlushError) failedKeys() []Key {
	keys := make([]Key, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].ID < keys[j].ID
	})
}

// Coordinator batches edits for one editing session.
type Coordinator struct {
	p    Persister
	opts Options

	mu      sync.Mutex
	pending map[Key]map[string]any
	timer   *time.Timer
	gen     uint64 // bumped per Queue; a timer only flushes its own generation
	closed  bool

	flushMu   sync.Mutex
	saving    atomic.Bool
	lastSaved atomic.Int64 // UnixNano, 0 = never
}

// New returns an idle Coordinator.  No goroutine runs until the first
// Queue.
func New(p Persister, opts Options) *Coordinator {
	return &Coordinator{
		p:       p,
		opts:    opts.withDefaults(),
		pending: make(map[Key]map[string]any),
	}
}

// Queue merges partial into the pending operation for (kind, id) and
// restarts the debounce timer.
func (c *Coordinator) Queue(kind Kind, id string, partial map[string]any) error {
	if !kind.Valid() {
		return apperr.New(apperr.KindValidation, "autosave.Queue", fmt.Sprintf("Unknown autosave target %q.", kind))
	}
	if id == "" {
		return apperr.New(apperr.KindValidation, "autosave.Queue", "An id is required.")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	k := Key{Kind: kind, ID: id}
	c.pending[k] = content.Merge(c.pending[k], partial)

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.timerFlush(gen) })
	return nil
}

// timerFlush runs when a debounce timer fires.  Stop cannot cancel a
// callback that has already started, so a timer superseded by a later
// Queue returns without flushing.
func (c *Coordinator) timerFlush(gen uint64) {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}
	// Errors reach OnError inside Flush.
	_ = c.Flush(context.Background())
}

// Flush writes every pending operation now.  An empty queue is a no-op.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[Key]map[string]any)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	c.saving.Store(true)
	if c.opts.OnSaveStart != nil {
		c.opts.OnSaveStart()
	}

	now := c.opts.now()
	var (
		resMu  sync.Mutex
		failed = make(map[Key]error)
		saved  = make([]Key, 0, len(batch))
	)

	var g errgroup.Group
	g.SetLimit(c.opts.MaxParallel)
	for k, fields := range batch {
		data := content.Merge(fields, map[string]any{"updated_at": now})
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			defer cancel()
			err := c.p.Persist(wctx, k.Kind, k.ID, data)

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				failed[k] = err
				metrics.AutosaveWritesTotal.WithLabelValues(string(k.Kind), "error").Inc()
			} else {
				saved = append(saved, k)
				metrics.AutosaveWritesTotal.WithLabelValues(string(k.Kind), "ok").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	var dropped []Key
	if len(failed) > 0 {
		dropped = c.requeue(batch, failed)
	}
	if len(saved) > 0 {
		c.lastSaved.Store(now.UnixNano())
	}
	c.saving.Store(false)
	if c.opts.OnSaveEnd != nil {
		c.opts.OnSaveEnd(len(saved))
	}

	if len(failed) == 0 {
		metrics.AutosaveFlushTotal.WithLabelValues("ok").Inc()
		return nil
	}
	metrics.AutosaveFlushTotal.WithLabelValues("partial").Inc()
	sortKeys(saved)
	fe := &FlushError{Failed: failed, Saved: saved, Dropped: dropped}
	if c.opts.OnError != nil {
		c.opts.OnError(fe)
	}
	return fe
}

// requeue puts transiently failed operations back and returns the keys it
// dropped.  Edits queued while the flush ran are newer and win over the
// failed data.
func (c *Coordinator) requeue(batch map[Key]map[string]any, failed map[Key]error) []Key {
	var dropped []Key
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, err := range failed {
		if !transient(err) {
			dropped = append(dropped, k)
			continue
		}
		c.pending[k] = content.Merge(batch[k], c.pending[k])
	}
	sortKeys(dropped)
	return dropped
}

// transient reports whether a failed write may succeed if written again.
// A write that hit its own timeout counts as transient.
func transient(err error) bool {
	return apperr.IsRetryable(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// Close stops the timer, rejects further Queue calls, and flushes.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.Flush(ctx)
}

// IsSaving reports whether a flush is writing right now.
func (c *Coordinator) IsSaving() bool { return c.saving.Load() }

// LastSaved is the flush time of the most recent successful write, or the
// zero time.
func (c *Coordinator) LastSaved() time.Time {
	n := c.lastSaved.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Pending returns the number of queued keys.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PendingKeys returns the queued keys in a stable order.
func (c *Coordinator) PendingKeys() []Key {
	c.mu.Lock()
	keys := make([]Key, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sortKeys(keys)
	return keys
}
