// internal/public/resolver.go
//
// Public site resolver.
//
// Context
// -------
// Public traffic only ever sees a site's current published snapshot.  The
// resolver maps a site slug (or a verified custom domain) to that snapshot
// and picks the requested page, defaulting to the homepage.  Snapshots are
// cached per slug for a TTL; concurrent misses for one slug share a single
// load through singleflight.  Publish events arriving on the Bus evict the
// slug so the next request loads the new version.
//
// Workflow
// --------
//  1. Resolve(slug, page) loads or reuses the cached snapshot.
//  2. Archived sites and sites with no current version are NOT_FOUND.
//  3. The page is selected; an unknown page slug is NOT_FOUND.
//
// Notes
// -----
//   - Not-found errors carry fixed messages and no identifiers.
//   - Only successful loads are cached.
//   - Results share snapshot memory with the cache and are read-only.
//   - Oxford commas, two spaces after periods.
package public

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/content"
	"github.com/yanizio/sitebuilder/internal/metrics"
	"github.com/yanizio/sitebuilder/internal/publish"
	"github.com/yanizio/sitebuilder/internal/site"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultEvictInterval = time.Minute
)

// SiteReader finds a site by slug.
type SiteReader interface {
	GetBySlug(ctx context.Context, slug string) (*site.Site, error)
}

// PublishReader returns a site's current version, or nil.
type PublishReader interface {
	Current(ctx context.Context, siteID string) (*publish.Publish, error)
}

// DomainReader maps a verified custom domain to its site slug.
type DomainReader interface {
	SlugForDomain(ctx context.Context, domain string) (string, error)
}

// SiteInfo is the public part of a site record.
type SiteInfo struct {
	Name     string       `json:"name"`
	Settings content.JSON `json:"settings"`
}

// Result is what the public endpoint serves.
type Result struct {
	Site        SiteInfo              `json:"site"`
	Slug        string                `json:"slug"`
	Snapshot    publish.Snapshot      `json:"snapshot"`
	Version     int                   `json:"version"`
	PublishedAt time.Time             `json:"publishedAt"`
	Page        *publish.SnapshotPage `json:"page"`
}

type cached struct {
	res      Result // Page left nil
	loadedAt int64  // UnixNano
}

// Resolver serves current snapshots by slug.
type Resolver struct {
	sites    SiteReader
	publish  PublishReader
	domains  DomainReader
	ttl      time.Duration
	sfg      singleflight.Group
	m        sync.Map // slug → *cached
	hosts    sync.Map // domain → *hostEntry
	hostsTTL time.Duration

	genMu sync.Mutex
	gens  map[string]uint64 // slug → invalidation count
}

type hostEntry struct {
	slug     string
	loadedAt int64
}

// NewResolver wires a Resolver.  domains may be nil when custom domains
// are not served.
func NewResolver(sites SiteReader, pubs PublishReader, domains DomainReader, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		sites: sites, publish: pubs, domains: domains,
		ttl: ttl, hostsTTL: ttl,
		gens: make(map[string]uint64),
	}
}

var (
	errSiteNotFound = apperr.New(apperr.KindNotFound, "public.Resolve", "Site not found.")
	errPageNotFound = apperr.New(apperr.KindNotFound, "public.Resolve", "Page not found.")
)

// Resolve returns the current snapshot of slug with pageSlug selected.
// An empty pageSlug selects the homepage.
func (r *Resolver) Resolve(ctx context.Context, slug, pageSlug string) (*Result, error) {
	c, err := r.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	pg, ok := c.res.Snapshot.Page(pageSlug)
	if !ok {
		return nil, errPageNotFound
	}
	out := c.res
	out.Page = pg
	return &out, nil
}

// ResolveDomain maps a custom domain to its site and resolves pageSlug.
func (r *Resolver) ResolveDomain(ctx context.Context, domain, pageSlug string) (*Result, error) {
	slug, err := r.SlugForDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, slug, pageSlug)
}

// SlugForDomain returns the slug served on domain.  Unknown or
// unverified domains are NOT_FOUND.
func (r *Resolver) SlugForDomain(ctx context.Context, domain string) (string, error) {
	if r.domains == nil {
		return "", errSiteNotFound
	}
	if v, ok := r.hosts.Load(domain); ok {
		he := v.(*hostEntry)
		if time.Since(time.Unix(0, he.loadedAt)) < r.hostsTTL {
			return he.slug, nil
		}
	}
	v, err, _ := r.sfg.Do("host:"+domain, func() (any, error) {
		slug, err := r.domains.SlugForDomain(ctx, domain)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				return "", errSiteNotFound
			}
			return "", err
		}
		r.hosts.Store(domain, &hostEntry{slug: slug, loadedAt: time.Now().UnixNano()})
		return slug, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) load(ctx context.Context, slug string) (*cached, error) {
	if v, ok := r.m.Load(slug); ok {
		c := v.(*cached)
		if time.Since(time.Unix(0, atomic.LoadInt64(&c.loadedAt))) < r.ttl {
			metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
			return c, nil
		}
	}

	// A load that started before an Invalidate must not cache what it read,
	// and callers arriving after the Invalidate must not join it.
	gen := r.generation(slug)
	v, err, _ := r.sfg.Do(fmt.Sprintf("site:%s#%d", slug, gen), func() (any, error) {
		s, err := r.sites.GetBySlug(ctx, slug)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				return nil, errSiteNotFound
			}
			return nil, err
		}
		if s.Status == site.StatusArchived {
			return nil, errSiteNotFound
		}
		cur, err := r.publish.Current(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, errSiteNotFound
		}
		c := &cached{
			res: Result{
				Site:        SiteInfo{Name: s.Name, Settings: s.Settings},
				Slug:        s.Slug,
				Snapshot:    cur.Snapshot,
				Version:     cur.Version,
				PublishedAt: cur.Snapshot.PublishedAt,
			},
			loadedAt: time.Now().UnixNano(),
		}
		r.storeIfCurrent(slug, gen, c)
		return c, nil
	})
	if err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			metrics.ResolverCacheTotal.WithLabelValues("error").Inc()
			zap.S().Warnw("public resolve failed", "slug", slug, "kind", apperr.KindOf(err), "err", err)
		}
		return nil, err
	}
	metrics.ResolverCacheTotal.WithLabelValues("miss").Inc()
	return v.(*cached), nil
}

// Invalidate drops the cached snapshot for slug.  Loads already in flight
// for slug finish but do not cache their result.
func (r *Resolver) Invalidate(slug string) {
	r.genMu.Lock()
	r.gens[slug]++
	_, ok := r.m.LoadAndDelete(slug)
	r.genMu.Unlock()
	if ok {
		metrics.ResolverInvalidateTotal.Inc()
	}
}

func (r *Resolver) generation(slug string) uint64 {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return r.gens[slug]
}

func (r *Resolver) storeIfCurrent(slug string, gen uint64, c *cached) {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.gens[slug] == gen {
		r.m.Store(slug, c)
	}
}

// InvalidateDomain drops a cached domain mapping.
func (r *Resolver) InvalidateDomain(domain string) { r.hosts.Delete(domain) }

// Listen subscribes to bus and invalidates on every message.
func (r *Resolver) Listen(ctx context.Context, bus Bus) error {
	return bus.Subscribe(ctx, func(m Message) {
		r.Invalidate(m.Slug)
		zap.S().Debugw("resolver cache invalidated", "slug", m.Slug, "version", m.Version)
	})
}

// PublishListener adapts a Bus into a publish.Listener.
func PublishListener(bus Bus) publish.Listener {
	return func(ctx context.Context, ev publish.Event) {
		if err := bus.Publish(ctx, Message{Slug: ev.SiteSlug, Version: ev.Version}); err != nil {
			zap.S().Warnw("publish event not delivered", "slug", ev.SiteSlug, "err", err)
		}
	}
}

// StartEvictor removes expired entries every interval until ctx is done.
func (r *Resolver) StartEvictor(ctx context.Context, interval time.Duration) {
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
			case now := <-t.C:
				r.evictExpired(now)
			}
		}
	}()
}

func (r *Resolver) evictExpired(now time.Time) int {
	n := 0
	r.m.Range(func(key, value any) bool {
		c := value.(*cached)
		if now.Sub(time.Unix(0, atomic.LoadInt64(&c.loadedAt))) >= r.ttl {
			r.m.CompareAndDelete(key, c)
			n++
		}
		return true
	})
	r.hosts.Range(func(key, value any) bool {
		if now.Sub(time.Unix(0, value.(*hostEntry).loadedAt)) >= r.hostsTTL {
			r.hosts.CompareAndDelete(key, value)
		}
		return true
	})
	return n
}
