// internal/public/bus.go
//
// Publish-event fan-out for resolver cache invalidation.
//
// Context
// -------
// A publish or rollback on one instance must evict the site from every
// instance's resolver cache.  A single-process deployment uses LocalBus;
// a multi-instance one uses RedisBus (pub/sub on one channel).  Messages
// are small JSON documents naming the site slug and the new version.
package public

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message announces a new current version for a site.
type Message struct {
	Slug    string `json:"slug"`
	Version int    `json:"version"`
}

// Bus delivers Messages to every subscriber, including the publisher's
// own process.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, onMsg func(Message)) error
	Close() error
}

// ---------------------------------------------------------------------------
// LocalBus
// ---------------------------------------------------------------------------

// LocalBus delivers synchronously to in-process subscribers.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[int]func(Message)
	next int
}

func NewLocalBus() *LocalBus { return &LocalBus{subs: map[int]func(Message){}} }

func (b *LocalBus) Publish(_ context.Context, msg Message) error {
	b.mu.RLock()
	fns := make([]func(Message), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
	return nil
}

// Subscribe registers onMsg until ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return errors.New("public: onMsg callback required")
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = onMsg
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error { return nil }

// ---------------------------------------------------------------------------
// RedisBus
// ---------------------------------------------------------------------------

// RedisBus fans messages out through Redis pub/sub.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and verifies the connection.
func NewRedisBus(ctx context.Context, addr, password, channel string) (*RedisBus, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("public: redis address required")
	}
	if channel == "" {
		channel = "sitebuilder:publish"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBus{rdb: rdb, channel: channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe forwards messages to onMsg until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return errors.New("public: onMsg callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					zap.S().Warnw("bad publish-event payload", "err", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error { return b.rdb.Close() }
