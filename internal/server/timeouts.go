// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts and graceful shutdown.
//
// Production hardening recommends:
//
//   • ReadTimeout      – abort slow-loris headers (10 s)
//   • WriteTimeout     – cap total response time (15 s)
//   • IdleTimeout      – close keep-alives on idle clients (60 s)
//   • ShutdownTimeout  – drain in-flight requests before exit (15 s)
//
// This helper centralises those defaults so cmd/web doesn’t repeat boilerplate.
//

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeouts mirrors the http section of the config.  Zero values fall back
// to the defaults listed above.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Read <= 0 {
		t.Read = 10 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 15 * time.Second
	}
	if t.Idle <= 0 {
		t.Idle = 60 * time.Second
	}
	if t.Shutdown <= 0 {
		t.Shutdown = 15 * time.Second
	}
	return t
}

// New constructs an *http.Server with sensible defaults.
func New(addr string, handler http.Handler, t Timeouts) *http.Server {
	t = t.withDefaults()
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       t.Read,
		ReadHeaderTimeout: t.Read,
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
	}
}

// Run serves until ctx is cancelled, then shuts down within t.Shutdown.
// A clean shutdown returns nil.
func Run(ctx context.Context, srv *http.Server, t Timeouts) error {
	t = t.withDefaults()
	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), t.Shutdown)
	defer cancel()
	zap.S().Infow("shutting down", "grace", t.Shutdown)
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
