// cmd/web/main.go
//
// Site builder – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback), then the layered
//     config.  `vault:` values resolve through Vault when VAULT_ADDR is set.
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the MySQL pool and, when configured, apply goose migrations.
//
//  4. Build the stores, the autosave manager, the publish engine, the
//     public resolver, the renderer, and (optionally) the hosting service.
//
//  5. Wire publish events through the bus (Redis when configured) so every
//     instance drops its cached copy of a republished site.
//
//  6. Build the chi root:
//
//     • request id, real ip, recoverer, request log, security headers
//     • HTTPS redirect for platform and custom hosts (optional)
//     • custom-domain rewrite onto /s/{slug}
//     • /metrics, /healthz, and every registered component
//
//  7. Serve until SIGINT or SIGTERM, then drain requests and flush every
//     pending autosave before exit.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/acl"
	"github.com/yanizio/sitebuilder/internal/auth"
	"github.com/yanizio/sitebuilder/internal/autosave"
	"github.com/yanizio/sitebuilder/internal/component"
	"github.com/yanizio/sitebuilder/internal/config"
	"github.com/yanizio/sitebuilder/internal/database"
	"github.com/yanizio/sitebuilder/internal/hosting"
	"github.com/yanizio/sitebuilder/internal/logger"
	"github.com/yanizio/sitebuilder/internal/middleware"
	"github.com/yanizio/sitebuilder/internal/page"
	"github.com/yanizio/sitebuilder/internal/public"
	"github.com/yanizio/sitebuilder/internal/publish"
	"github.com/yanizio/sitebuilder/internal/render"
	"github.com/yanizio/sitebuilder/internal/routing"
	"github.com/yanizio/sitebuilder/internal/section"
	"github.com/yanizio/sitebuilder/internal/server"
	"github.com/yanizio/sitebuilder/internal/site"
	"github.com/yanizio/sitebuilder/internal/vault"

	_ "github.com/yanizio/sitebuilder/components/domains"
	_ "github.com/yanizio/sitebuilder/components/editor"
	_ "github.com/yanizio/sitebuilder/components/public"
)

const serverEnvPath = "/usr/local/etc/sitebuilder/global.env"

// loadEnv prefers the jail-wide env file; on dev the config loader falls
// back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
	}
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		zap.S().Errorw("exit", "err", err)
		_ = zap.L().Sync()
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	//
	// ── 1.  Config (with Vault when available) ─────────────────────────
	//
	var secrets config.SecretResolver
	if vault.Enabled() {
		vc, err := vault.New(ctx)
		if err != nil {
			return err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}

	//
	// ── 2.  Logger ─────────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Paths.Root, cfg.Log.Level, runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 3.  Database ───────────────────────────────────────────────────
	//
	dsn, err := cfg.Database.DSNWithPassword()
	if err != nil {
		return err
	}
	opts := database.DefaultOptions()
	if cfg.Database.MaxOpenConns > 0 {
		opts.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	db, err := database.OpenWithOptions(ctx, dsn, opts)
	if err != nil {
		return err
	}
	defer db.Close()
	logOut.Infow("database online", "max_open", opts.MaxOpenConns)

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
	}

	//
	// ── 4.  Services ───────────────────────────────────────────────────
	//
	sites := site.NewStore(db)
	pages := page.NewStore(db)
	sections := section.NewStore(db)
	domains := hosting.NewStore(db)
	pubs := publish.NewSQLRepository(db)

	saves := autosave.NewManager(autosave.StorePersister{
		Sections: sections,
		Pages:    pages,
		Sites:    sites,
	}, autosave.Options{
		Debounce:     cfg.Autosave.Debounce,
		WriteTimeout: cfg.Autosave.WriteTimeout,
		MaxParallel:  cfg.Autosave.MaxParallel,
	}, cfg.Autosave.IdleTTL)
	saves.StartEvictor(ctx, cfg.Autosave.EvictInterval)

	var bus public.Bus = public.NewLocalBus()
	if cfg.Redis.Addr != "" {
		rb, err := public.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		bus = rb
		logOut.Infow("publish events via redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}
	defer bus.Close()

	engine := publish.NewEngine(pubs, sites, pages, sections,
		publish.WithTx(database.NewTxRunner(db)),
		publish.WithFlusher(saves),
		publish.WithListener(public.PublishListener(bus)),
	)

	resolver := public.NewResolver(sites, pubs, domains, cfg.Resolver.TTL)
	if err := resolver.Listen(ctx, bus); err != nil {
		return err
	}
	resolver.StartEvictor(ctx, cfg.Resolver.EvictInterval)

	renderer, err := render.New(cfg.Resolver.RenderCacheSize)
	if err != nil {
		return err
	}

	var hostSvc *hosting.Service
	if cfg.Hosting.Enabled() {
		client, err := hosting.NewClient(hosting.Config{
			BaseURL:   cfg.Hosting.BaseURL,
			Token:     cfg.Hosting.Token,
			TeamID:    cfg.Hosting.TeamID,
			ProjectID: cfg.Hosting.ProjectID,
			Timeout:   cfg.Hosting.Timeout,
			RetryMax:  cfg.Hosting.RetryMax,
		})
		if err != nil {
			return err
		}
		hostSvc = hosting.NewService(client, domains)
		hostSvc.OnChange = resolver.InvalidateDomain
	}

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	//
	// ── 5.  Router ─────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, middleware.RequestLog, middleware.Security)
	if cfg.HTTP.ForceHTTPS {
		r.Use(middleware.ForceHTTPS(middleware.KnownHosts(resolver, cfg.HTTP.PlatformHosts...)))
	}
	r.Use(routing.HostRewrite(resolver, cfg.HTTP.PlatformHosts...))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	deps := component.Deps{
		Auth:      verifier,
		ACL:       acl.NewStore(db),
		Sites:     sites,
		Pages:     pages,
		Sections:  sections,
		Publisher: engine,
		Autosave:  saves,
		Resolver:  resolver,
		Renderer:  renderer,
		Domains:   hostSvc,
	}
	if err := component.Mount(r, deps); err != nil {
		return err
	}

	//
	// ── 6.  Serve, then drain autosave ─────────────────────────────────
	//
	t := server.Timeouts{
		Read:     cfg.HTTP.ReadTimeout,
		Write:    cfg.HTTP.WriteTimeout,
		Idle:     cfg.HTTP.IdleTimeout,
		Shutdown: cfg.HTTP.ShutdownTimeout,
	}
	srvErr := server.Run(ctx, server.New(cfg.HTTP.ListenAddr, r, t), t)

	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := saves.Shutdown(sctx); err != nil {
		logOut.Errorw("autosave shutdown", "err", err)
	}
	return srvErr
}
