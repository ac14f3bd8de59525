package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"automation/internal/auth"
	"automation/internal/automation"
	"automation/internal/completion"
	"automation/internal/session"
	"automation/internal/workflow"
	"automation/pkg/config"
	"automation/pkg/db"
	"automation/pkg/logger"
	"automation/pkg/middleware"
	"automation/pkg/openapi"
)

const (
	serviceName = "automation-api"
	version     = "1.0.0"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	middleware.InitTracing(serviceName, log)

	store := buildStore(cfg, log)
	provider := completion.NewOpenRouter(cfg, log)
	svc := automation.NewService(store, provider, log)

	tokens := auth.NewTokenAuthenticator(loadTokens(cfg, log), log)
	authn := auth.Chain{tokens}
	if cfg.JWKSURL != "" {
		authn = append(authn, auth.NewJWKSValidator(cfg.JWKSURL, cfg.Issuer, cfg.Audience, log))
		log.Infow("jwt bearer validation enabled", "issuer", cfg.Issuer)
	}

	var sessions *session.Server
	if cfg.MCPEnabled {
		sessions = session.NewServer(authn, svc, session.DefaultOptions(), log)
	} else {
		log.Infow("session server disabled via MCP_ENABLED")
	}

	reg := openapi.NewRegistry()
	reg.DescribeScope(auth.ScopeWorkflowRead, "List workflows")
	reg.DescribeScope(auth.ScopeAnalyticsRead, "Read workflow analytics")
	reg.DescribeScope(auth.ScopeAIGenerate, "Generate text with the completion provider")
	reg.DescribeScope(auth.ScopeAgentExecute, "Run the agent (also needs ai.generate)")
	automation.Document(reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Tracing("http"))
	r.Use(middleware.BearerAuth(authn, log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		out := map[string]any{"status": "ok", "tokens": tokens.Count()}
		if sessions != nil {
			out["sessions"] = sessions.Registry().Len()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/openapi.json", reg.ServeHandler(serviceName, version))
	automation.RegisterRoutes(r, svc, log)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reloadOnHangup(ctx, tokens, store, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("automation-api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sessions != nil {
		g.Go(func() error { return sessions.ListenAndServe(cfg.MCPAddr()) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if sessions != nil {
			_ = sessions.Shutdown(shutdownCtx)
		}
		_ = middleware.ShutdownTracing(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalw("server failed", "err", err)
	}
	log.Infow("automation-api stopped")
}

func buildStore(cfg config.Config, log logger.Sugared) workflow.Store {
	var store workflow.Store
	if pool := db.MustConnect(cfg, log); pool != nil {
		pg := workflow.NewPostgresStore(pool, log)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalw("workflow schema", "err", err)
		}
		if cfg.SeedDB {
			if err := pg.SeedIfEmpty(ctx, workflow.Seed()); err != nil {
				log.Fatalw("workflow seed", "err", err)
			}
		}
		store = pg
	} else if cfg.SeedDB {
		store = workflow.NewMemoryStore(workflow.Seed()...)
	} else {
		store = workflow.NewMemoryStore()
	}
	return workflow.WithCache(store, db.MustRedis(cfg, log), cfg.CacheTTL, log)
}

func loadTokens(cfg config.Config, log logger.Sugared) []auth.Record {
	recs, err := auth.LoadSources(cfg.APIKeys, cfg.APIKeysFile, log)
	if err != nil {
		log.Errorw("token file unreadable; using inline tokens only", "path", cfg.APIKeysFile, "err", err)
	}
	return recs
}

// reloadOnHangup swaps in a fresh token list on SIGHUP and drops cached
// workflow reads.
func reloadOnHangup(ctx context.Context, tokens *auth.TokenAuthenticator, store workflow.Store, log logger.Sugared) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg := config.Reload()
			n := tokens.Load(loadTokens(cfg, log))
			log.Infow("reloaded api tokens", "count", n)
			if cs, ok := store.(*workflow.CachedStore); ok {
				if err := cs.Invalidate(ctx); err != nil {
					log.Warnw("cache invalidation failed", "err", err)
				}
			}
		}
	}
}
