package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dsqrwym/Maian-sub000/internal/audit"
	"github.com/dsqrwym/Maian-sub000/internal/config"
	healthhandler "github.com/dsqrwym/Maian-sub000/internal/health/handler"
	identityhandler "github.com/dsqrwym/Maian-sub000/internal/identity/handler"
	identityservice "github.com/dsqrwym/Maian-sub000/internal/identity/service"
	"github.com/dsqrwym/Maian-sub000/internal/security"
	"github.com/dsqrwym/Maian-sub000/internal/server"
	"github.com/dsqrwym/Maian-sub000/internal/server/middleware"
	"github.com/dsqrwym/Maian-sub000/internal/telemetry"
	"github.com/dsqrwym/Maian-sub000/internal/telemetry/metrics"
	otelsetup "github.com/dsqrwym/Maian-sub000/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := server.OpenStores(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	emitter := otelsetup.NewEventEmitter(providers.LoggerProvider)

	m := metrics.New()
	pool := security.NewPool(security.PoolConfig{
		Workers:        cfg.HasherWorkers,
		TasksPerWorker: cfg.HasherTasksPerWorker,
		IdleTimeout:    cfg.IdleTimeout(),
	})
	m.RegisterPool(pool)
	pc := pool.Config()
	log.Printf("hasher pool: workers=%d tasks_per_worker=%d idle=%s", pc.Workers, pc.TasksPerWorker, pc.IdleTimeout)
	hasher := security.NewPoolHasher(
		security.NewHasher(cfg.BcryptCost).WithScheme(security.Scheme(cfg.PasswordScheme)),
		pool,
		m,
	)
	tokens := security.NewTokenProvider(
		security.NewTokenCodec(cfg.Leeway()),
		[]byte(cfg.JWTAccessSecret),
		[]byte(cfg.JWTRefreshSecret),
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)

	auditLogger := audit.NewLogger(emitter, middleware.ClientIP)
	svc := identityservice.NewAuthService(st.Users, st.Identity, st.Sessions, hasher, tokens,
		identityservice.WithAuditLogger(auditLogger),
		identityservice.WithObserver(m),
		identityservice.WithTracer(providers.TracerProvider.Tracer("auth")),
		identityservice.WithWebRefreshRotation(cfg.WebRotateRefreshCookie),
	)

	var pinger healthhandler.Pinger
	if st.Conn != nil {
		pinger = st.Conn
	}
	health := healthhandler.NewHandler(pinger, healthhandler.Check{
		Name: "hasher_pool",
		Fn:   func(context.Context) error { return pool.Err() },
	})

	router := server.NewRouter(server.Deps{
		Auth: svc,
		Cookie: identityhandler.CookieConfig{
			Name:     cfg.CookieName,
			Path:     cfg.CookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			SameSite: cfg.SameSite(),
			MaxAge:   cfg.RefreshTTL(),
		},
		Emitter: emitter,
		Audit:   auditLogger,
		Health:  health,
		Metrics: m.Handler(),
	})
	srv := server.NewHTTPServer(cfg.HTTPAddr, router)

	go func() {
		log.Printf("HTTP server listening on %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	pool.Close()
	// let async audit and request events drain before the exporters stop
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
