package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parley-chat/server/config"
	"github.com/parley-chat/server/internal/postgres"
	"github.com/parley-chat/server/internal/security"
	"github.com/parley-chat/server/internal/service"
	httpx "github.com/parley-chat/server/internal/transport/http"
	"github.com/parley-chat/server/internal/transport/ws"
	"github.com/parley-chat/server/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting parley-server",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- repos ---
	userRepo := postgres.NewUserRepository(db.Pool)
	sessionRepo := postgres.NewSessionRepository(db.Pool)
	contactRepo := postgres.NewContactRepository(db.Pool)
	roomRepo := postgres.NewRoomRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)
	directRepo := postgres.NewDirectRepository(db.Pool)

	// --- services ---
	signer := security.NewTokenSigner([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.TokenTTL(), time.Minute)
	authSvc := service.NewAuthService(userRepo, sessionRepo, signer, security.BcryptConfig{}, nil)
	contactSvc := service.NewContactService(contactRepo, userRepo)
	roomSvc := service.NewRoomService(roomRepo)
	directSvc := service.NewDirectService(directRepo, userRepo, nil)

	// --- WS hub registry & server ---
	registry := ws.NewRegistry(postgres.NewHubStore(messageRepo, directRepo), cfg.HubIdleEviction())
	wsServer := ws.NewServer(registry, authSvc)

	// --- HTTP ---
	handler := httpx.NewHandler(authSvc, contactSvc, roomSvc, directSvc)
	router := httpx.NewRouter(handler, authSvc, wsServer, cfg.HTTP.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// expired sessions pile up otherwise; tokens themselves expire on their own
	janitorCtx, janitorStop := context.WithCancel(ctx)
	defer janitorStop()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := sessionRepo.DeleteExpired(janitorCtx); err != nil {
					slog.Warn("session cleanup failed", "err", err)
				} else if n > 0 {
					slog.Debug("expired sessions removed", "count", n)
				}
			case <-janitorCtx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	if err := registry.Shutdown(ctxShutdown); err != nil {
		slog.Warn("hub shutdown incomplete", "err", err)
	}
	slog.Info("stopped")
}
