package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deevee3/perryMillNews/internal/audit"
	auditrepo "github.com/deevee3/perryMillNews/internal/audit/repository"
	authhandler "github.com/deevee3/perryMillNews/internal/auth/handler"
	"github.com/deevee3/perryMillNews/internal/auth/metrics"
	authservice "github.com/deevee3/perryMillNews/internal/auth/service"
	"github.com/deevee3/perryMillNews/internal/config"
	"github.com/deevee3/perryMillNews/internal/db"
	feedhandler "github.com/deevee3/perryMillNews/internal/feed/handler"
	feedservice "github.com/deevee3/perryMillNews/internal/feed/service"
	"github.com/deevee3/perryMillNews/internal/security"
	"github.com/deevee3/perryMillNews/internal/server"
	"github.com/deevee3/perryMillNews/internal/session/cleanup"
	sessionrepo "github.com/deevee3/perryMillNews/internal/session/repository"
	userrepo "github.com/deevee3/perryMillNews/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	var users userrepo.Repository = userrepo.NewPostgresRepository(database)
	var sessions sessionrepo.Repository = sessionrepo.NewPostgresRepository(database)
	var audits auditrepo.Repository = auditrepo.NewPostgresRepository(database)
	auditor := audit.NewLogger(audits)
	m := metrics.New()

	hasher := security.NewHasher(cfg.PBKDF2Iterations)
	codec := security.NewTokenCodec(cfg.JWTSecret, cfg.AccessTTL())
	auth := authservice.NewAuthService(users, sessions, auditor, audits, hasher, codec, cfg.RefreshTTL(), m)

	feeds := feedservice.NewService()
	analyzer := feedservice.NewAnalyzer(cfg.OpenAIAPIKey)

	authH := authhandler.New(auth)
	feedH := feedhandler.New(feeds, analyzer)

	router := server.New(auth, database,
		[]server.RouteRegistrar{authH, feedH},
		[]server.ProtectedRegistrar{authH, feedH},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanup.NewWorker(sessions, cfg.SweepInterval()).Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
