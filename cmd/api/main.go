package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leadlens/api/internal/app"
	"leadlens/api/internal/authpw"
	"leadlens/api/internal/config"
	"leadlens/api/internal/email"
	"leadlens/api/internal/export"
	"leadlens/api/internal/feed"
	"leadlens/api/internal/linkedin"
	"leadlens/api/internal/llm"
	"leadlens/api/internal/search"
	"leadlens/api/internal/session"
	"leadlens/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	tables := store.ResolveTables(cfg.IsProduction())
	dataStore := store.NewPostgresStore(db, tables)

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessions.Close()

	bus := feed.NewRedisBus(sessions.Client())

	pgfts := search.NewPgFTS(db, tables)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	deps := app.Deps{
		Sessions: sessions,
		Bus:      bus,
		Search:   searchService,
		Exporter: export.NewService(dataStore),
		AuthPW:   authpw.NewService(dataStore),
		Email: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		artifacts, err := export.NewStorage(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: object storage unavailable, exports served inline: %v", err)
		} else {
			deps.Artifacts = artifacts
		}
	}
	if cfg.GoogleAPIKey != "" && cfg.GoogleCSEID != "" {
		deps.LinkedIn = linkedin.NewClient(cfg.GoogleAPIKey, cfg.GoogleCSEID)
	}
	if cfg.OpenAIAPIKey != "" {
		deps.LLM = llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	service := app.New(cfg, dataStore, deps)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("LeadLens API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
