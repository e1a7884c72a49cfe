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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"cuemesh/api/internal/app"
	"cuemesh/api/internal/config"
	"cuemesh/api/internal/export"
	"cuemesh/api/internal/notify"
	"cuemesh/api/internal/presence"
	"cuemesh/api/internal/probe"
	"cuemesh/api/internal/realtime"
	"cuemesh/api/internal/rundown"
	"cuemesh/api/internal/search"
	"cuemesh/api/internal/store"
)

func main() {
	_ = godotenv.Load()
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

	if err := os.MkdirAll(cfg.RundownDir, 0o755); err != nil {
		log.Fatalf("failed to create rundown dir: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	presenceStore := presence.NewRedisStoreWithClient(redisClient)
	rundownService := rundown.New(cfg.RundownDir)
	probeRing := probe.NewRing(256)

	hub := realtime.NewHub()
	bus := realtime.NewBus(redisClient, hub, probeRing)
	busCtx, stopBus := context.WithCancel(ctx)
	defer stopBus()
	go func() {
		if err := bus.Run(busCtx); err != nil && busCtx.Err() == nil {
			log.Printf("change bus stopped: %v", err)
		}
	}()

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	exportService := export.NewService(export.NewPGStore(dataStore))
	notifyService := notify.NewService(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	service := app.New(cfg, dataStore, presenceStore, bus, rundownService, searchService, exportService, notifyService, probeRing)
	httpServer := app.NewHTTPServer(service, hub, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("CueMesh API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopBus()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
