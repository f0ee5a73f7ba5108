package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avdelag1/swipess/internal/cache"
	"github.com/avdelag1/swipess/internal/feed"
	"github.com/avdelag1/swipess/internal/httpapi"
	"github.com/avdelag1/swipess/internal/listing"
	"github.com/avdelag1/swipess/internal/messaging"
	"github.com/avdelag1/swipess/internal/preference"
	"github.com/avdelag1/swipess/internal/push"
	"github.com/avdelag1/swipess/internal/ratelimit"
	"github.com/avdelag1/swipess/internal/seen"
	"github.com/avdelag1/swipess/internal/session"
	"github.com/avdelag1/swipess/internal/storage"
	"github.com/avdelag1/swipess/internal/swipe"
)

func main() {
	_ = godotenv.Load()

	httpConfig := httpapi.DefaultConfig()
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		httpConfig.ListenAddr = addr
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			httpConfig.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			httpConfig.WriteTimeout = d
		}
	}

	pushConfig := push.DefaultConfig()
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pushConfig.MaxConnections = n
		}
	}

	// --- PostgreSQL ---
	dbConfig := storage.DefaultConfig()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		dbConfig.DSN = dsn
	}
	db, err := storage.Open(dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	migrationsPath := "migrations"
	if v := os.Getenv("MIGRATIONS_PATH"); v != "" {
		migrationsPath = v
	}
	if err := storage.RunMigrations(db, migrationsPath); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	sessionStore, err := session.NewStore(redisAddr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	verifier := session.NewTokenVerifier(jwtSecret)

	log.Printf("Swipess backend starting")
	log.Printf("  listen_addr:     %s", httpConfig.ListenAddr)
	log.Printf("  max_connections: %d", pushConfig.MaxConnections)
	log.Printf("  read_timeout:    %s", httpConfig.ReadTimeout)
	log.Printf("  write_timeout:   %s", httpConfig.WriteTimeout)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  migrations:      %s", migrationsPath)

	limiter := ratelimit.NewLimiter(sessionStore.Client())
	feedCache := cache.New(sessionStore.Client())
	prefStore := preference.NewStore(db)

	service := feed.NewService(
		prefStore,
		listing.NewSource(db),
		seen.NewStore(db),
		swipe.NewStore(db),
		feedCache,
		natsClient,
		ratelimit.NewSwipeGate(limiter),
	)

	hub := push.NewHub(pushConfig, natsClient)
	server := httpapi.NewServer(httpConfig, verifier, sessionStore, service, prefStore, hub, limiter)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		hub.Shutdown()
		natsClient.Close()
		if err := sessionStore.Close(); err != nil {
			log.Printf("session store close error: %v", err)
		}
		if err := db.Close(); err != nil {
			log.Printf("postgres close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
