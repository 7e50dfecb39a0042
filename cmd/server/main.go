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

	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/movie-ratings/db"
	"github.com/Clark-Hu/movie-ratings/internal/auth"
	"github.com/Clark-Hu/movie-ratings/internal/config"
	httpserver "github.com/Clark-Hu/movie-ratings/internal/http"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
	"github.com/Clark-Hu/movie-ratings/internal/session"
	"github.com/Clark-Hu/movie-ratings/internal/store"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[movie-ratings] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(dbCtx, db.Migrations); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	sessionStore, closeSessions, err := newSessionStore(dbCtx, cfg, logger)
	if err != nil {
		log.Fatalf("init sessions: %v", err)
	}
	defer closeSessions()

	repo := repository.New(st)
	server := httpserver.New(cfg, st, repo,
		session.NewManager(sessionStore, cfg.SessionName),
		auth.NewHasher(cfg.BcryptCost),
		logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()
	logger.Printf("listening on :%s", cfg.Port)

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}

// newSessionStore keeps sessions in Redis when REDIS_ADDR is set and in
// signed cookies otherwise.
func newSessionStore(ctx context.Context, cfg config.Config, logger *log.Logger) (sessions.Store, func(), error) {
	opts := session.Options{MaxAgeSecs: cfg.SessionMaxAgeSecs, Secure: cfg.SessionSecure}
	secret := []byte(cfg.SessionSecret)

	if cfg.RedisAddr == "" {
		logger.Println("sessions: using cookie store")
		return session.NewCookieStore(secret, opts), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rs := session.NewRedisStore(client, opts, secret)
	if err := rs.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Printf("sessions: using redis at %s", cfg.RedisAddr)
	return rs, func() { _ = client.Close() }, nil
}
