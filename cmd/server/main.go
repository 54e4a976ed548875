package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-agritour/internal/api"
	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/chat"
	"github.com/npezzotti/go-agritour/internal/config"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/listing"
	"github.com/npezzotti/go-agritour/internal/mailer"
	"github.com/npezzotti/go-agritour/internal/realtime"
	"github.com/npezzotti/go-agritour/internal/server"
	"github.com/npezzotti/go-agritour/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	baseURL        string
	redisURL       string
	mongoURI       string
	mongoDatabase  string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[agritour] ", log.LstdFlags)

	if err := config.LoadEnv(".env"); err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&addr, "addr", config.EnvOr("AGRITOUR_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", config.EnvOr("AGRITOUR_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string, or sqlite3://<path>")
	flag.StringVar(&signingKey, "signing-key", config.EnvOr("AGRITOUR_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&baseURL, "base-url", config.EnvOr("AGRITOUR_BASE_URL", ""), "public URL used in blob and password reset links")
	flag.StringVar(&redisURL, "redis-url", config.EnvOr("AGRITOUR_REDIS_URL", ""), "redis URL for chat storage; empty keeps chats in memory")
	flag.StringVar(&mongoURI, "mongo-uri", config.EnvOr("AGRITOUR_MONGO_URI", ""), "mongodb URI for image storage; empty keeps images in memory")
	flag.StringVar(&mongoDatabase, "mongo-db", config.EnvOr("AGRITOUR_MONGO_DB", "agritour"), "mongodb database for image storage")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if v := config.EnvOr("AGRITOUR_ALLOWED_ORIGINS", ""); v != "" {
			allowedOrigins.Set(v)
		}
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.RedisURL = redisURL
	cfg.MongoURI = mongoURI
	cfg.MongoDatabase = mongoDatabase
	cfg.SMTP = config.SMTPConfig{
		Host:     config.EnvOr("AGRITOUR_SMTP_HOST", ""),
		Port:     config.EnvIntOr("AGRITOUR_SMTP_PORT", 587),
		Username: config.EnvOr("AGRITOUR_SMTP_USER", ""),
		Password: config.EnvOr("AGRITOUR_SMTP_PASSWORD", ""),
		From:     config.EnvOr("AGRITOUR_SMTP_FROM", "no-reply@agritour.local"),
	}

	dbConn, err := database.NewSqlAgriTourRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()

	var store realtime.Store
	if cfg.RedisURL != "" {
		rs, err := realtime.NewRedisStore(startCtx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal("redis:", err)
		}
		defer rs.Close()
		store = rs
	} else {
		logger.Println("no redis url configured, keeping chats in memory")
		store = realtime.NewMemoryStore()
	}

	var blobs blob.Store
	if cfg.MongoURI != "" {
		gs, err := blob.NewGridFSStore(startCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal("gridfs:", err)
		}
		defer gs.Close(context.Background())
		blobs = gs
	} else {
		logger.Println("no mongodb uri configured, keeping images in memory")
		blobs = blob.NewMemoryStore()
	}

	var mail mailer.Mailer
	if cfg.SMTP.Enabled() {
		mail = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		mail = mailer.NewLogMailer(logger)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(logger, mux)

	catalog := listing.NewCatalog(logger, dbConn)
	catalog.Load()

	hub := server.NewHub(logger, statsUpdater)

	srv := api.NewAgriTourApp(mux, logger, dbConn, api.Services{
		Hub:       hub,
		Catalog:   catalog,
		Publisher: listing.NewPublisher(logger, dbConn, blobs, catalog, cfg.BaseURL, statsUpdater),
		Bookings:  booking.NewService(logger, dbConn, statsUpdater),
		Chats:     chat.NewService(logger, store, dbConn, statsUpdater),
		Blobs:     blobs,
		Mailer:    mail,
	}, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down websocket hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
