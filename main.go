package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskweb/api"
	"taskweb/domain"
	"taskweb/identity"
	"taskweb/session"
	"taskweb/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := redis.NewClient(parseRedisOptions(cfg.RedisConn))
	defer rc.Close()

	records, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeStore()
	if cfg.StoreBackend == backendMemory {
		logger.Warn("using in-memory storage; records are lost on restart")
	}
	if cfg.LocalAuthSecret == debugLocalAuthSecret {
		logger.Warn("using the built-in debug secret for local sign-in tokens")
	}

	gateway, err := newGateway(cfg, rc)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	svc := domain.NewService(storage.NewCache(records, rc, cfg.CacheTTL))
	sessions := session.NewStore(rc, cfg.SessionTTL)
	opts := api.Options{Debug: cfg.Debug, AllowedHosts: cfg.AllowedHosts}

	e := echo.New()
	e.HideBanner = true
	api.Harden(e, opts)
	if err := api.Register(e, svc, gateway, sessions, logger, opts); err != nil {
		log.Fatalf("routes: %v", err)
	}

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	logger.WithFields(log.Fields{
		"addr":     cfg.ListenAddr,
		"store":    cfg.StoreBackend,
		"identity": cfg.IdentityProvider,
	}).Info("taskweb started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("tracer shutdown")
	}
}

func openStore(ctx context.Context, cfg config) (domain.Storage, func(), error) {
	switch cfg.StoreBackend {
	case backendPostgres:
		pg, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case backendTables:
		st, err := storage.New(cfg.StorageConnStr, cfg.TasksTable, cfg.NotesTable)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}

func newGateway(cfg config, rc *redis.Client) (api.Gateway, error) {
	if cfg.IdentityProvider == providerLocal {
		return identity.NewLocal(rc, []byte(cfg.LocalAuthSecret), time.Hour), nil
	}

	var verifier *identity.Verifier
	switch {
	case cfg.SupabaseJWTSecret != "":
		verifier = identity.NewHS256Verifier([]byte(cfg.SupabaseJWTSecret), cfg.JWTAudience, cfg.JWTIssuer)
	case cfg.SupabaseJWKSURL != "":
		jwks, err := keyfunc.Get(cfg.SupabaseJWKSURL, keyfunc.Options{RefreshInterval: time.Hour})
		if err != nil {
			return nil, err
		}
		verifier = identity.NewJWKSVerifier(jwks, cfg.JWTAudience, cfg.JWTIssuer, 0)
	}
	return identity.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, verifier), nil
}
