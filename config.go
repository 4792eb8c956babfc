package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	backendPostgres = "postgres"
	backendTables   = "tables"
	backendMemory   = "memory"

	providerSupabase = "supabase"
	providerLocal    = "local"

	defaultAllowedHosts = "localhost,127.0.0.1,.onrender.com"

	// debugLocalAuthSecret signs local gateway tokens in DEBUG when no secret is set.
	debugLocalAuthSecret = "taskweb-insecure-debug-secret"
)

type config struct {
	Debug        bool
	SecretKey    string
	AllowedHosts []string
	ListenAddr   string

	RedisConn  string
	SessionTTL time.Duration
	CacheTTL   time.Duration

	StoreBackend   string
	DatabaseURL    string
	StorageConnStr string
	TasksTable     string
	NotesTable     string

	IdentityProvider  string
	SupabaseURL       string
	SupabaseKey       string
	SupabaseJWTSecret string
	SupabaseJWKSURL   string
	JWTAudience       string
	JWTIssuer         string
	LocalAuthSecret   string
}

// loadConfig reads the configuration through getenv; unset and empty
// variables are treated alike.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		SecretKey:         getenv("SECRET_KEY"),
		RedisConn:         getenv("REDIS_CONNECTION_STRING"),
		SessionTTL:        24 * time.Hour,
		CacheTTL:          5 * time.Minute,
		DatabaseURL:       getenv("DATABASE_URL"),
		StorageConnStr:    getenv("STORAGE_CONNECTION_STRING"),
		TasksTable:        valueOr(getenv("TASKS_TABLE"), "Tasks"),
		NotesTable:        valueOr(getenv("NOTES_TABLE"), "Notes"),
		SupabaseURL:       getenv("SUPABASE_URL"),
		SupabaseKey:       getenv("SUPABASE_KEY"),
		SupabaseJWTSecret: getenv("SUPABASE_JWT_SECRET"),
		SupabaseJWKSURL:   getenv("SUPABASE_JWKS_URL"),
		JWTAudience:       getenv("JWT_AUDIENCE"),
		JWTIssuer:         getenv("JWT_ISSUER"),
	}

	if v := getenv("DEBUG"); v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return config{}, fmt.Errorf("invalid DEBUG: %w", err)
		}
		cfg.Debug = dbg
	}
	if cfg.SecretKey == "" && !cfg.Debug {
		return config{}, errors.New("missing SECRET_KEY")
	}

	for _, h := range strings.Split(valueOr(getenv("ALLOWED_HOSTS"), defaultAllowedHosts), ",") {
		if h = strings.TrimSpace(h); h != "" {
			cfg.AllowedHosts = append(cfg.AllowedHosts, h)
		}
	}

	port := valueOr(getenv("FUNCTIONS_CUSTOMHANDLER_PORT"), valueOr(getenv("PORT"), "8080"))
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return config{}, fmt.Errorf("invalid port %q", port)
	}
	cfg.ListenAddr = ":" + port

	if cfg.RedisConn == "" {
		return config{}, errors.New("missing redis config")
	}
	if v := getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("invalid SESSION_TTL: %q", v)
		}
		cfg.SessionTTL = d
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return config{}, fmt.Errorf("invalid CACHE_TTL: %q", v)
		}
		cfg.CacheTTL = d
	}

	cfg.StoreBackend = strings.ToLower(getenv("STORE_BACKEND"))
	if cfg.StoreBackend == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.StoreBackend = backendPostgres
		case cfg.StorageConnStr != "":
			cfg.StoreBackend = backendTables
		case cfg.Debug:
			cfg.StoreBackend = backendMemory
		default:
			return config{}, errors.New("missing storage config")
		}
	}
	switch cfg.StoreBackend {
	case backendPostgres:
		if cfg.DatabaseURL == "" {
			return config{}, errors.New("missing DATABASE_URL")
		}
	case backendTables:
		if cfg.StorageConnStr == "" {
			return config{}, errors.New("missing STORAGE_CONNECTION_STRING")
		}
	case backendMemory:
	default:
		return config{}, fmt.Errorf("invalid STORE_BACKEND: %q", cfg.StoreBackend)
	}

	cfg.IdentityProvider = strings.ToLower(getenv("IDENTITY_PROVIDER"))
	if cfg.IdentityProvider == "" {
		cfg.IdentityProvider = providerLocal
		if cfg.SupabaseURL != "" {
			cfg.IdentityProvider = providerSupabase
		}
	}
	switch cfg.IdentityProvider {
	case providerSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return config{}, errors.New("missing Supabase config")
		}
	case providerLocal:
		cfg.LocalAuthSecret = valueOr(getenv("LOCAL_AUTH_SECRET"), cfg.SecretKey)
		if cfg.LocalAuthSecret == "" && cfg.Debug {
			cfg.LocalAuthSecret = debugLocalAuthSecret
		}
		if cfg.LocalAuthSecret == "" {
			return config{}, errors.New("missing LOCAL_AUTH_SECRET")
		}
	default:
		return config{}, fmt.Errorf("invalid IDENTITY_PROVIDER: %q", cfg.IdentityProvider)
	}
	return cfg, nil
}

// parseRedisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
