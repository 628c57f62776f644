package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Offline cache controller
	OriginURL         *url.URL      // app origin the controller fronts (ex: https://app.domain.ext)
	ManifestFile      string        // optional app-shell manifest (empty = built-in shell)
	CacheVersion      string        // optional, overrides the manifest version
	CacheStorage      string        // "memory" | "redis" (redis requires the remote backend)
	RevalidateTimeout time.Duration // timeout of background revalidations (default: 30s)
	PrimeConcurrency  int           // concurrent app-shell fetches on install (default: 4)
	SweepInterval     time.Duration // interval to delete stale buckets and idle snapshots (default: 1h)

	// Data access layer
	DataDir      string        // local backend directory (default: ./data)
	OwnerHeader  string        // trusted header carrying the authenticated owner id
	OwnerProxies []string      // peers allowed to set OwnerHeader (default: loopback)
	SnapshotTTL  time.Duration // idle owner snapshots are dropped after this (default: 30m)

	// Link previews
	PreviewEndpoint   string        // optional metadata endpoint (GET ?url=)
	MicrolinkEndpoint string        // fallback provider (default: https://api.microlink.io)
	PreviewTimeout    time.Duration // per provider request timeout (default: 8s)
	BackfillInterval  time.Duration // periodic backfill for known owners (default: 6h, 0 = off)

	// Redis (remote backend, attempted only when RedisAddr is set)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateLimit    int      // requests per minute per client on /api (0 = off)
}

// Load reads the configuration from the environment. Variables found in the
// .env file (STACKLINK_ENV_FILE) fill in whatever the environment lacks.
func Load() *Config {
	loadDotEnv(getenv("STACKLINK_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("STACKLINK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("STACKLINK_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("STACKLINK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STACKLINK_PRETTY_LOG", true),

		// Offline cache
		OriginURL:         mustURL("STACKLINK_ORIGIN_URL"),
		ManifestFile:      getenv("STACKLINK_MANIFEST_FILE", ""),
		CacheVersion:      getenv("STACKLINK_CACHE_VERSION", ""),
		CacheStorage:      getenv("STACKLINK_CACHE_STORAGE", "memory"),
		RevalidateTimeout: mustDuration("STACKLINK_REVALIDATE_TIMEOUT", 30*time.Second),
		PrimeConcurrency:  getenvInt("STACKLINK_PRIME_CONCURRENCY", 4),
		SweepInterval:     mustDuration("STACKLINK_SWEEP_INTERVAL", time.Hour),

		// Data
		DataDir:      getenv("STACKLINK_DATA_DIR", "./data"),
		OwnerHeader:  getenv("STACKLINK_OWNER_HEADER", "X-Forwarded-User"),
		OwnerProxies: parseAllowedIPs(getenv("STACKLINK_OWNER_PROXIES", "127.0.0.1/8, ::1")),
		SnapshotTTL:  mustDuration("STACKLINK_SNAPSHOT_TTL", 30*time.Minute),

		// Previews
		PreviewEndpoint:   getenv("STACKLINK_PREVIEW_ENDPOINT", ""),
		MicrolinkEndpoint: getenv("STACKLINK_MICROLINK_ENDPOINT", "https://api.microlink.io"),
		PreviewTimeout:    mustDuration("STACKLINK_PREVIEW_TIMEOUT", 8*time.Second),
		BackfillInterval:  mustDuration("STACKLINK_BACKFILL_INTERVAL", 6*time.Hour),

		// Redis settings
		RedisAddr:             getenv("STACKLINK_REDIS_ADDR", ""),
		RedisUser:             getenv("STACKLINK_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("STACKLINK_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("STACKLINK_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("STACKLINK_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("STACKLINK_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("STACKLINK_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("STACKLINK_TRUST_PROXY", true),
		RateLimit:    getenvInt("STACKLINK_RATE_LIMIT", 120),
	}

	// Validate Redis password configuration
	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: STACKLINK_REDIS_PASSWORD is required when STACKLINK_REDIS_PASSWORD_REQUIRED=true")
	}

	switch cfg.CacheStorage {
	case "memory", "redis":
	default:
		panic(fmt.Sprintf("❌ FATAL: Invalid STACKLINK_CACHE_STORAGE %q (memory or redis)", cfg.CacheStorage))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// loadDotEnv never overrides variables already set. A missing file is fine.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		panic(fmt.Sprintf("❌ FATAL: Invalid env file %s: %v", path, err))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func mustURL(key string) *url.URL {
	v := requireEnv(key)
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		panic(fmt.Sprintf("❌ FATAL: Invalid absolute URL for %s: %s", key, v))
	}
	return u
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
