package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stacklink/internal/library"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/offline"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access healthz/readyz/infra/metrics endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimit    int              // requests per minute per client on /api (0 = off)
	OwnerHeader  string           // trusted header carrying the authenticated owner id
	OwnerProxies []string         // peers allowed to set OwnerHeader (empty = any peer)

	Backend     store.Kind          // data backend selected at startup
	RedisClient *redis.Client       // nil when running on the local backend
	Library     *library.Library    // per-owner application state
	Offline     *offline.Controller // offline cache controller fronting the app origin
	Metrics     *metrics.Metrics
}
