// Package offline implements the offline cache controller: a versioned
// response cache primed with the app shell, sitting in front of the app
// origin as an http.RoundTripper.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/utils"
)

const (
	// SourceHeader tells the caller where a controlled response came from.
	SourceHeader = "X-Offline-Source"

	DefaultRevalidateTimeout = 30 * time.Second
	DefaultPrimeConcurrency  = 4
	DefaultMaxEntryBytes     = 16 << 20
)

var (
	// ErrNotCached is returned by Storage.Get on a miss.
	ErrNotCached = errors.New("not cached")

	// ErrNoResponse is a network failure with nothing cached to fall back to.
	ErrNoResponse = errors.New("no response available")

	errTooLarge = errors.New("response too large to cache")
)

// State is the controller lifecycle position.
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// MessageSkipWaiting forces a waiting controller to activate.
const MessageSkipWaiting = "SKIP_WAITING"

// Message is a control instruction posted to the controller.
type Message struct {
	Type string `json:"type"`
}

// Options configures a Controller. Origin is required.
type Options struct {
	Origin   *url.URL
	Manifest *Manifest
	Storage  Storage

	// Network reaches the origin. Defaults to http.DefaultTransport.
	Network http.RoundTripper

	RevalidateTimeout time.Duration
	PrimeConcurrency  int

	// MaxEntryBytes bounds a cached body. Larger responses are served live
	// and never stored.
	MaxEntryBytes int64

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Controller serves the app origin from its cache bucket according to the
// strategy of each request. It is safe for concurrent use.
type Controller struct {
	origin   *url.URL
	manifest *Manifest
	bucket   string
	storage  Storage
	network  http.RoundTripper

	revalidateTimeout time.Duration
	primeConcurrency  int
	maxEntryBytes     int64

	logger  logger.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	state       State
	skipWaiting bool

	background sync.WaitGroup
}

// New builds a controller in the parsed state.
func New(opts Options) (*Controller, error) {
	if opts.Origin == nil || opts.Origin.Scheme == "" || opts.Origin.Host == "" {
		return nil, errors.New("offline: absolute origin url is required")
	}
	if opts.Manifest == nil {
		opts.Manifest = DefaultManifest()
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Network == nil {
		opts.Network = http.DefaultTransport
	}
	if opts.RevalidateTimeout <= 0 {
		opts.RevalidateTimeout = DefaultRevalidateTimeout
	}
	if opts.PrimeConcurrency <= 0 {
		opts.PrimeConcurrency = DefaultPrimeConcurrency
	}
	if opts.MaxEntryBytes <= 0 {
		opts.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Controller{
		origin:            opts.Origin,
		manifest:          opts.Manifest,
		bucket:            opts.Manifest.BucketName(),
		storage:           opts.Storage,
		network:           opts.Network,
		revalidateTimeout: opts.RevalidateTimeout,
		primeConcurrency:  opts.PrimeConcurrency,
		maxEntryBytes:     opts.MaxEntryBytes,
		logger:            opts.Logger.With(logger.String("bucket", opts.Manifest.BucketName())),
		metrics:           opts.Metrics,
		state:             StateParsed,
	}, nil
}

// Bucket returns the current bucket name.
func (c *Controller) Bucket() string { return c.bucket }

// State returns the lifecycle position.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start installs and, since install requests skip-waiting, activates.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.Install(ctx); err != nil {
		return err
	}
	if !c.skipWaitingRequested() {
		return nil
	}
	return c.Activate(ctx)
}

// Install opens the current bucket and primes it with every app-shell
// path. Each path is fetched independently; failures are logged and do not
// abort the others. Only a failure to open the bucket fails the install.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)

	if err := c.storage.Open(ctx, c.bucket); err != nil {
		c.setState(StateRedundant)
		return fmt.Errorf("failed to open cache bucket: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.primeConcurrency)

	var (
		mu     sync.Mutex
		primed int
	)
	for _, p := range c.manifest.Shell {
		p := p
		g.Go(func() error {
			if err := c.prime(gctx, p); err != nil {
				c.logger.Warn("failed to prime app shell path",
					logger.String("path", p),
					logger.Error(err))
				return nil
			}
			mu.Lock()
			primed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	c.state = StateInstalled
	c.skipWaiting = true
	c.mu.Unlock()

	c.logger.Info("offline cache installed",
		logger.Int("primed", primed),
		logger.Int("shell", len(c.manifest.Shell)))
	return nil
}

// Activate deletes every stale bucket and claims control of requests.
// Activating an already active controller only prunes again.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateInstalled, StateActivated:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot activate from state %s", state)
	}
	prev := c.state
	c.state = StateActivating
	c.mu.Unlock()

	evicted, err := c.Prune(ctx)
	if err != nil {
		c.setState(prev)
		return err
	}

	c.setState(StateActivated)
	c.logger.Info("offline cache activated",
		logger.Strings("evicted", evicted))
	return nil
}

// Prune deletes every bucket whose name differs from the current one and
// returns the deleted names.
func (c *Controller) Prune(ctx context.Context) ([]string, error) {
	names, err := c.storage.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache buckets: %w", err)
	}

	evicted := make([]string, 0, len(names))
	for _, name := range names {
		if name == c.bucket {
			continue
		}
		ok, err := c.storage.Delete(ctx, name)
		if err != nil {
			return evicted, fmt.Errorf("failed to delete cache bucket %q: %w", name, err)
		}
		if ok {
			evicted = append(evicted, name)
			c.metrics.OfflineEvictions.Inc()
		}
	}
	return evicted, nil
}

// Message handles a control instruction. SKIP_WAITING activates a waiting
// controller immediately. Unknown types are ignored.
func (c *Controller) Message(ctx context.Context, msg Message) error {
	if msg.Type != MessageSkipWaiting {
		c.logger.Debug("ignoring unknown control message", logger.String("type", msg.Type))
		return nil
	}

	c.mu.Lock()
	c.skipWaiting = true
	waiting := c.state == StateInstalled
	c.mu.Unlock()

	if !waiting {
		return nil
	}
	return c.Activate(ctx)
}

// Wait blocks until every background revalidation has finished.
func (c *Controller) Wait() {
	c.background.Wait()
}

// RoundTrip implements http.RoundTripper. Requests are only controlled
// once the controller is active; before that they reach the network as is.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	strategy := c.Classify(req)
	if c.State() != StateActivated {
		strategy = StrategyPassthrough
	}

	switch strategy {
	case StrategyCacheFirst:
		return c.cacheFirst(req)
	case StrategyNetworkFirst:
		return c.networkFirst(req)
	case StrategyStaleWhileRevalidate:
		return c.staleWhileRevalidate(req)
	default:
		c.count(StrategyPassthrough, "network")
		return c.network.RoundTrip(req)
	}
}

// cacheFirst serves a cached copy without touching the network. On a miss
// it fetches, stores and returns. Cached copies are never revalidated.
func (c *Controller) cacheFirst(req *http.Request) (*http.Response, error) {
	key := c.cacheKey(req.URL)
	if e, ok := c.lookup(req.Context(), key); ok {
		c.count(StrategyCacheFirst, "cache")
		return e.response(req, "cache"), nil
	}

	e, live, err := c.fetch(req)
	if err != nil {
		c.count(StrategyCacheFirst, "error")
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	if live != nil {
		c.count(StrategyCacheFirst, "network")
		return live, nil
	}
	c.store(req.Context(), key, e)
	c.count(StrategyCacheFirst, "network")
	return e.response(req, "network"), nil
}

// networkFirst always tries the network and keeps the fresh copy under the
// entry key. On network failure it serves the last cached entry page.
func (c *Controller) networkFirst(req *http.Request) (*http.Response, error) {
	e, live, err := c.fetch(req)
	if err == nil && live != nil {
		c.count(StrategyNetworkFirst, "network")
		return live, nil
	}
	if err == nil {
		c.store(req.Context(), c.manifest.Entry, e)
		c.count(StrategyNetworkFirst, "network")
		return e.response(req, "network"), nil
	}

	if cached, ok := c.lookup(req.Context(), c.manifest.Entry); ok {
		c.logger.Debug("serving cached entry page",
			logger.String("path", req.URL.Path),
			logger.Error(err))
		c.count(StrategyNetworkFirst, "fallback")
		return cached.response(req, "cache"), nil
	}

	c.count(StrategyNetworkFirst, "error")
	return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
}

// staleWhileRevalidate serves a cached copy at once and refreshes it in the
// background. On a miss it waits on the network.
func (c *Controller) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	key := c.cacheKey(req.URL)
	if e, ok := c.lookup(req.Context(), key); ok {
		c.revalidate(req, key)
		c.count(StrategyStaleWhileRevalidate, "cache")
		return e.response(req, "cache"), nil
	}

	e, live, err := c.fetch(req)
	if err != nil {
		c.count(StrategyStaleWhileRevalidate, "error")
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	if live != nil {
		c.count(StrategyStaleWhileRevalidate, "network")
		return live, nil
	}
	c.store(req.Context(), key, e)
	c.count(StrategyStaleWhileRevalidate, "network")
	return e.response(req, "network"), nil
}

// revalidate refreshes key in a detached goroutine. Its result only ever
// reaches the cache.
func (c *Controller) revalidate(req *http.Request, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), c.revalidateTimeout)
	bg := req.Clone(ctx)

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer cancel()

		e, err := c.fetchEntry(bg)
		if err != nil {
			c.logger.Debug("background revalidation failed",
				logger.String("key", key),
				logger.Error(err))
			return
		}
		c.store(ctx, key, e)
	}()
}

// prime fetches one shell path with caching disabled upstream.
func (c *Controller) prime(ctx context.Context, p string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(p), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	e, err := c.fetchEntry(req)
	if err != nil {
		return err
	}
	if !e.OK() {
		return fmt.Errorf("unexpected status %d", e.Status)
	}
	if err := c.storage.Put(ctx, c.bucket, c.cacheKey(req.URL), e); err != nil {
		return fmt.Errorf("failed to store: %w", err)
	}
	return nil
}

// fetch performs the network round trip and buffers the body into an
// entry. A body over maxEntryBytes is not buffered: the live response is
// returned instead, with the bytes already read put back in front.
func (c *Controller) fetch(req *http.Request) (*Entry, *http.Response, error) {
	resp, err := c.network.RoundTrip(req)
	if err != nil {
		return nil, nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxEntryBytes+1))
	if err != nil {
		utils.Close(resp.Body)
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxEntryBytes {
		rest := resp.Body
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), rest), rest}
		if resp.Header == nil {
			resp.Header = make(http.Header)
		}
		resp.Header.Set(SourceHeader, "network")
		c.logger.Debug("response too large to cache",
			logger.String("path", req.URL.Path),
			logger.Int64("limit", c.maxEntryBytes))
		return nil, resp, nil
	}
	utils.Close(resp.Body)

	header := resp.Header.Clone()
	header.Del(SourceHeader)
	return &Entry{
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now(),
	}, nil, nil
}

// fetchEntry is fetch for callers that only cache. Oversized responses are
// discarded with errTooLarge.
func (c *Controller) fetchEntry(req *http.Request) (*Entry, error) {
	e, live, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	if live != nil {
		utils.Close(live.Body)
		return nil, errTooLarge
	}
	return e, nil
}

// lookup treats every storage error as a miss.
func (c *Controller) lookup(ctx context.Context, key string) (*Entry, bool) {
	e, err := c.storage.Get(ctx, c.bucket, key)
	if err != nil {
		if !errors.Is(err, ErrNotCached) {
			c.logger.Debug("cache read failed", logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	return e, true
}

// store keeps 2xx entries. Write failures are counted and discarded.
func (c *Controller) store(ctx context.Context, key string, e *Entry) {
	if !e.OK() {
		return
	}
	if err := c.storage.Put(ctx, c.bucket, key, e); err != nil {
		c.metrics.OfflineCacheWriteFailures.Inc()
		c.logger.Debug("cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// cacheKey is the origin-relative path plus query.
func (c *Controller) cacheKey(u *url.URL) string {
	key := c.relativePath(u.Path)
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// resolve turns an origin-relative path into an absolute URL.
func (c *Controller) resolve(p string) string {
	return c.origin.JoinPath(p).String()
}

func (c *Controller) count(s Strategy, source string) {
	c.metrics.OfflineResponses.WithLabelValues(string(s), source).Inc()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) skipWaitingRequested() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skipWaiting
}
