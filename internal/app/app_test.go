package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stacklink/internal/backfill"
	"github.com/MrSnakeDoc/stacklink/internal/config"
	"github.com/MrSnakeDoc/stacklink/internal/dal"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/library"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/offline"
	"github.com/MrSnakeDoc/stacklink/internal/preview"
	"github.com/MrSnakeDoc/stacklink/internal/scheduler"
	"github.com/MrSnakeDoc/stacklink/internal/store/local"
)

type unreachable struct{}

func (unreachable) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: network is unreachable")
}

// newTestApp wires an App by hand, listening on addr.
func newTestApp(t *testing.T, addr string, client *goredis.Client) *App {
	t.Helper()
	log := logger.New("error", false)
	m := metrics.New()

	layer := dal.New(local.NewStore(local.NewMemoryKeySpace()), log, m)
	origin, _ := url.Parse("https://app.domain.ext")
	controller, err := offline.New(offline.Options{
		Origin:  origin,
		Network: unreachable{},
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("offline.New() unexpected error: %v", err)
	}

	worker := scheduler.NewBackfillWorker(layer, backfill.New(preview.NewChain(log), layer, log, m), log, 0)
	lib := library.New(layer, nil, worker, log)
	sweeper := scheduler.NewCacheSweeper(map[string]scheduler.Pruner{
		"buckets":   controller,
		"snapshots": lib,
	}, log, time.Hour)

	cfg := &config.Config{
		ListenPort:      addr,
		ShutdownTimeout: time.Second,
		SweepInterval:   time.Hour,
	}
	d := deps.Deps{
		Logger:      log,
		StartTime:   time.Now(),
		TimeNow:     time.Now,
		Backend:     layer.Backend(),
		RedisClient: client,
		Library:     lib,
		Offline:     controller,
		Metrics:     m,
	}

	return &App{
		cfg:         cfg,
		logger:      log,
		server:      httpserver.New(cfg, log, d),
		redisClient: client,
		layer:       layer,
		controller:  controller,
		backfill:    worker,
		sweeper:     sweeper,
	}
}

func TestRun_ServerFailureStillShutsDown(t *testing.T) {
	// Hold the port so ListenAndServe fails at once.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() unexpected error: %v", err)
	}
	defer func() { _ = ln.Close() }()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	a := newTestApp(t, ln.Addr().String(), client)

	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the server failed")
	}

	if err == nil || !strings.Contains(err.Error(), "http server error") {
		t.Fatalf("Run() error = %v, want http server error", err)
	}
	if a.controller.State() != offline.StateActivated {
		t.Errorf("controller state = %s, want activated", a.controller.State())
	}
	if err := client.Ping(context.Background()).Err(); err == nil {
		t.Error("redis client still open after Run() returned")
	}

	// The worker was stopped: a second Stop returns at once.
	stopped := make(chan struct{})
	go func() {
		a.backfill.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("backfill worker was not stopped")
	}
}
