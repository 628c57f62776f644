package dal

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

// RemoteInit attempts to bring up the remote backend.
type RemoteInit func(ctx context.Context) (store.Store, error)

// LocalInit builds the local backend.
type LocalInit func() (store.Store, error)

// Select decides the backend once for the process lifetime. The remote
// backend wins when remote succeeds; any failure (missing configuration,
// unreachable service, panic) falls back to local. There is no way to
// switch afterwards.
func Select(ctx context.Context, remote RemoteInit, local LocalInit, log logger.Logger, m *metrics.Metrics) (*Layer, error) {
	if remote != nil {
		backend, err := tryRemote(ctx, remote)
		if err == nil {
			log.Info("data layer bound to remote backend")
			return New(backend, log, m), nil
		}
		log.Warn("remote backend unavailable, falling back to local backend",
			logger.Error(err))
	}

	backend, err := local()
	if err != nil {
		return nil, err
	}
	log.Info("data layer bound to local backend")
	return New(backend, log, m), nil
}

func tryRemote(ctx context.Context, remote RemoteInit) (backend store.Store, err error) {
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("remote backend init panicked: %v", r)
		}
	}()
	return remote(ctx)
}
