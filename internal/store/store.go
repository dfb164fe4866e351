// Package store persists users and tasks.
//
// Every driver implements the same small document contract: key lookups,
// inserts, field-level partial updates and deletes. Drivers do no ownership
// checks and no querying beyond "all tasks of one user"; search, sort and
// pagination happen in the task service. Missing records are reported as
// apperr.ErrRecordNotFound and duplicate emails as apperr.ErrDuplicate.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/config"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

const defaultTimeout = 5 * time.Second

// Store is a task and user repository with a connection lifecycle.
type Store interface {
	task.Repository
	user.Repository

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections.
	Close(ctx context.Context) error
}

// Open connects the driver named by cfg.Driver and wraps it with
// instrumentation. The returned store has not been pinged.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory, "":
		st = NewMemory()
	case config.DriverMongo:
		st, err = NewMongo(ctx, cfg.MongoURI.Value(), cfg.MongoDatabase)
	case config.DriverPostgres:
		st, err = NewPostgres(ctx, cfg.PostgresDSN.Value())
	case config.DriverRedis:
		st, err = NewRedis(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword.Value(),
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case config.DriverFirestore:
		st, err = NewFirestore(ctx, FirestoreOptions{
			ProjectID:       cfg.FirestoreProjectID,
			CredentialsJSON: cfg.FirestoreCredentials.Value(),
			CredentialsFile: cfg.FirestoreCredentialsFile,
		})
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverMemory
	}
	logger.Info("store opened", zap.String("driver", driver))
	return Instrument(st, driver), nil
}
