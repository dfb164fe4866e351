package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/config"
	"github.com/fyrsmithlabs/taskd/internal/store"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/token"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

// Registry provides access to all taskd services.
type Registry interface {
	Tasks() task.Service
	Users() user.Service
	Tokens() *token.Service
	Store() store.Store
}

// Options configures the registry with service instances.
type Options struct {
	Tasks  task.Service
	Users  user.Service
	Tokens *token.Service
	Store  store.Store
}

type registry struct {
	tasks  task.Service
	users  user.Service
	tokens *token.Service
	store  store.Store
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		tasks:  opts.Tasks,
		users:  opts.Users,
		tokens: opts.Tokens,
		store:  opts.Store,
	}
}

func (r *registry) Tasks() task.Service    { return r.tasks }
func (r *registry) Users() user.Service    { return r.users }
func (r *registry) Tokens() *token.Service { return r.tokens }
func (r *registry) Store() store.Store     { return r.store }

// Build opens the configured store, pings it and constructs every service
// on top of it. The caller owns the returned store and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, taskOpts ...task.Option) (Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens, err := token.NewService(token.Config{
		Secret: cfg.Auth.JWTSecret.Value(),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	timeout := cfg.Store.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	tasks, err := task.NewService(st, logger.Named("task"), taskOpts...)
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("task service: %w", err)
	}
	users, err := user.NewService(st, tokens, logger.Named("user"))
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("user service: %w", err)
	}

	return NewRegistry(Options{
		Tasks:  tasks,
		Users:  users,
		Tokens: tokens,
		Store:  st,
	}), nil
}
