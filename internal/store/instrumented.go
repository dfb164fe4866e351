package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

const instrumentationName = "github.com/fyrsmithlabs/taskd/internal/store"

// InstrumentOption configures Instrument.
type InstrumentOption func(*instrumented)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(s *instrumented) { s.tracer = tp.Tracer(instrumentationName) }
}

type instrumented struct {
	next   Store
	driver string
	tracer trace.Tracer
}

// Instrument wraps st so every call records a span and Prometheus metrics.
// Not-found and duplicate results are expected outcomes and do not mark the
// span as failed.
func Instrument(st Store, driver string, opts ...InstrumentOption) Store {
	s := &instrumented{
		next:   st,
		driver: driver,
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *instrumented) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", s.driver),
			attribute.String("db.operation", op),
		),
	)
	return ctx, func(err error) {
		result := resultOf(err)
		if result == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("store.result", result))
		span.End()

		OperationsTotal.WithLabelValues(s.driver, op, result).Inc()
		OperationDuration.WithLabelValues(s.driver, op).Observe(time.Since(start).Seconds())
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrDuplicate):
		return "duplicate"
	default:
		return "error"
	}
}

func (s *instrumented) ListTasksByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	ctx, done := s.observe(ctx, "list_tasks")
	tasks, err := s.next.ListTasksByUser(ctx, userID)
	done(err)
	return tasks, err
}

func (s *instrumented) GetTask(ctx context.Context, id string) (*task.Task, error) {
	ctx, done := s.observe(ctx, "get_task")
	t, err := s.next.GetTask(ctx, id)
	done(err)
	return t, err
}

func (s *instrumented) CreateTask(ctx context.Context, t *task.Task) error {
	ctx, done := s.observe(ctx, "create_task")
	err := s.next.CreateTask(ctx, t)
	done(err)
	return err
}

func (s *instrumented) UpdateTask(ctx context.Context, id string, p task.Patch, updatedAt time.Time) (*task.Task, error) {
	ctx, done := s.observe(ctx, "update_task")
	t, err := s.next.UpdateTask(ctx, id, p, updatedAt)
	done(err)
	return t, err
}

func (s *instrumented) DeleteTask(ctx context.Context, id string) error {
	ctx, done := s.observe(ctx, "delete_task")
	err := s.next.DeleteTask(ctx, id)
	done(err)
	return err
}

func (s *instrumented) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, done := s.observe(ctx, "find_user_by_email")
	u, err := s.next.FindUserByEmail(ctx, email)
	done(err)
	return u, err
}

func (s *instrumented) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	ctx, done := s.observe(ctx, "find_user_by_id")
	u, err := s.next.FindUserByID(ctx, id)
	done(err)
	return u, err
}

func (s *instrumented) CreateUser(ctx context.Context, u *user.User) error {
	ctx, done := s.observe(ctx, "create_user")
	err := s.next.CreateUser(ctx, u)
	done(err)
	return err
}

func (s *instrumented) Ping(ctx context.Context) error {
	ctx, done := s.observe(ctx, "ping")
	err := s.next.Ping(ctx)
	done(err)
	if err != nil {
		PingStatus.WithLabelValues(s.driver).Set(0)
	} else {
		PingStatus.WithLabelValues(s.driver).Set(1)
	}
	return err
}

func (s *instrumented) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
