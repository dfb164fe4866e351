package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
)

const instrumentationName = "github.com/fyrsmithlabs/taskd/internal/task"

// Service provides task operations scoped to the calling user. A task owned
// by someone else is reported exactly like a missing one.
type Service interface {
	// List returns one page of the caller's tasks after search and sort.
	List(ctx context.Context, userID string, opts ListOptions) (*Page, error)

	// Get returns a task owned by userID.
	Get(ctx context.Context, id, userID string) (*Task, error)

	// Create stores a new task for userID.
	Create(ctx context.Context, userID string, req CreateRequest) (*Task, error)

	// Update applies a partial update to a task owned by userID.
	Update(ctx context.Context, id, userID string, patch Patch) (*Task, error)

	// Delete removes a task owned by userID.
	Delete(ctx context.Context, id, userID string) error
}

// Option configures the service.
type Option func(*service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *service) { s.newID = gen }
}

// Instrumentation provides tracers and meters; *telemetry.Telemetry
// satisfies it.
type Instrumentation interface {
	Tracer(name string, opts ...trace.TracerOption) trace.Tracer
	Meter(name string, opts ...metric.MeterOption) metric.Meter
}

// WithTelemetry takes tracer and meter from tel instead of the globals.
func WithTelemetry(tel Instrumentation) Option {
	return func(s *service) {
		s.tracer = tel.Tracer(instrumentationName)
		s.meter = tel.Meter(instrumentationName)
	}
}

type service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	tracer trace.Tracer
	meter  metric.Meter
	ops    metric.Int64Counter
}

// NewService creates a task service backed by repo.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, errors.New("task repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.ops, err = s.meter.Int64Counter(
		"taskd.task.operations_total",
		metric.WithDescription("Task service operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		s.logger.Warn("failed to create task operations counter", zap.Error(err))
	}

	return s, nil
}

// start opens a span for op and returns a finisher that records outcome.
func (s *service) start(ctx context.Context, op, userID string) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "task."+op, trace.WithAttributes(attribute.String("user.id", userID)))
	return ctx, func(errp *error) {
		outcome := "ok"
		if err := *errp; err != nil {
			outcome = apperr.KindOf(err).String()
			if apperr.KindOf(err) == apperr.KindInternal {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		if s.ops != nil {
			s.ops.Add(ctx, 1, metric.WithAttributes(
				attribute.String("op", op),
				attribute.String("outcome", outcome),
			))
		}
		span.End()
	}
}

func (s *service) List(ctx context.Context, userID string, opts ListOptions) (_ *Page, err error) {
	ctx, done := s.start(ctx, "list", userID)
	defer done(&err)

	if userID == "" {
		return nil, apperr.Unauthorized("missing user")
	}

	tasks, err := s.repo.ListTasksByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list tasks", err)
	}

	page := Query(tasks, opts)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("task.total", page.Total),
		attribute.Int("task.page", page.Page),
	)
	return page, nil
}

func (s *service) Get(ctx context.Context, id, userID string) (_ *Task, err error) {
	ctx, done := s.start(ctx, "get", userID)
	defer done(&err)

	return s.owned(ctx, id, userID)
}

// owned loads id and checks it belongs to userID.
func (s *service) owned(ctx context.Context, id, userID string) (*Task, error) {
	if id == "" {
		return nil, apperr.Validation("task id is required")
	}

	t, err := s.repo.GetTask(ctx, id)
	if errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, apperr.NotFound("task not found")
	}
	if err != nil {
		return nil, apperr.Internal("get task", err)
	}

	if t.UserID != userID {
		s.logger.Warn("task ownership mismatch",
			zap.String("task.id", id),
			zap.String("user.id", userID),
		)
		return nil, apperr.NotFound("task not found")
	}
	return t, nil
}

func (s *service) Create(ctx context.Context, userID string, req CreateRequest) (_ *Task, err error) {
	ctx, done := s.start(ctx, "create", userID)
	defer done(&err)

	if userID == "" {
		return nil, apperr.Unauthorized("missing user")
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Task{
		ID:          s.newID(),
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, apperr.Internal("create task", err)
	}

	s.logger.Debug("task created", zap.String("task.id", t.ID), zap.String("user.id", userID))
	return t, nil
}

func (s *service) Update(ctx context.Context, id, userID string, patch Patch) (_ *Task, err error) {
	ctx, done := s.start(ctx, "update", userID)
	defer done(&err)

	if err := patch.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, id, userID); err != nil {
		return nil, err
	}

	// Last write wins: there is no version check between the ownership read
	// and this write.
	t, err := s.repo.UpdateTask(ctx, id, patch, s.now().UTC())
	if errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, apperr.NotFound("task not found")
	}
	if err != nil {
		return nil, apperr.Internal("update task", err)
	}
	return t, nil
}

func (s *service) Delete(ctx context.Context, id, userID string) (err error) {
	ctx, done := s.start(ctx, "delete", userID)
	defer done(&err)

	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}

	err = s.repo.DeleteTask(ctx, id)
	if errors.Is(err, apperr.ErrRecordNotFound) {
		return apperr.NotFound("task not found")
	}
	if err != nil {
		return apperr.Internal("delete task", err)
	}
	return nil
}
