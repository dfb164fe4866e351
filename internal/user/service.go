package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
)

const instrumentationName = "github.com/fyrsmithlabs/taskd/internal/user"

// TokenIssuer signs tokens for a user. *token.Service satisfies it.
type TokenIssuer interface {
	Generate(userID, email string) (string, time.Time, error)
}

// Session is a user together with a freshly issued token.
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// Service manages users and issues their tokens.
type Service interface {
	// FindByEmail looks up a user by normalized email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID looks up a user by id.
	FindByID(ctx context.Context, id string) (*User, error)

	// Create stores a new user for email. It fails with Conflict if the email
	// is taken.
	Create(ctx context.Context, email string) (*User, error)

	// Login issues a token for an existing user. It never creates one.
	Login(ctx context.Context, email string) (*Session, error)

	// Register creates a user and issues a token.
	Register(ctx context.Context, email string) (*Session, error)

	// Profile returns the user named by userID.
	Profile(ctx context.Context, userID string) (*User, error)

	// RefreshToken re-signs a token for a user that still exists.
	RefreshToken(ctx context.Context, userID string) (*Session, error)
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

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracer = tp.Tracer(instrumentationName) }
}

type service struct {
	repo   Repository
	tokens TokenIssuer
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
}

// NewService creates a user service.
func NewService(repo Repository, tokens TokenIssuer, logger *zap.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, errors.New("user repository is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		repo:   repo,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// observe opens a span for op and returns a finisher that records the
// outcome in the span and the auth counter.
func (s *service) observe(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "user."+op)
	return ctx, func(errp *error) {
		result := "success"
		if err := *errp; err != nil {
			kind := apperr.KindOf(err)
			result = kind.String()
			if kind == apperr.KindInternal {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.SetAttributes(attribute.String("auth.result", result))
		AuthAttemptsTotal.WithLabelValues(op, result).Inc()
		span.End()
	}
}

func (s *service) FindByEmail(ctx context.Context, email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("find user by email", err)
	}
	return u, nil
}

func (s *service) FindByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, apperr.Unauthorized("missing user")
	}
	u, err := s.repo.FindUserByID(ctx, id)
	if errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("find user by id", err)
	}
	return u, nil
}

func (s *service) Create(ctx context.Context, email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindUserByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("user already exists")
	} else if !errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, apperr.Internal("find user by email", err)
	}

	u := &User{
		ID:        s.newID(),
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	// A concurrent registration can pass the lookup above; the store's unique
	// key settles it.
	err = s.repo.CreateUser(ctx, u)
	if errors.Is(err, apperr.ErrDuplicate) {
		return nil, apperr.Conflict("user already exists")
	}
	if err != nil {
		return nil, apperr.Internal("create user", err)
	}

	s.logger.Info("user registered", zap.String("user.id", u.ID))
	return u, nil
}

func (s *service) Login(ctx context.Context, email string) (_ *Session, err error) {
	ctx, done := s.observe(ctx, "login")
	defer done(&err)

	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) Register(ctx context.Context, email string) (_ *Session, err error) {
	ctx, done := s.observe(ctx, "register")
	defer done(&err)

	u, err := s.Create(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) Profile(ctx context.Context, userID string) (_ *User, err error) {
	ctx, done := s.observe(ctx, "profile")
	defer done(&err)

	return s.FindByID(ctx, userID)
}

func (s *service) RefreshToken(ctx context.Context, userID string) (_ *Session, err error) {
	ctx, done := s.observe(ctx, "refresh")
	defer done(&err)

	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) issue(u *User) (*Session, error) {
	tok, exp, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	TokensIssuedTotal.Inc()
	return &Session{User: u, Token: tok, ExpiresAt: exp}, nil
}
