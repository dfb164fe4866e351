package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/token"
)

type fakeRepo struct {
	mu      sync.Mutex
	byID    map[string]*User
	err     error
	dupOnce bool // CreateUser reports ErrDuplicate once, as a racing insert would
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[string]*User)}
}

func (r *fakeRepo) FindUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, apperr.ErrRecordNotFound
}

func (r *fakeRepo) FindUserByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	return u.Clone(), nil
}

func (r *fakeRepo) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.dupOnce {
		r.dupOnce = false
		return fmt.Errorf("insert: %w", apperr.ErrDuplicate)
	}
	r.byID[u.ID] = u.Clone()
	return nil
}

func newTokens(t *testing.T) *token.Service {
	t.Helper()
	svc, err := token.NewService(token.Config{Secret: "test-secret-value", TTL: time.Hour, Issuer: "taskd"})
	require.NoError(t, err)
	return svc
}

func newTestService(t *testing.T, repo Repository, opts ...Option) Service {
	t.Helper()
	n := 0
	opts = append([]Option{
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.FixedZone("CET", 3600)) }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("user-%d", n) }),
	}, opts...)
	svc, err := NewService(repo, newTokens(t), nil, opts...)
	require.NoError(t, err)
	return svc
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "  Alice@Example.COM ", want: "alice@example.com"},
		{in: "bob@example.com", want: "bob@example.com"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "not-an-email", wantErr: true},
		{in: "Alice <alice@example.com>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewService_Requires(t *testing.T) {
	_, err := NewService(nil, newTokens(t), nil)
	assert.Error(t, err)
	_, err = NewService(newFakeRepo(), nil, nil)
	assert.Error(t, err)
}

func TestService_RegisterThenLogin(t *testing.T) {
	tokens := newTokens(t)
	svc, err := NewService(newFakeRepo(), tokens, nil)
	require.NoError(t, err)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.User.ID)
	assert.Equal(t, time.UTC, reg.User.CreatedAt.Location())

	claims, err := tokens.Verify(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID())
	assert.Equal(t, "new@example.com", claims.Email)

	login, err := svc.Login(ctx, "  new@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, reg.User, login.User)
}

func TestService_Register_Conflict(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "A@example.com")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
}

func TestService_Register_StoreDuplicateIsConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.dupOnce = true
	svc := newTestService(t, repo)

	_, err := svc.Register(context.Background(), "race@example.com")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
}

func TestService_Login_UnknownNeverCreates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	_, err := svc.Login(context.Background(), "ghost@example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, repo.byID)
}

func TestService_Login_Validation(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	_, err := svc.Login(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestService_ProfileAndRefresh(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "p@example.com")
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.User, profile)

	refreshed, err := svc.RefreshToken(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)

	delete(repo.byID, reg.User.ID)

	_, err = svc.Profile(ctx, reg.User.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.RefreshToken(ctx, reg.User.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Profile(ctx, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestService_StoreFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection reset")
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@example.com")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	_, err = svc.Register(ctx, "a@example.com")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestService_Instrumentation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	svc := newTestService(t, newFakeRepo(), WithTracerProvider(tp))
	ctx := context.Background()

	before := testutil.ToFloat64(AuthAttemptsTotal.WithLabelValues("login", apperr.KindNotFound.String()))
	issued := testutil.ToFloat64(TokensIssuedTotal)

	_, _ = svc.Login(ctx, "nobody@example.com")
	_, err := svc.Register(ctx, "somebody@example.com")
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(AuthAttemptsTotal.WithLabelValues("login", apperr.KindNotFound.String())))
	assert.Equal(t, issued+1, testutil.ToFloat64(TokensIssuedTotal))

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"user.login", "user.register"}, names)
}
