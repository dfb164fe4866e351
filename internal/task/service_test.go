package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/telemetry"
)

// fakeRepo is a map-backed Repository with injectable failures.
type fakeRepo struct {
	mu    sync.Mutex
	tasks map[string]*Task
	err   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: make(map[string]*Task)}
}

func (r *fakeRepo) ListTasksByUser(_ context.Context, userID string) ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*Task
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (r *fakeRepo) GetTask(_ context.Context, id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tasks[id]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	return t.Clone(), nil
}

func (r *fakeRepo) CreateTask(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks[t.ID] = t.Clone()
	return nil
}

func (r *fakeRepo) UpdateTask(_ context.Context, id string, p Patch, updatedAt time.Time) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tasks[id]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	t.Apply(p, updatedAt)
	return t.Clone(), nil
}

func (r *fakeRepo) DeleteTask(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.tasks[id]; !ok {
		return apperr.ErrRecordNotFound
	}
	delete(r.tasks, id)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T, repo Repository, opts ...Option) (Service, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	n := 0
	opts = append([]Option{
		WithClock(clk.now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("task-%03d", n) }),
	}, opts...)
	svc, err := NewService(repo, zap.NewNop(), opts...)
	require.NoError(t, err)
	return svc, clk
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestNewService_RequiresRepository(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestService_Create(t *testing.T) {
	svc, clk := newTestService(t, newFakeRepo())
	ctx := context.Background()

	got, err := svc.Create(ctx, "u1", CreateRequest{Title: "  Buy milk  "})
	require.NoError(t, err)

	assert.Equal(t, "task-001", got.ID)
	assert.Equal(t, "Buy milk", got.Title)
	assert.False(t, got.Completed)
	assert.Equal(t, PriorityMedium, got.Priority)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, clk.t, got.CreatedAt)
	assert.Equal(t, clk.t, got.UpdatedAt)
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepo())
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"missing title", CreateRequest{}},
		{"blank title", CreateRequest{Title: "   "}},
		{"title too long", CreateRequest{Title: strings.Repeat("x", MaxTitleLen+1)}},
		{"description too long", CreateRequest{Title: "ok", Description: strings.Repeat("x", MaxDescriptionLen+1)}},
		{"unknown priority", CreateRequest{Title: "ok", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tt.req)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	_, err := svc.Create(ctx, "", CreateRequest{Title: "ok"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestService_Create_MultibyteTitleAtLimit(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepo())
	_, err := svc.Create(context.Background(), "u1", CreateRequest{Title: strings.Repeat("ü", MaxTitleLen)})
	assert.NoError(t, err)
}

func TestService_OwnershipIsNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := newFakeRepo()
	svc, err := NewService(repo, zap.New(core))
	require.NoError(t, err)
	ctx := context.Background()

	owned, err := svc.Create(ctx, "owner", CreateRequest{Title: "private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, owned.ID, "intruder")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Update(ctx, owned.ID, "intruder", Patch{Completed: boolPtr(true)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.Delete(ctx, owned.ID, "intruder")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// Untouched.
	stored, err := svc.Get(ctx, owned.ID, "owner")
	require.NoError(t, err)
	assert.False(t, stored.Completed)
	assert.Equal(t, owned.UpdatedAt, stored.UpdatedAt)

	assert.Equal(t, 3, logs.FilterMessage("task ownership mismatch").Len())
}

func TestService_Update_OnlyProvidedFields(t *testing.T) {
	svc, clk := newTestService(t, newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", CreateRequest{Title: "Buy milk", Description: "2 litres"})
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Minute)
	updated, err := svc.Update(ctx, created.ID, "u1", Patch{Completed: boolPtr(true)})
	require.NoError(t, err)

	want := *created
	want.Completed = true
	want.UpdatedAt = clk.t
	assert.Equal(t, &want, updated)
}

func TestService_Update_Validation(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", CreateRequest{Title: "x"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, "u1", Patch{Title: strPtr("  ")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	bad := Priority("urgent")
	_, err = svc.Update(ctx, created.ID, "u1", Patch{Priority: &bad})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	trimmed, err := svc.Update(ctx, created.ID, "u1", Patch{Title: strPtr("  y  ")})
	require.NoError(t, err)
	assert.Equal(t, "y", trimmed.Title)
}

func TestService_DeleteThenGet(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", CreateRequest{Title: "Buy milk"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, "u1"))

	_, err = svc.Get(ctx, created.ID, "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.Delete(ctx, created.ID, "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_List(t *testing.T) {
	repo := newFakeRepo()
	svc, clk := newTestService(t, repo)
	ctx := context.Background()

	for _, title := range []string{"Buy milk", "Walk dog", "Buy bread"} {
		clk.t = clk.t.Add(time.Minute)
		_, err := svc.Create(ctx, "u1", CreateRequest{Title: title})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "u2", CreateRequest{Title: "Buy shoes"})
	require.NoError(t, err)

	page, err := svc.List(ctx, "u1", ListOptions{Search: "buy"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, []string{"Buy bread", "Buy milk"}, []string{page.Items[0].Title, page.Items[1].Title})

	empty, err := svc.List(ctx, "nobody", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Items)
}

func TestService_StoreFailureIsInternal(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", CreateRequest{Title: "x"})
	require.NoError(t, err)

	repo.err = errors.New("connection refused")

	_, err = svc.List(ctx, "u1", ListOptions{})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorContains(t, err, "connection refused")

	_, err = svc.Get(ctx, created.ID, "u1")
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	_, err = svc.Create(ctx, "u1", CreateRequest{Title: "y"})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestService_Telemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	svc, _ := newTestService(t, newFakeRepo(), WithTelemetry(tel))
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", CreateRequest{Title: "traced"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, "missing", "u1")
	require.Error(t, err)

	tel.AssertSpanExists(t, "task.create")
	tel.AssertSpanAttribute(t, "task.create", "user.id", "u1")
	tel.AssertSpanExists(t, "task.get")

	assert.Equal(t, int64(2), tel.CounterTotal(t, "taskd.task.operations_total"))
}
