package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

// runConformance exercises the contract every driver must satisfy. Ids and
// emails are random so the suite can run against shared databases.
func runConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	newTask := func(userID, title string) *task.Task {
		return &task.Task{
			ID:        uuid.NewString(),
			Title:     title,
			Priority:  task.PriorityMedium,
			CreatedAt: at,
			UpdatedAt: at,
			UserID:    userID,
		}
	}

	t.Run("task round trip", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		due := at.Add(48 * time.Hour)
		want := newTask(uuid.NewString(), "Buy milk")
		want.Description = "2 litres"
		want.DueDate = &due

		require.NoError(t, st.CreateTask(ctx, want))

		got, err := st.GetTask(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("missing task", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		id := uuid.NewString()

		_, err := st.GetTask(ctx, id)
		assert.True(t, errors.Is(err, apperr.ErrRecordNotFound), "get: %v", err)

		_, err = st.UpdateTask(ctx, id, task.Patch{}, at)
		assert.True(t, errors.Is(err, apperr.ErrRecordNotFound), "update: %v", err)

		err = st.DeleteTask(ctx, id)
		assert.True(t, errors.Is(err, apperr.ErrRecordNotFound), "delete: %v", err)
	})

	t.Run("list is scoped to the user", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		alice, bob := uuid.NewString(), uuid.NewString()

		var wantIDs []string
		for i := 0; i < 3; i++ {
			tk := newTask(alice, fmt.Sprintf("alice %d", i))
			wantIDs = append(wantIDs, tk.ID)
			require.NoError(t, st.CreateTask(ctx, tk))
		}
		require.NoError(t, st.CreateTask(ctx, newTask(bob, "bob")))

		got, err := st.ListTasksByUser(ctx, alice)
		require.NoError(t, err)

		var gotIDs []string
		for _, tk := range got {
			assert.Equal(t, alice, tk.UserID)
			gotIDs = append(gotIDs, tk.ID)
		}
		sort.Strings(wantIDs)
		sort.Strings(gotIDs)
		assert.Equal(t, wantIDs, gotIDs)

		none, err := st.ListTasksByUser(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("update sets only provided fields", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		orig := newTask(uuid.NewString(), "Buy milk")
		orig.Description = "keep me"
		require.NoError(t, st.CreateTask(ctx, orig))

		done := true
		high := task.PriorityHigh
		later := at.Add(time.Hour)
		got, err := st.UpdateTask(ctx, orig.ID, task.Patch{Completed: &done, Priority: &high}, later)
		require.NoError(t, err)

		want := orig.Clone()
		want.Completed = true
		want.Priority = task.PriorityHigh
		want.UpdatedAt = later
		assert.Equal(t, want, got)

		stored, err := st.GetTask(ctx, orig.ID)
		require.NoError(t, err)
		assert.Equal(t, want, stored)
	})

	t.Run("delete removes the task from the user's list", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		owner := uuid.NewString()

		tk := newTask(owner, "gone soon")
		require.NoError(t, st.CreateTask(ctx, tk))
		require.NoError(t, st.DeleteTask(ctx, tk.ID))

		_, err := st.GetTask(ctx, tk.ID)
		assert.True(t, errors.Is(err, apperr.ErrRecordNotFound))

		list, err := st.ListTasksByUser(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("returned tasks are copies", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		tk := newTask(uuid.NewString(), "original")
		require.NoError(t, st.CreateTask(ctx, tk))
		tk.Title = "mutated after create"

		got, err := st.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		got.Title = "mutated after get"

		again, err := st.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, "original", again.Title)
	})

	t.Run("users", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		u := &user.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", CreatedAt: at}
		require.NoError(t, st.CreateUser(ctx, u))

		byID, err := st.FindUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u, byID)

		byEmail, err := st.FindUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u, byEmail)

		dup := &user.User{ID: uuid.NewString(), Email: u.Email, CreatedAt: at}
		err = st.CreateUser(ctx, dup)
		assert.True(t, errors.Is(err, apperr.ErrDuplicate), "duplicate: %v", err)

		_, err = st.FindUserByID(ctx, dup.ID)
		assert.True(t, errors.Is(err, apperr.ErrRecordNotFound))

		_, err = st.FindUserByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com")
		assert.True(t, errors.Is(err, apperr.ErrRecordNotFound))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(context.Background()))
	})
}
