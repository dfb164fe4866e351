package store

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

// Memory is an in-process store. Records are copied on the way in and out,
// so callers never share memory with the store.
type Memory struct {
	mu      sync.RWMutex
	tasks   map[string]*task.Task
	users   map[string]*user.User
	byEmail map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:   make(map[string]*task.Task),
		users:   make(map[string]*user.User),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) ListTasksByUser(_ context.Context, userID string) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*task.Task, 0)
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	return t.Clone(), nil
}

func (m *Memory) CreateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; ok {
		return apperr.ErrDuplicate
	}
	m.tasks[t.ID] = t.Clone()
	return nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, p task.Patch, updatedAt time.Time) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	t.Apply(p, updatedAt)
	return t.Clone(), nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return apperr.ErrRecordNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	return m.users[id].Clone(), nil
}

func (m *Memory) FindUserByID(_ context.Context, id string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrRecordNotFound
	}
	return u.Clone(), nil
}

func (m *Memory) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[u.Email]; ok {
		return apperr.ErrDuplicate
	}
	if _, ok := m.users[u.ID]; ok {
		return apperr.ErrDuplicate
	}
	m.users[u.ID] = u.Clone()
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close(context.Context) error { return nil }
