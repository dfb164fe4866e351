package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis keeps JSON documents under "<prefix>:task:<id>" and
// "<prefix>:user:<id>". Each user's task ids live in the set
// "<prefix>:user:<id>:tasks" and emails map to user ids through
// "<prefix>:email:<email>", claimed with SETNX.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis creates a Redis store. The client connects lazily.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "taskd"
	}
	return newRedisWithClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), prefix), nil
}

func newRedisWithClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) taskKey(id string) string      { return r.prefix + ":task:" + id }
func (r *Redis) userKey(id string) string      { return r.prefix + ":user:" + id }
func (r *Redis) userTasksKey(id string) string { return r.prefix + ":user:" + id + ":tasks" }
func (r *Redis) emailKey(email string) string  { return r.prefix + ":email:" + email }

func (r *Redis) ListTasksByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	ids, err := r.rdb.SMembers(ctx, r.userTasksKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}

	out := make([]*task.Task, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.taskKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		var t task.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, &t)
	}
	return out, nil
}

func (r *Redis) GetTask(ctx context.Context, id string) (*task.Task, error) {
	raw, err := r.rdb.Get(ctx, r.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	var t task.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

func (r *Redis) CreateTask(ctx context.Context, t *task.Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.taskKey(t.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("set task: %w", err)
	}
	if !ok {
		return apperr.ErrDuplicate
	}
	if err := r.rdb.SAdd(ctx, r.userTasksKey(t.UserID), t.ID).Err(); err != nil {
		return fmt.Errorf("index task: %w", err)
	}
	return nil
}

// UpdateTask reads, patches and writes the document inside a WATCH so a
// concurrent delete is not resurrected.
func (r *Redis) UpdateTask(ctx context.Context, id string, p task.Patch, updatedAt time.Time) (*task.Task, error) {
	key := r.taskKey(id)
	var updated *task.Task

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperr.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		var t task.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("decode task: %w", err)
		}
		t.Apply(p, updatedAt)

		out, err := json.Marshal(&t)
		if err != nil {
			return fmt.Errorf("encode task: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &t
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("update task: concurrent modification: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Redis) DeleteTask(ctx context.Context, id string) error {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}
	n, err := r.rdb.Del(ctx, r.taskKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return apperr.ErrRecordNotFound
	}
	if err := r.rdb.SRem(ctx, r.userTasksKey(t.UserID), id).Err(); err != nil {
		return fmt.Errorf("unindex task: %w", err)
	}
	return nil
}

func (r *Redis) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	id, err := r.rdb.Get(ctx, r.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email index: %w", err)
	}
	return r.FindUserByID(ctx, id)
}

func (r *Redis) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	raw, err := r.rdb.Get(ctx, r.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u user.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// CreateUser claims the email key first; losing that race is a duplicate.
func (r *Redis) CreateUser(ctx context.Context, u *user.User) error {
	ok, err := r.rdb.SetNX(ctx, r.emailKey(u.Email), u.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim email: %w", err)
	}
	if !ok {
		return apperr.ErrDuplicate
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := r.rdb.Set(ctx, r.userKey(u.ID), raw, 0).Err(); err != nil {
		_ = r.rdb.Del(ctx, r.emailKey(u.Email)).Err()
		return fmt.Errorf("set user: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close(context.Context) error {
	return r.rdb.Close()
}
