package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

// emailsCollection holds one document per claimed email, keyed by the
// escaped email. Firestore has no unique indexes; creating this document
// inside the user transaction enforces uniqueness.
const emailsCollection = "user_emails"

// FirestoreOptions configures NewFirestore. With neither credential set the
// client uses application default credentials, or the emulator when
// FIRESTORE_EMULATOR_HOST is set.
type FirestoreOptions struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

type firestoreTask struct {
	Title       string     `firestore:"title"`
	Description string     `firestore:"description"`
	Completed   bool       `firestore:"completed"`
	Priority    string     `firestore:"priority,omitempty"`
	DueDate     *time.Time `firestore:"dueDate,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	UserID      string     `firestore:"userId"`
}

type firestoreUser struct {
	Email     string    `firestore:"email"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// Firestore stores users and tasks as documents keyed by their ids.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore client for the project.
func NewFirestore(ctx context.Context, opts FirestoreOptions) (*Firestore, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func docTask(snap *firestore.DocumentSnapshot) (*task.Task, error) {
	var d firestoreTask
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", snap.Ref.ID, err)
	}
	t := &task.Task{
		ID:          snap.Ref.ID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		Priority:    task.Priority(d.Priority),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		UserID:      d.UserID,
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	}
	return t, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (f *Firestore) ListTasksByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	iter := f.client.Collection(tasksCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	out := make([]*task.Task, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query tasks: %w", err)
		}
		t, err := docTask(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *Firestore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	snap, err := f.client.Collection(tasksCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return docTask(snap)
}

func (f *Firestore) CreateTask(ctx context.Context, t *task.Task) error {
	_, err := f.client.Collection(tasksCollection).Doc(t.ID).Create(ctx, firestoreTask{
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		UserID:      t.UserID,
	})
	if status.Code(err) == codes.AlreadyExists {
		return apperr.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTask sets the provided field paths. Update fails with NotFound when
// the document is missing, so a deleted task is never recreated.
func (f *Firestore) UpdateTask(ctx context.Context, id string, p task.Patch, updatedAt time.Time) (*task.Task, error) {
	updates := []firestore.Update{{Path: "updatedAt", Value: updatedAt}}
	if p.Title != nil {
		updates = append(updates, firestore.Update{Path: "title", Value: *p.Title})
	}
	if p.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *p.Description})
	}
	if p.Completed != nil {
		updates = append(updates, firestore.Update{Path: "completed", Value: *p.Completed})
	}
	if p.Priority != nil {
		updates = append(updates, firestore.Update{Path: "priority", Value: string(*p.Priority)})
	}
	if p.DueDate != nil {
		updates = append(updates, firestore.Update{Path: "dueDate", Value: *p.DueDate})
	}

	ref := f.client.Collection(tasksCollection).Doc(id)
	if _, err := ref.Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrRecordNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return f.GetTask(ctx, id)
}

func (f *Firestore) DeleteTask(ctx context.Context, id string) error {
	_, err := f.client.Collection(tasksCollection).Doc(id).Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return apperr.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (f *Firestore) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	iter := f.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return docUser(snap)
}

func (f *Firestore) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	snap, err := f.client.Collection(usersCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return docUser(snap)
}

func docUser(snap *firestore.DocumentSnapshot) (*user.User, error) {
	var d firestoreUser
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	return &user.User{ID: snap.Ref.ID, Email: d.Email, CreatedAt: d.CreatedAt.UTC()}, nil
}

func (f *Firestore) CreateUser(ctx context.Context, u *user.User) error {
	emailRef := f.client.Collection(emailsCollection).Doc(url.PathEscape(u.Email))
	userRef := f.client.Collection(usersCollection).Doc(u.ID)

	err := f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(emailRef, map[string]any{"userId": u.ID}); err != nil {
			return err
		}
		return tx.Create(userRef, firestoreUser{Email: u.Email, CreatedAt: u.CreatedAt})
	}, firestore.MaxAttempts(1))
	if status.Code(err) == codes.AlreadyExists {
		return apperr.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Ping reads at most one user document.
func (f *Firestore) Ping(ctx context.Context) error {
	iter := f.client.Collection(usersCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (f *Firestore) Close(context.Context) error {
	return f.client.Close()
}
