package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

// Collection names shared by the document drivers.
const (
	usersCollection = "users"
	tasksCollection = "tasks"
)

type mongoTask struct {
	ID          string     `bson:"_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Completed   bool       `bson:"completed"`
	Priority    string     `bson:"priority,omitempty"`
	DueDate     *time.Time `bson:"dueDate,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	UserID      string     `bson:"userId"`
}

func (d *mongoTask) task() *task.Task {
	t := &task.Task{
		ID:          d.ID,
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
	return t
}

func fromTask(t *task.Task) *mongoTask {
	return &mongoTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		UserID:      t.UserID,
	}
}

type mongoUser struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Mongo stores users and tasks in two MongoDB collections. users.email
// carries a unique index.
type Mongo struct {
	client *mongo.Client
	users  *mongo.Collection
	tasks  *mongo.Collection
}

// NewMongo connects to uri and ensures the indexes exist.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client: client,
		users:  db.Collection(usersCollection),
		tasks:  db.Collection(tasksCollection),
	}

	if _, err := m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create users.email index: %w", err)
	}
	if _, err := m.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create tasks.userId index: %w", err)
	}
	return m, nil
}

func (m *Mongo) ListTasksByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	cursor, err := m.tasks.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]*task.Task, 0)
	for cursor.Next(ctx) {
		var d mongoTask
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, d.task())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (m *Mongo) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var d mongoTask
	err := m.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return d.task(), nil
}

func (m *Mongo) CreateTask(ctx context.Context, t *task.Task) error {
	_, err := m.tasks.InsertOne(ctx, fromTask(t))
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (m *Mongo) UpdateTask(ctx context.Context, id string, p task.Patch, updatedAt time.Time) (*task.Task, error) {
	set := bson.M{"updatedAt": updatedAt}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Completed != nil {
		set["completed"] = *p.Completed
	}
	if p.Priority != nil {
		set["priority"] = string(*p.Priority)
	}
	if p.DueDate != nil {
		set["dueDate"] = *p.DueDate
	}

	var d mongoTask
	err := m.tasks.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return d.task(), nil
}

func (m *Mongo) DeleteTask(ctx context.Context, id string) error {
	res, err := m.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *Mongo) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *Mongo) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var d mongoUser
	err := m.users.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user.User{ID: d.ID, Email: d.Email, CreatedAt: d.CreatedAt.UTC()}, nil
}

func (m *Mongo) CreateUser(ctx context.Context, u *user.User) error {
	_, err := m.users.InsertOne(ctx, mongoUser{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt})
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
