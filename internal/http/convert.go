package http

import (
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
	v1 "github.com/fyrsmithlabs/taskd/pkg/api/v1"
)

func toAPIUser(u *user.User) v1.User {
	return v1.User{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toAPISession(sess *user.Session) v1.AuthResponse {
	return v1.AuthResponse{
		User:      toAPIUser(sess.User),
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	}
}

func toAPITask(t *task.Task) v1.Task {
	return v1.Task{
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

func toAPIPage(p *task.Page) v1.TaskPage {
	items := make([]v1.Task, 0, len(p.Items))
	for _, t := range p.Items {
		items = append(items, toAPITask(t))
	}
	return v1.TaskPage{Items: items, Total: p.Total, Page: p.Page, Limit: p.Limit}
}

func fromCreateRequest(r v1.CreateTaskRequest) task.CreateRequest {
	return task.CreateRequest{
		Title:       r.Title,
		Description: r.Description,
		Priority:    task.Priority(r.Priority),
		DueDate:     r.DueDate,
	}
}

func fromUpdateRequest(r v1.UpdateTaskRequest) task.Patch {
	p := task.Patch{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		DueDate:     r.DueDate,
	}
	if r.Priority != nil {
		prio := task.Priority(*r.Priority)
		p.Priority = &prio
	}
	return p
}
