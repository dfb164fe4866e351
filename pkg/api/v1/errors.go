package v1

import "fmt"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Status is filled in by the client from the HTTP status line; the
	// server never sends it.
	Status int `json:"-"`

	Kind    string `json:"error"` // status text, e.g. "Not Found"
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	// Detail carries the underlying cause outside production.
	Detail string `json:"detail,omitempty"`
}

// Error implements error so clients can return the decoded body directly.
func (e *ErrorResponse) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Kind)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}
