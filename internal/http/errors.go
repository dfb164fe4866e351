package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	v1 "github.com/fyrsmithlabs/taskd/pkg/api/v1"
)

// handleError renders every error returned by handlers and middleware as
// an ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	req := c.Request()
	body := s.errorBody(err, req)
	body.Path = req.URL.Path

	if body.Status >= http.StatusInternalServerError {
		s.logger.Error(req.Context(), "request failed",
			zap.String("path", body.Path),
			zap.Error(err),
		)
	}

	if req.Method == http.MethodHead {
		err = c.NoContent(body.Status)
	} else {
		err = c.JSON(body.Status, body)
	}
	if err != nil {
		s.logger.Warn(req.Context(), "failed to write error response", zap.Error(err))
	}
}

func (s *Server) errorBody(err error, req *http.Request) *v1.ErrorResponse {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body := &v1.ErrorResponse{
			Status:  appErr.Kind.Status(),
			Kind:    appErr.Kind.String(),
			Message: appErr.Message,
		}
		if appErr.Err != nil && !s.config.Production {
			body.Detail = appErr.Err.Error()
		}
		return body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return &v1.ErrorResponse{
				Status:  http.StatusNotFound,
				Kind:    http.StatusText(http.StatusNotFound),
				Message: fmt.Sprintf("Route %s %s not found", req.Method, req.URL.Path),
			}
		}
		body := &v1.ErrorResponse{
			Status:  he.Code,
			Kind:    http.StatusText(he.Code),
			Message: fmt.Sprint(he.Message),
		}
		if he.Code >= http.StatusInternalServerError {
			body.Message = "internal server error"
		}
		if he.Internal != nil && !s.config.Production {
			body.Detail = he.Internal.Error()
		}
		return body
	}

	body := &v1.ErrorResponse{
		Status:  http.StatusInternalServerError,
		Kind:    http.StatusText(http.StatusInternalServerError),
		Message: "internal server error",
	}
	if !s.config.Production {
		body.Detail = err.Error()
	}
	return body
}
