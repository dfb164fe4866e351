package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/pkg/auth"
	v1 "github.com/fyrsmithlabs/taskd/pkg/api/v1"
)

// bind decodes the request body. Decode failures are client errors.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid request body", Err: err}
	}
	return nil
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, v1.HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req v1.EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := s.services.Users().Login(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAPISession(sess))
}

func (s *Server) handleRegister(c echo.Context) error {
	var req v1.EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := s.services.Users().Register(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAPISession(sess))
}

func (s *Server) handleProfile(c echo.Context) error {
	u, err := s.services.Users().Profile(c.Request().Context(), auth.UserIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAPIUser(u))
}

func (s *Server) handleRefreshToken(c echo.Context) error {
	sess, err := s.services.Users().RefreshToken(c.Request().Context(), auth.UserIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v1.TokenResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// handleSession reports the caller's token state without rejecting.
func (s *Server) handleSession(c echo.Context) error {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, v1.SessionResponse{Authenticated: false})
	}
	return c.JSON(http.StatusOK, v1.SessionResponse{
		Authenticated: true,
		UserID:        claims.UserID(),
		Email:         claims.Email,
	})
}

func (s *Server) handleListTasks(c echo.Context) error {
	opts := task.ParseListOptions(c.QueryParams())
	page, err := s.services.Tasks().List(c.Request().Context(), auth.UserIDFrom(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAPIPage(page))
}

func (s *Server) handleGetTask(c echo.Context) error {
	t, err := s.services.Tasks().Get(c.Request().Context(), c.Param("id"), auth.UserIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAPITask(t))
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req v1.CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := s.services.Tasks().Create(c.Request().Context(), auth.UserIDFrom(c), fromCreateRequest(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAPITask(t))
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	var req v1.UpdateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := s.services.Tasks().Update(c.Request().Context(), c.Param("id"), auth.UserIDFrom(c), fromUpdateRequest(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAPITask(t))
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if err := s.services.Tasks().Delete(c.Request().Context(), c.Param("id"), auth.UserIDFrom(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
