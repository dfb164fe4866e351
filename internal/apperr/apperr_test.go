package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		name   string
	}{
		{KindValidation, http.StatusBadRequest, "Bad Request"},
		{KindUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{KindNotFound, http.StatusNotFound, "Not Found"},
		{KindConflict, http.StatusConflict, "Conflict"},
		{KindInternal, http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
			assert.Equal(t, tt.name, tt.kind.String())
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Run("classified error", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", NotFound("task not found"))
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.True(t, Is(err, KindNotFound))
		assert.False(t, Is(err, KindConflict))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})
}

func TestInternal_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("list tasks", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error", err.Message)
	assert.Contains(t, err.Error(), "list tasks")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("mongo find: %w", ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NotErrorIs(t, err, ErrDuplicate)
}
