package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskdeck/backend/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", domain.ErrTaskForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"user mismatch", domain.ErrUserMismatch, http.StatusForbidden, "FORBIDDEN"},
		{"validation", domain.NewValidationError("title", "title is required"), http.StatusBadRequest, "INVALID"},
		{"not found", domain.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"version conflict", domain.ErrVersionConflict, http.StatusConflict, "CONFLICT"},
		{"rate limited", domain.NewRateLimitError(0), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unavailable", domain.WrapError(domain.ErrCodeUnavailable, "storage down", errors.New("dial tcp")), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
		{"wrapped domain error", domain.WrapError(domain.ErrCodeConflict, "lost the race", errors.New("update matched no row")), http.StatusConflict, "CONFLICT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := mapError(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, code)
		})
	}
}
