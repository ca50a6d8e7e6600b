package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE_BuildsFromArgs(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := E(Internal, "saving lead", cause)

	var e *Error
	require.True(t, As(err, &e))
	assert.Equal(t, Internal, e.Kind)
	assert.Equal(t, "saving lead", e.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "saving lead: connection reset", err.Error())
}

func TestE_InheritsKindFromWrapped(t *testing.T) {
	inner := NewNotFoundError("lead not found")
	outer := E("assigning lead", inner)

	assert.Equal(t, NotFound, KindOf(outer))
	assert.True(t, IsKind(fmt.Errorf("wrapped: %w", outer), NotFound))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Other, KindOf(stderrors.New("boom")))
	assert.False(t, IsKind(nil, Other))
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{InvalidLeadData, http.StatusBadRequest},
		{InvalidArgument, http.StatusBadRequest},
		{InvalidState, http.StatusBadRequest},
		{CounselorUnavailable, http.StatusConflict},
		{Internal, http.StatusInternalServerError},
		{Other, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewCounselorUnavailableError("at capacity")))
	assert.False(t, Retryable(NewInvalidStateError("not queued")))
}

func TestError_JSON(t *testing.T) {
	err := NewInvalidLeadDataError("email is required").(*Error)
	assert.JSONEq(t, `{"kind":"invalid lead data","message":"email is required"}`, err.JSON())
}
