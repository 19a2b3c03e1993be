package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	notFound := NotFound("missing")
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.True(t, stderrors.Is(notFound, ErrNotFound))

	badReq := BadRequest("invalid wallet address")
	assert.Equal(t, http.StatusBadRequest, badReq.Status)
	assert.Equal(t, "invalid wallet address", badReq.Message)
	assert.True(t, stderrors.Is(badReq, ErrInvalidInput))

	conflict := Conflict("exists")
	assert.Equal(t, http.StatusConflict, conflict.Status)
	assert.True(t, stderrors.Is(conflict, ErrAlreadyExists))

	tooMany := TooManyRequests("too many pending requests")
	assert.Equal(t, http.StatusTooManyRequests, tooMany.Status)
	assert.True(t, stderrors.Is(tooMany, ErrTooManyPending))

	internal := InternalError(stderrors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, "internal server error", internal.Message)
	assert.Equal(t, "db down", internal.Error())
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	wrapped := NewAppError(http.StatusBadRequest, "self connect", ErrSelfConnection)
	assert.Equal(t, ErrSelfConnection.Error(), wrapped.Error())
	assert.Equal(t, ErrSelfConnection, wrapped.Unwrap())

	bare := &AppError{Status: http.StatusBadRequest, Message: "no cause"}
	assert.Equal(t, "no cause", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestSentinels_Distinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrInvalidAddress,
		ErrSelfConnection, ErrTooManyPending, ErrUnauthorized,
		ErrDeadlineExpired, ErrNonceUsed, ErrCursorMissing, ErrSubmissionFailed,
	}
	seen := make(map[string]bool, len(sentinels))
	for _, err := range sentinels {
		assert.False(t, seen[err.Error()], err.Error())
		seen[err.Error()] = true
	}
}
