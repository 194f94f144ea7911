package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(validationError("op", "missing")))
	assert.Equal(t, KindAlreadyExists, KindOf(kindError("op", ErrAlreadyExists)))
	assert.Equal(t, KindInvalidCredentials, KindOf(kindError("op", ErrInvalidCredentials)))
	assert.Equal(t, KindInvalidOrExpiredToken, KindOf(kindError("op", ErrInvalidOrExpiredToken)))
	assert.Equal(t, KindDependencyFailure, KindOf(cause))

	dep := dependencyError("op", cause)
	assert.Equal(t, KindDependencyFailure, KindOf(dep))
	assert.ErrorIs(t, dep, ErrDependencyFailure)
	assert.ErrorIs(t, dep, cause)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(KindValidation))
	assert.Equal(t, http.StatusConflict, StatusFor(KindAlreadyExists))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(KindInvalidCredentials))
	assert.Equal(t, http.StatusBadRequest, StatusFor(KindInvalidOrExpiredToken))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(KindDependencyFailure))
}
