package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransientFatal_Classification(t *testing.T) {
	base := errors.New("boom")

	transient := NewTransientError(base)
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))
	assert.ErrorIs(t, transient, base)

	fatal := NewFatalError(base)
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))
	assert.ErrorIs(t, fatal, base)
}

func TestIsTransientFatal_PlainErrorIsNeither(t *testing.T) {
	err := errors.New("plain")
	assert.False(t, IsTransient(err))
	assert.False(t, IsFatal(err))
}

func TestMalformedOutputError_WrapsStageAndCause(t *testing.T) {
	cause := errors.New("no json object found")
	err := NewMalformedOutputError("complete_json", cause)

	assert.Contains(t, err.Error(), "complete_json")
	assert.ErrorIs(t, err, cause)

	var malformed *MalformedOutputError
	assert.True(t, errors.As(err, &malformed))
	assert.Equal(t, "complete_json", malformed.Stage)
}
