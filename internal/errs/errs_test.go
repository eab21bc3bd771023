package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(Validation, "lat %f out of range", 123.0)
	assert.Equal(t, Validation, KindOf(err))
	assert.Equal(t, "ValidationError: lat 123.000000 out of range", err.Error())

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(AlreadyBooked, "trip held")
	outer := fmt.Errorf("create booking: %w", inner)
	assert.True(t, Is(outer, AlreadyBooked))
	assert.False(t, Is(outer, NotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(Dependency, cause, "redis unavailable")
	assert.True(t, Is(err, Dependency))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "redis unavailable")
}
