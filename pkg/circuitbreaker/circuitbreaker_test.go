package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	s := DefaultSettings("remote")
	s.ConsecutiveFailures = 2
	s.Timeout = time.Hour
	cb := New[int](s, nil)
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	calls := 0
	_, err := cb.Execute(func() (int, error) {
		calls++
		return 1, nil
	})
	assert.True(t, IsOpen(err))
	assert.Equal(t, 0, calls)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestBreaker_ZeroThresholdNeverTrips(t *testing.T) {
	s := DefaultSettings("remote")
	s.ConsecutiveFailures = 0
	cb := New[int](s, nil)

	for i := 0; i < 20; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, errors.New("boom") })
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(gobreaker.ErrOpenState))
	assert.True(t, IsOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsOpen(errors.New("other")))
	assert.False(t, IsOpen(nil))
}
