package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestStaysClosedOnSuccess(t *testing.T) {
	b := New("cam0", Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Execute(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("cam0", Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errBoom }), errBoom)
	}
	assert.Equal(t, StateOpen, b.State())

	// Calls are now shed without running the op.
	ran := false
	err := b.Execute(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, ran)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New("cam0", Config{FailureThreshold: 3, Cooldown: time.Minute})

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	require.NoError(t, b.Execute(func() error { return nil }))
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })

	assert.Equal(t, StateClosed, b.State())
}

func TestProbeAfterCooldown(t *testing.T) {
	b := New("cam0", Config{FailureThreshold: 1, Cooldown: 20 * time.Millisecond})

	b.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	// Successful probe closes the breaker.
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestFailedProbeReopens(t *testing.T) {
	b := New("cam0", Config{FailureThreshold: 1, Cooldown: 20 * time.Millisecond})

	b.Execute(func() error { return errBoom })
	time.Sleep(30 * time.Millisecond)

	assert.ErrorIs(t, b.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, b.State())
}

func TestPanicCountsAsFailure(t *testing.T) {
	b := New("cam0", Config{FailureThreshold: 1, Cooldown: time.Minute})

	assert.Panics(t, func() {
		b.Execute(func() error { panic("kaboom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	b := New("cam0", Config{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	b.Execute(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	assert.Contains(t, transitions, "closed->open")
	assert.Contains(t, transitions, "open->half-open")
}
