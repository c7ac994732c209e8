package env

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_RunsCommandsInOrder(t *testing.T) {
	h := newHandle(0, &stubWorker{}, debugLog)
	defer h.stop()

	var order []int
	for i := 0; i < 3; i++ {
		require.NoError(t, h.call("record", func(Worker) error {
			order = append(order, i)
			return nil
		}))
		h.wait()
	}
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.False(t, h.hasDied())
}

func TestHandle_RejectsSecondInFlightCommand(t *testing.T) {
	h := newHandle(0, &stubWorker{}, debugLog)
	defer h.stop()

	release := make(chan struct{})
	require.NoError(t, h.call("block", func(Worker) error {
		<-release
		return nil
	}))

	err := h.call("second", func(Worker) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	h.wait()
	assert.NoError(t, h.call("third", func(Worker) error { return nil }))
	h.wait()
}

func TestHandle_FailureMarksDied(t *testing.T) {
	tests := []struct {
		name string
		fn   func(Worker) error
	}{
		{"error", func(Worker) error { return errors.New("boom") }},
		{"panic", func(Worker) error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandle(3, &stubWorker{}, debugLog)
			defer h.stop()

			require.NoError(t, h.call(tt.name, tt.fn))
			h.wait()
			assert.True(t, h.hasDied())

			// The goroutine survives and keeps serving commands.
			ran := false
			require.NoError(t, h.call("after", func(Worker) error {
				ran = true
				return nil
			}))
			h.wait()
			assert.True(t, ran)
			assert.True(t, h.hasDied(), "died is never cleared")
		})
	}
}

func TestHandle_Stop(t *testing.T) {
	h := newHandle(0, &stubWorker{}, debugLog)
	h.stop()
	h.stop()

	select {
	case <-h.done:
	default:
		t.Fatal("goroutine still running after stop")
	}
	assert.ErrorIs(t, h.call("late", func(Worker) error { return nil }), ErrClosed)
}

func TestPoolState(t *testing.T) {
	assert.True(t, stateUninitialized.needsHardReset())
	assert.True(t, stateCrashed.needsHardReset())
	assert.False(t, stateLive.needsHardReset())
	assert.False(t, stateClosed.needsHardReset())

	assert.Equal(t, stateCrashed, afterBarrier(true))
	assert.Equal(t, stateLive, afterBarrier(false))
	assert.Equal(t, "crashed", stateCrashed.String())
}
