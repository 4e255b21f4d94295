package rps

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_FiresWithGeneration(t *testing.T) {
	fired := make(chan uint64, 1)
	timer := NewTimer(func(gen uint64) { fired <- gen })

	gen := timer.Arm(10 * time.Millisecond)
	select {
	case got := <-fired:
		assert.Equal(t, gen, got)
		assert.True(t, timer.Current(got))
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimer_RefreshMakesOldGenerationStale(t *testing.T) {
	var calls atomic.Int32
	timer := NewTimer(func(gen uint64) { calls.Add(1) })

	first := timer.Arm(time.Hour)
	second := timer.Refresh(time.Hour)
	assert.NotEqual(t, first, second)
	assert.False(t, timer.Current(first))
	assert.True(t, timer.Current(second))

	timer.Cancel()
	assert.False(t, timer.Current(second))
	assert.Equal(t, time.Duration(0), timer.Remaining())
	assert.Equal(t, int32(0), calls.Load())
}

func TestTimer_RemainingSecondsRoundsUp(t *testing.T) {
	timer := NewTimer(func(uint64) {})
	timer.Arm(1500 * time.Millisecond)
	defer timer.Cancel()

	assert.Equal(t, 2, timer.RemainingSeconds())
	require.LessOrEqual(t, timer.Remaining(), 1500*time.Millisecond)
}

func TestTimer_CancelStopsCallback(t *testing.T) {
	var calls atomic.Int32
	timer := NewTimer(func(uint64) { calls.Add(1) })
	timer.Arm(20 * time.Millisecond)
	timer.Cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
