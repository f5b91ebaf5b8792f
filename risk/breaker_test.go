package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripIsOneWay(t *testing.T) {
	t.Parallel()

	k := NewBreaker(BreakerConfig{MaxLossPct: 0.05, Window: time.Hour})
	assert.False(t, k.Tripped())

	k.Trip("manual")
	assert.True(t, k.Tripped())

	// Further observations never clear the trip, even profitable ones.
	now := time.Now()
	k.ObservePL(now, 1000, 50000)
	k.ObservePL(now.Add(time.Minute), 2000, 50000)
	assert.True(t, k.Tripped())

	tripped, reason, _ := k.State()
	assert.True(t, tripped)
	assert.Equal(t, "manual", reason)

	// Second trip does not overwrite the first reason.
	k.Trip("later")
	_, reason, _ = k.State()
	assert.Equal(t, "manual", reason)

	k.Reset("operator")
	assert.False(t, k.Tripped())
}

func TestBreakerTripsOnWindowDrawdown(t *testing.T) {
	t.Parallel()

	k := NewBreaker(BreakerConfig{MaxLossPct: 0.05, Window: time.Hour})
	now := time.Now()

	k.ObservePL(now, 0, 50000)
	k.ObservePL(now.Add(time.Minute), -1000, 50000)
	assert.False(t, k.Tripped(), "2%% drawdown stays under the 5%% limit")

	k.ObservePL(now.Add(2*time.Minute), -2500, 50000)
	assert.True(t, k.Tripped(), "5%% drawdown from the window high trips")
}

func TestBreakerDrawdownFromHighWaterMark(t *testing.T) {
	t.Parallel()

	k := NewBreaker(BreakerConfig{MaxLossPct: 0.05, Window: time.Hour})
	now := time.Now()

	// Run up first; the drawdown is measured from the window high, not zero.
	k.ObservePL(now, 2000, 50000)
	k.ObservePL(now.Add(time.Minute), -400, 50000)
	assert.False(t, k.Tripped())

	k.ObservePL(now.Add(2*time.Minute), -500, 50000)
	assert.True(t, k.Tripped(), "2000 down to -500 is a 5%% drawdown")
}

func TestBreakerWindowPrunesOldMarks(t *testing.T) {
	t.Parallel()

	k := NewBreaker(BreakerConfig{MaxLossPct: 0.05, Window: time.Hour})
	now := time.Now()

	k.ObservePL(now, 5000, 50000)
	// Two hours later the old high has aged out of the window.
	k.ObservePL(now.Add(2*time.Hour), 3000, 50000)
	assert.False(t, k.Tripped(), "drawdown against an expired high does not count")
}

func TestBreakerRejectionStreak(t *testing.T) {
	t.Parallel()

	k := NewBreaker(BreakerConfig{RejectionLimit: 3, Window: time.Hour})

	k.NoteRejection()
	k.NoteRejection()
	assert.False(t, k.Tripped())

	// An acceptance resets the streak.
	k.NoteAccepted()
	k.NoteRejection()
	k.NoteRejection()
	assert.False(t, k.Tripped())

	k.NoteRejection()
	require.True(t, k.Tripped())
	_, reason, _ := k.State()
	assert.Equal(t, "venue rejection streak", reason)
}

func TestBreakerRejectionLimitDisabled(t *testing.T) {
	t.Parallel()

	k := NewBreaker(BreakerConfig{Window: time.Hour})
	for i := 0; i < 100; i++ {
		k.NoteRejection()
	}
	assert.False(t, k.Tripped())
}
