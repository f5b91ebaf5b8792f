package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetReserveAtomic(t *testing.T) {
	t.Parallel()

	b := NewBudget(1000)

	require.NoError(t, b.Reserve("a", 600))
	assert.InDelta(t, 600.0, b.Used(), 1e-9)

	err := b.Reserve("b", 500)
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.InDelta(t, 600.0, b.Used(), 1e-9, "failed reservation changes nothing")

	require.NoError(t, b.Reserve("b", 400))
	assert.InDelta(t, 0.0, b.Available(), 1e-9)
}

func TestBudgetCommitAndRelease(t *testing.T) {
	t.Parallel()

	b := NewBudget(1000)
	require.NoError(t, b.Reserve("a", 600))

	// Partial fill converts part of the reservation into committed risk.
	b.Commit("a", "XYZ", 250)
	assert.InDelta(t, 600.0, b.Used(), 1e-9, "commit shifts risk, it does not add")

	// Terminal state releases only what is still reserved.
	released := b.Release("a")
	assert.InDelta(t, 350.0, released, 1e-9)
	assert.InDelta(t, 250.0, b.Used(), 1e-9)

	// Closing the position frees the committed part.
	b.Free("XYZ", 250)
	assert.InDelta(t, 0.0, b.Used(), 1e-9)
}

func TestBudgetCommitCappedAtReservation(t *testing.T) {
	t.Parallel()

	b := NewBudget(1000)
	require.NoError(t, b.Reserve("a", 300))

	b.Commit("a", "XYZ", 500)
	assert.InDelta(t, 300.0, b.Used(), 1e-9)
	assert.InDelta(t, 0.0, b.Release("a"), 1e-9, "reservation fully consumed")
}

func TestBudgetResetSession(t *testing.T) {
	t.Parallel()

	b := NewBudget(1000)
	require.NoError(t, b.Reserve("a", 400))
	b.Commit("a", "XYZ", 400)

	b.ResetSession()
	assert.InDelta(t, 0.0, b.Used(), 1e-9)
	assert.InDelta(t, 1000.0, b.Available(), 1e-9)
}
