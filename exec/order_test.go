package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	t.Parallel()

	now := time.Now()
	o := &Order{ID: "O1", Quantity: 10}

	require.NoError(t, o.transition(StateSubmitted, now))
	require.NoError(t, o.transition(StatePartiallyFilled, now))
	require.NoError(t, o.transition(StateFilled, now))
	assert.True(t, o.State.Terminal())

	// Terminal states accept nothing further.
	err := o.transition(StateCancelled, now)
	require.ErrorIs(t, err, ErrBadTransition)
	assert.Equal(t, StateFilled, o.State)
}

func TestOrderCannotFillBeforeSubmit(t *testing.T) {
	t.Parallel()

	o := &Order{ID: "O1", Quantity: 10}
	err := o.transition(StateFilled, time.Now())
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestOrderSelfTransitionIsNoop(t *testing.T) {
	t.Parallel()

	o := &Order{ID: "O1", Quantity: 10, State: StatePartiallyFilled}
	require.NoError(t, o.transition(StatePartiallyFilled, time.Now()))
	assert.Equal(t, StatePartiallyFilled, o.State)
}

func TestOrderRemaining(t *testing.T) {
	t.Parallel()

	o := &Order{Quantity: -10, FilledQty: -4}
	assert.InDelta(t, 6.0, o.Remaining(), 1e-9)
}
