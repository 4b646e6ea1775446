package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSagaHappyPath(t *testing.T) {
	s := NewSaga("o1", "2025-03-14", "13:15")
	for _, st := range []SagaState{StateReserving, StateReserved, StatePersisting, StateDone} {
		require.NoError(t, s.Advance(st))
	}
	assert.True(t, s.Terminal())
	assert.True(t, s.Reserved())
	assert.Equal(t, []SagaState{StateStarted, StateReserving, StateReserved, StatePersisting, StateDone}, s.History)
}

func TestSagaCompensation(t *testing.T) {
	s := NewSaga("o1", "2025-03-14", "13:15")
	for _, st := range []SagaState{StateReserving, StateReserved, StatePersisting, StateCompensating, StateReleased} {
		require.NoError(t, s.Advance(st))
	}
	assert.True(t, s.Terminal())
	assert.False(t, s.Reserved())

	f := NewSaga("o2", "2025-03-14", "13:15")
	for _, st := range []SagaState{StateReserving, StateReserved, StateCompensating, StateCompensationFailed} {
		require.NoError(t, f.Advance(st))
	}
	assert.True(t, f.Terminal())
	assert.True(t, f.Reserved())
}

func TestSagaRejectsSkippedSteps(t *testing.T) {
	cases := [][2]SagaState{
		{StateStarted, StatePersisting},
		{StateReserving, StateDone},
		{StateReservationFailed, StateCompensating},
		{StateDone, StateCompensating},
		{StateReleased, StateReserving},
		{StateCompensationFailed, StateReleased},
		{StatePersisting, StateReleased},
	}
	for _, c := range cases {
		s := &Saga{State: c[0]}
		err := s.Advance(c[1])
		assert.ErrorIs(t, err, ErrInvalidSagaTransition, "%s -> %s", c[0], c[1])
		assert.Equal(t, c[0], s.State)
	}
}

func TestSagaReservationFailedIsTerminal(t *testing.T) {
	s := NewSaga("o1", "2025-03-14", "13:15")
	require.NoError(t, s.Advance(StateReserving))
	require.NoError(t, s.Advance(StateReservationFailed))
	assert.True(t, s.Terminal())
	assert.False(t, s.Reserved())
}
