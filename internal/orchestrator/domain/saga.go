package domain

import (
	"errors"
	"fmt"
	"slices"
)

type SagaState string

const (
	StateStarted            SagaState = "STARTED"
	StateReserving          SagaState = "RESERVING"
	StateReserved           SagaState = "RESERVED"
	StateReservationFailed  SagaState = "RESERVATION_FAILED"
	StatePersisting         SagaState = "PERSISTING"
	StateDone               SagaState = "DONE"
	StateCompensating       SagaState = "COMPENSATING"
	StateReleased           SagaState = "RELEASED"
	StateCompensationFailed SagaState = "COMPENSATION_FAILED"
)

var sagaTransitions = map[SagaState][]SagaState{
	StateStarted:      {StateReserving},
	StateReserving:    {StateReserved, StateReservationFailed},
	StateReserved:     {StatePersisting, StateCompensating},
	StatePersisting:   {StateDone, StateCompensating},
	StateCompensating: {StateReleased, StateCompensationFailed},
}

var ErrInvalidSagaTransition = errors.New("invalid saga transition")

// Saga tracks one order creation through reserve, persist and, when
// needed, compensate.
type Saga struct {
	OrderID string
	Date    string
	Slot    string
	State   SagaState
	History []SagaState
}

func NewSaga(orderID, date, slot string) *Saga {
	return &Saga{
		OrderID: orderID,
		Date:    date,
		Slot:    slot,
		State:   StateStarted,
		History: []SagaState{StateStarted},
	}
}

func CanAdvance(from, to SagaState) bool {
	return slices.Contains(sagaTransitions[from], to)
}

func (s *Saga) Advance(to SagaState) error {
	if !CanAdvance(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSagaTransition, s.State, to)
	}
	s.State = to
	s.History = append(s.History, to)
	return nil
}

// Terminal reports whether no further step can run.
func (s *Saga) Terminal() bool {
	return len(sagaTransitions[s.State]) == 0
}

// Reserved reports whether the ledger currently holds stock for this saga.
func (s *Saga) Reserved() bool {
	switch s.State {
	case StateReserved, StatePersisting, StateDone, StateCompensating, StateCompensationFailed:
		return true
	}
	return false
}
