package station

import (
	"errors"
	"fmt"

	"github.com/voltq/stationd/core/model"
)

var (
	// ErrWaitingAreaFull is returned by Admit when the waiting area is at
	// capacity. The caller may retry later.
	ErrWaitingAreaFull = errors.New("waiting area is full")
	// ErrPermissionDenied is returned when a user touches a request owned
	// by someone else.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRequestNotFound is returned for unknown request IDs.
	ErrRequestNotFound = errors.New("request not found")
	// ErrPileNotFound is returned for unknown pile IDs.
	ErrPileNotFound = errors.New("pile not found")
	// ErrPileAlreadyFaulty is returned when a fault is reported twice.
	ErrPileAlreadyFaulty = errors.New("pile is already faulty")
	// ErrPileOff is returned when a fault is reported on a powered-off pile.
	ErrPileOff = errors.New("pile is off, cannot report fault")
	// ErrInvalidStrategy is returned for unknown strategy names.
	ErrInvalidStrategy = errors.New("invalid scheduling strategy")
	// ErrPilesBusy is returned when an operation requires idle piles,
	// such as replacing the fleet or powering a pile off.
	ErrPilesBusy = errors.New("piles are in use, cannot reset fleet")
)

// StateError reports an operation attempted on a request that left the state
// the operation requires. The message surfaces the current status.
type StateError struct {
	Op     string
	Status model.RequestStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("request is in status %s and cannot be %s", e.Status, e.Op)
}
