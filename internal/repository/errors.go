package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by repositories so services can report the
// specific violated precondition instead of a generic failure.
var (
	ErrMeshCompleted     = errors.New("mesh is no longer accepting contributions")
	ErrContributorBanned = errors.New("contributor is banned")
	ErrVerboseIDTaken    = errors.New("verbose id already in use")
	ErrEmailTaken        = errors.New("email already registered")
	ErrArkTaken          = errors.New("ark identifier already assigned")
	ErrArkAlreadyBound   = errors.New("run already has a bound ark")
	ErrArkNotBound       = errors.New("run has no bound ark")
	ErrTerminalState     = errors.New("run is in a terminal state")
	ErrAlreadyProcessed  = errors.New("contribution already processed")
	ErrDirectoryAssigned = errors.New("run directory already assigned")
	ErrActiveRunExists   = errors.New("mesh already has a run in flight")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode
}

func constraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
