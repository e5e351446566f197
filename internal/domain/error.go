package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrJobNotClaimable     = errors.New("job is not in a claimable state")
	ErrNotInDeadLetter     = errors.New("job is not in the dead letter queue")
	ErrJobTerminal         = errors.New("job is in a terminal state")
	ErrQueueEmpty          = errors.New("queue is empty")
	ErrLockNotAcquired     = errors.New("lock not acquired")
	ErrInvalidExecContext  = errors.New("invalid database execution context")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
)
