package trivia

import "errors"

var (
	// ErrGameInProgress is returned when a channel already has a running game.
	ErrGameInProgress = errors.New("a trivia game is already in progress in this channel")
	// ErrInvalidRounds is returned for a non-positive round count.
	ErrInvalidRounds = errors.New("number of rounds must be positive")
	// ErrShuttingDown is returned once Shutdown has been called.
	ErrShuttingDown = errors.New("trivia manager is shutting down")
	// ErrGeneratorTimeout is the cancellation cause of a generator call that
	// ran past its timeout.
	ErrGeneratorTimeout = errors.New("generator call timed out")
)
