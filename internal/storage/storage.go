// Package storage defines the persisted game records shared by storage
// backends.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a game does not exist.
var ErrNotFound = errors.New("not found")

// GameState is the lifecycle state of a persisted game.
type GameState string

const (
	GameInProgress GameState = "in_progress"
	GameFinished   GameState = "finished"
)

// Game is a persisted trivia game.
type Game struct {
	ID           int64
	Channel      string
	TotalRounds  int
	CurrentRound int
	State        GameState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Score is one user's number of correct answers in a game.
type Score struct {
	User  string
	Score int
}
