// Package sqlite persists trivia games and scores in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/kenny/internal/storage"
	"github.com/lox/kenny/internal/storage/sqlite/migrations"
)

// Store is a SQLite-backed game store. Concurrent calls are serialised by
// SQLite; each call is committed before it returns.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies
// migrations. The special path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn = "file:" + filepath.Clean(path) +
			"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps in-memory databases alive and makes the
	// read-modify-write statements below trivially serial.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) stamp() int64 {
	return s.now().UTC().UnixMilli()
}

// CreateGame inserts a new in-progress game and returns its id.
func (s *Store) CreateGame(ctx context.Context, channel string, totalRounds int) (int64, error) {
	if strings.TrimSpace(channel) == "" {
		return 0, fmt.Errorf("channel is required")
	}
	if totalRounds <= 0 {
		return 0, fmt.Errorf("total rounds must be positive, got %d", totalRounds)
	}

	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO games (channel, total_rounds, current_round, state, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)`,
		channel, totalRounds, string(storage.GameInProgress), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("game id: %w", err)
	}
	return id, nil
}

// IncrementRound advances the game's current round, capped at its total.
func (s *Store) IncrementRound(ctx context.Context, gameID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games
		    SET current_round = MIN(current_round + 1, total_rounds), updated_at = ?
		  WHERE id = ?`,
		s.stamp(), gameID,
	)
	if err != nil {
		return fmt.Errorf("increment round: %w", err)
	}
	return requireRow(res, gameID)
}

// RecordScore adds one point for user in the game.
func (s *Store) RecordScore(ctx context.Context, gameID int64, user string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("user is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (game_id, user, score, created_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT (game_id, user) DO UPDATE SET score = score + 1`,
		gameID, user, s.stamp(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			return fmt.Errorf("game %d: %w", gameID, storage.ErrNotFound)
		}
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

// FinalizeGame marks the game finished.
func (s *Store) FinalizeGame(ctx context.Context, gameID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET state = ?, updated_at = ? WHERE id = ?`,
		string(storage.GameFinished), s.stamp(), gameID,
	)
	if err != nil {
		return fmt.Errorf("finalize game: %w", err)
	}
	return requireRow(res, gameID)
}

// Leaderboard returns up to limit scores ordered by score descending. Ties
// keep the order in which users first scored.
func (s *Store) Leaderboard(ctx context.Context, gameID int64, limit int) ([]storage.Score, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user, score FROM scores
		  WHERE game_id = ?
		  ORDER BY score DESC, rowid ASC
		  LIMIT ?`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.Score
	for rows.Next() {
		var sc storage.Score
		if err := rows.Scan(&sc.User, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return out, nil
}

// Game loads a game by id.
func (s *Store) Game(ctx context.Context, gameID int64) (storage.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, total_rounds, current_round, state, created_at, updated_at
		   FROM games WHERE id = ?`,
		gameID,
	)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Game{}, fmt.Errorf("game %d: %w", gameID, storage.ErrNotFound)
	}
	return g, err
}

// ActiveGame returns the most recent in-progress game for channel.
func (s *Store) ActiveGame(ctx context.Context, channel string) (storage.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, total_rounds, current_round, state, created_at, updated_at
		   FROM games
		  WHERE channel = ? AND state = ?
		  ORDER BY id DESC
		  LIMIT 1`,
		channel, string(storage.GameInProgress),
	)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Game{}, fmt.Errorf("active game in %s: %w", channel, storage.ErrNotFound)
	}
	return g, err
}

func scanGame(row *sql.Row) (storage.Game, error) {
	var (
		g                storage.Game
		state            string
		created, updated int64
	)
	if err := row.Scan(&g.ID, &g.Channel, &g.TotalRounds, &g.CurrentRound, &state, &created, &updated); err != nil {
		return storage.Game{}, err
	}
	g.State = storage.GameState(state)
	g.CreatedAt = time.UnixMilli(created).UTC()
	g.UpdatedAt = time.UnixMilli(updated).UTC()
	return g, nil
}

func requireRow(res sql.Result, gameID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("game %d: %w", gameID, storage.ErrNotFound)
	}
	return nil
}
