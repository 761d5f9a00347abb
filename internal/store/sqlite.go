// Package store provides profile storage backends for the FuelQ Pro console.
//
// This file implements the SQLite-backed store for self-hosted deployments.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/gricce/fuelqpro-console/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversation state in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetUser retrieves a user's state; (nil, nil) when the user is unknown.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.UserState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, step, profile, awaiting_pdf, created_at, last_interaction, reset_at, documents
		 FROM users WHERE user_id = ?`, userID)
	state, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return state, nil
}

// SaveUser merges the patch into the stored row and upserts the result.
func (s *SQLiteStore) SaveUser(ctx context.Context, userID string, patch models.UserPatch) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, step, profile, awaiting_pdf, created_at, last_interaction, reset_at, documents
		 FROM users WHERE user_id = ?`, userID)
	state, err := mergeForSave(row, userID, patch, time.Now())
	if err != nil {
		slog.Error("SQLiteStore.SaveUser read failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to read user %s: %w", userID, err)
	}
	return s.upsertUser(ctx, state)
}

// AppendDocument appends a plan record to the user's document list.
func (s *SQLiteStore) AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error {
	state, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &models.UserState{
			UserID:          userID,
			Profile:         map[string]string{},
			CreatedAt:       time.Now(),
			LastInteraction: time.Now(),
		}
	}
	state.Documents = append(state.Documents, doc)
	return s.upsertUser(ctx, state)
}

func (s *SQLiteStore) upsertUser(ctx context.Context, state *models.UserState) error {
	profileJSON, docsJSON, resetAt, err := encodeUser(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, step, profile, awaiting_pdf, created_at, last_interaction, reset_at, documents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   step = excluded.step,
		   profile = excluded.profile,
		   awaiting_pdf = excluded.awaiting_pdf,
		   last_interaction = excluded.last_interaction,
		   reset_at = excluded.reset_at,
		   documents = excluded.documents`,
		state.UserID, state.Step, profileJSON, state.AwaitingPDF,
		state.CreatedAt, state.LastInteraction, resetAt, docsJSON)
	if err != nil {
		slog.Error("SQLiteStore upsert failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to upsert user %s: %w", state.UserID, err)
	}
	return nil
}

// LogInteraction records one inbound/outbound pair.
func (s *SQLiteStore) LogInteraction(ctx context.Context, entry models.Interaction) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, direction, message, response, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Direction, entry.Message, entry.Response, ts)
	if err != nil {
		slog.Error("SQLiteStore.LogInteraction failed", "error", err, "userID", entry.UserID)
		return fmt.Errorf("failed to insert interaction for %s: %w", entry.UserID, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
