// Package store provides profile storage backends for the FuelQ Pro console.
//
// This file implements the Postgres-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/gricce/fuelqpro-console/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversation state in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetUser retrieves a user's state; (nil, nil) when the user is unknown.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*models.UserState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, step, profile, awaiting_pdf, created_at, last_interaction, reset_at, documents
		 FROM users WHERE user_id = $1`, userID)
	state, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return state, nil
}

// SaveUser merges the patch into the stored row and upserts the result.
func (s *PostgresStore) SaveUser(ctx context.Context, userID string, patch models.UserPatch) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, step, profile, awaiting_pdf, created_at, last_interaction, reset_at, documents
		 FROM users WHERE user_id = $1`, userID)
	state, err := mergeForSave(row, userID, patch, time.Now())
	if err != nil {
		slog.Error("PostgresStore.SaveUser read failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to read user %s: %w", userID, err)
	}
	return s.upsertUser(ctx, state)
}

// AppendDocument appends a plan record to the user's document list.
func (s *PostgresStore) AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error {
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

func (s *PostgresStore) upsertUser(ctx context.Context, state *models.UserState) error {
	profileJSON, docsJSON, resetAt, err := encodeUser(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, step, profile, awaiting_pdf, created_at, last_interaction, reset_at, documents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   step = EXCLUDED.step,
		   profile = EXCLUDED.profile,
		   awaiting_pdf = EXCLUDED.awaiting_pdf,
		   last_interaction = EXCLUDED.last_interaction,
		   reset_at = EXCLUDED.reset_at,
		   documents = EXCLUDED.documents`,
		state.UserID, state.Step, profileJSON, state.AwaitingPDF,
		state.CreatedAt, state.LastInteraction, resetAt, docsJSON)
	if err != nil {
		slog.Error("PostgresStore upsert failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to upsert user %s: %w", state.UserID, err)
	}
	return nil
}

// LogInteraction records one inbound/outbound pair.
func (s *PostgresStore) LogInteraction(ctx context.Context, entry models.Interaction) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, direction, message, response, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.Direction, entry.Message, entry.Response, ts)
	if err != nil {
		slog.Error("PostgresStore.LogInteraction failed", "error", err, "userID", entry.UserID)
		return fmt.Errorf("failed to insert interaction for %s: %w", entry.UserID, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
