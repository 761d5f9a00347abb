// Package store provides profile storage backends for the FuelQ Pro console.
//
// This file implements the Firestore-backed store, the remote document
// store used by hosted deployments. Users live in the "users" collection
// keyed by their channel address, with interactions in a per-user
// subcollection. Timestamps are server-assigned via the Firestore sentinel.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/gricce/fuelqpro-console/internal/models"
)

const (
	usersCollection        = "users"
	interactionsCollection = "interactions"
)

// FirestoreStore persists conversation state in Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore store. A project ID is required;
// the credentials file is optional and falls back to application default
// credentials (the hosted environment injects them).
func NewFirestoreStore(ctx context.Context, opts ...Option) (*FirestoreStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewFirestoreStore invoked", "projectID", cfg.ProjectID, "credentials_set", cfg.CredentialsFile != "")

	if cfg.ProjectID == "" {
		slog.Error("FirestoreStore project ID not set")
		return nil, fmt.Errorf("firestore project ID not set")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		slog.Error("Failed to initialize Firebase app", "error", err)
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		slog.Error("Failed to create Firestore client", "error", err)
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	slog.Info("FirestoreStore initialized", "projectID", cfg.ProjectID)
	return &FirestoreStore{client: client}, nil
}

// GetUser retrieves a user's document; (nil, nil) when the user is unknown.
func (s *FirestoreStore) GetUser(ctx context.Context, userID string) (*models.UserState, error) {
	snap, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, nil
	}
	if err != nil {
		slog.Error("FirestoreStore.GetUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return decodeUserSnapshot(snap, userID), nil
}

// decodeUserSnapshot decodes a user document, coercing a malformed document
// to safe defaults field by field instead of propagating the shape error.
func decodeUserSnapshot(snap *firestore.DocumentSnapshot, userID string) *models.UserState {
	var state models.UserState
	if err := snap.DataTo(&state); err == nil {
		state.UserID = userID
		if state.Profile == nil {
			state.Profile = map[string]string{}
		}
		return &state
	}

	slog.Warn("FirestoreStore: malformed user document, coercing to defaults", "userID", userID)
	raw := snap.Data()
	state = models.UserState{UserID: userID, Profile: map[string]string{}}
	if v, ok := raw["step"].(int64); ok {
		state.Step = int(v)
	}
	if v, ok := raw["asking_pdf"].(bool); ok {
		state.AwaitingPDF = v
	}
	if v, ok := raw["profile"].(map[string]interface{}); ok {
		for k, val := range v {
			if s, ok := val.(string); ok {
				state.Profile[k] = s
			}
		}
	}
	if v, ok := raw["created_at"].(time.Time); ok {
		state.CreatedAt = v
	}
	if v, ok := raw["last_interaction"].(time.Time); ok {
		state.LastInteraction = v
	}
	if v, ok := raw["reset_at"].(time.Time); ok {
		state.ResetAt = &v
	}
	return &state
}

// SaveUser merges the patch into the user document. last_interaction is
// stamped on every write, created_at only when the document is new.
func (s *FirestoreStore) SaveUser(ctx context.Context, userID string, patch models.UserPatch) error {
	ref := s.client.Collection(usersCollection).Doc(userID)

	data := map[string]interface{}{
		"last_interaction": firestore.ServerTimestamp,
	}
	if patch.Step != nil {
		data["step"] = *patch.Step
	}
	if patch.Profile != nil {
		data["profile"] = patch.Profile
	}
	if patch.AwaitingPDF != nil {
		data["asking_pdf"] = *patch.AwaitingPDF
	}
	if patch.MarkReset {
		data["reset_at"] = firestore.ServerTimestamp
	}

	snap, err := ref.Get(ctx)
	if err != nil && (snap == nil || snap.Exists()) {
		slog.Error("FirestoreStore.SaveUser read failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to read user %s: %w", userID, err)
	}
	if snap == nil || !snap.Exists() {
		data["created_at"] = firestore.ServerTimestamp
		data["whatsapp_id"] = userID
	}

	if _, err := ref.Set(ctx, data, firestore.MergeAll); err != nil {
		slog.Error("FirestoreStore.SaveUser write failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save user %s: %w", userID, err)
	}
	return nil
}

// AppendDocument appends a plan record to the user's pdf_plans list.
// Firestore rejects server-timestamp sentinels inside array elements, so
// the record carries a client-assigned created_at; the read-modify-write is
// safe under the engine's per-user serialization.
func (s *FirestoreStore) AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error {
	ref := s.client.Collection(usersCollection).Doc(userID)

	snap, err := ref.Get(ctx)
	if err != nil && (snap == nil || snap.Exists()) {
		slog.Error("FirestoreStore.AppendDocument read failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to read user %s: %w", userID, err)
	}

	var docs []models.PlanDocument
	if snap != nil && snap.Exists() {
		docs = decodeUserSnapshot(snap, userID).Documents
	}
	docs = append(docs, doc)

	if _, err := ref.Set(ctx, map[string]interface{}{"pdf_plans": docs}, firestore.MergeAll); err != nil {
		slog.Error("FirestoreStore.AppendDocument write failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to append document for %s: %w", userID, err)
	}
	return nil
}

// LogInteraction writes one entry to the user's interactions subcollection.
func (s *FirestoreStore) LogInteraction(ctx context.Context, entry models.Interaction) error {
	ref := s.client.Collection(usersCollection).Doc(entry.UserID).Collection(interactionsCollection).NewDoc()
	_, err := ref.Set(ctx, map[string]interface{}{
		"message_type": entry.Direction,
		"message":      entry.Message,
		"response":     entry.Response,
		"timestamp":    firestore.ServerTimestamp,
	})
	if err != nil {
		slog.Error("FirestoreStore.LogInteraction failed", "error", err, "userID", entry.UserID)
		return fmt.Errorf("failed to log interaction for %s: %w", entry.UserID, err)
	}
	return nil
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
