package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "fuelqpro-test.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	state, err := s.GetUser(ctx, "whatsapp:+5511999999999")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected absent user, got %+v", state)
	}

	step := 2
	awaiting := true
	patch := models.UserPatch{
		Step:        &step,
		Profile:     map[string]string{"name": "Carlos", "age": "28"},
		AwaitingPDF: &awaiting,
	}
	if err := s.SaveUser(ctx, "whatsapp:+5511999999999", patch); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	state, err = s.GetUser(ctx, "whatsapp:+5511999999999")
	if err != nil || state == nil {
		t.Fatalf("expected stored user, got state=%v err=%v", state, err)
	}
	if state.Step != 2 || !state.AwaitingPDF {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Profile["name"] != "Carlos" || state.Profile["age"] != "28" {
		t.Errorf("profile not persisted: %v", state.Profile)
	}
	if state.CreatedAt.IsZero() || state.LastInteraction.IsZero() {
		t.Errorf("timestamps not stamped: %+v", state)
	}
	if state.ResetAt != nil {
		t.Errorf("unexpected reset_at: %v", state.ResetAt)
	}

	// Merge: a later patch must not clobber the profile.
	created := state.CreatedAt
	step3 := 3
	if err := s.SaveUser(ctx, "whatsapp:+5511999999999", models.UserPatch{Step: &step3}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	state, _ = s.GetUser(ctx, "whatsapp:+5511999999999")
	if state.Step != 3 || state.Profile["name"] != "Carlos" {
		t.Errorf("merge semantics violated: %+v", state)
	}
	if !state.CreatedAt.Equal(created) {
		t.Errorf("created_at moved on second write: %v != %v", state.CreatedAt, created)
	}
}

func TestSQLiteStoreReset(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	step := 5
	if err := s.SaveUser(ctx, "u1", models.UserPatch{Step: &step, Profile: map[string]string{"name": "Ana"}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	zero := 0
	if err := s.SaveUser(ctx, "u1", models.UserPatch{Step: &zero, Profile: map[string]string{}, MarkReset: true}); err != nil {
		t.Fatalf("reset save failed: %v", err)
	}

	state, _ := s.GetUser(ctx, "u1")
	if state.Step != 0 || len(state.Profile) != 0 {
		t.Errorf("reset did not clear state: %+v", state)
	}
	if state.ResetAt == nil {
		t.Error("reset_at not stamped")
	}
}

func TestSQLiteStoreDocumentsAndInteractions(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	doc := models.PlanDocument{
		Filename:  "plans/plan_ana_1234_abcd.pdf",
		URL:       "https://storage.example.com/signed",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.AppendDocument(ctx, "u1", doc); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.AppendDocument(ctx, "u1", doc); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	state, _ := s.GetUser(ctx, "u1")
	if len(state.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(state.Documents))
	}
	if state.Documents[0].URL != doc.URL {
		t.Errorf("document round trip lost URL: %+v", state.Documents[0])
	}

	entry := models.Interaction{
		UserID:    "u1",
		Direction: models.DirectionOutgoing,
		Message:   "visualizar",
		Response:  "plano...",
		Timestamp: time.Now(),
	}
	if err := s.LogInteraction(ctx, entry); err != nil {
		t.Errorf("log interaction failed: %v", err)
	}
}
