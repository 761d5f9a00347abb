package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
)

// flakyStore wraps an InMemoryStore and fails while down is true.
type flakyStore struct {
	*InMemoryStore
	down bool
}

var errBackendDown = errors.New("backend unavailable")

func (f *flakyStore) GetUser(ctx context.Context, userID string) (*models.UserState, error) {
	if f.down {
		return nil, errBackendDown
	}
	return f.InMemoryStore.GetUser(ctx, userID)
}

func (f *flakyStore) SaveUser(ctx context.Context, userID string, patch models.UserPatch) error {
	if f.down {
		return errBackendDown
	}
	return f.InMemoryStore.SaveUser(ctx, userID, patch)
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	remote := &flakyStore{InMemoryStore: NewInMemoryStore()}
	cached := NewCachedStore(remote)

	step := 3
	if err := remote.SaveUser(ctx, "u1", models.UserPatch{Step: &step, Profile: map[string]string{"name": "Ana"}}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// First read populates the cache from the remote.
	state, err := cached.GetUser(ctx, "u1")
	if err != nil || state == nil || state.Step != 3 {
		t.Fatalf("expected remote state, got state=%v err=%v", state, err)
	}

	// When the remote goes down, the cached copy keeps the conversation alive.
	remote.down = true
	state, err = cached.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("expected degraded read to succeed, got %v", err)
	}
	if state == nil || state.Step != 3 || state.Profile["name"] != "Ana" {
		t.Fatalf("degraded read lost state: %+v", state)
	}
}

func TestCachedStoreUnavailableAndUncached(t *testing.T) {
	ctx := context.Background()
	remote := &flakyStore{InMemoryStore: NewInMemoryStore(), down: true}
	cached := NewCachedStore(remote)

	// No cached copy: the unavailability must stay visible, not masquerade
	// as an absent user.
	state, err := cached.GetUser(ctx, "unknown")
	if state != nil {
		t.Errorf("expected no state, got %+v", state)
	}
	if !errors.Is(err, errBackendDown) {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestCachedStoreWriteThroughWhileDown(t *testing.T) {
	ctx := context.Background()
	remote := &flakyStore{InMemoryStore: NewInMemoryStore(), down: true}
	cached := NewCachedStore(remote)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cached.SetClock(func() time.Time { return now })

	step := 1
	err := cached.SaveUser(ctx, "u1", models.UserPatch{Step: &step, Profile: map[string]string{"name": "Bia"}})
	if !errors.Is(err, errBackendDown) {
		t.Fatalf("expected remote failure to be reported, got %v", err)
	}

	// The cache absorbed the write regardless.
	state, err := cached.GetUser(ctx, "u1")
	if err != nil || state == nil {
		t.Fatalf("expected cached state, got state=%v err=%v", state, err)
	}
	if state.Step != 1 || state.Profile["name"] != "Bia" {
		t.Errorf("cache missed write: %+v", state)
	}
	if state.CreatedAt != now || state.LastInteraction != now {
		t.Errorf("cache timestamps wrong: %+v", state)
	}

	// Once the remote recovers, new writes reach it.
	remote.down = false
	step2 := 2
	if err := cached.SaveUser(ctx, "u1", models.UserPatch{Step: &step2}); err != nil {
		t.Fatalf("save after recovery failed: %v", err)
	}
	remoteState, _ := remote.InMemoryStore.GetUser(ctx, "u1")
	if remoteState == nil || remoteState.Step != 2 {
		t.Errorf("remote did not receive write after recovery: %+v", remoteState)
	}
}
