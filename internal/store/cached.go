// Package store provides profile storage backends for the FuelQ Pro console.
//
// This file implements the two-tier cached store: an authoritative remote
// backend fronted by a per-process read-through/write-through cache. The
// cache exists so a transiently unavailable backend degrades the bot to
// in-memory state instead of breaking the conversation.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
)

// CachedStore wraps a remote Store with an in-process cache keyed by user
// ID. Cache entries never expire within the process lifetime; staleness is
// accepted because each user's messages are serialized by the engine.
type CachedStore struct {
	remote Store
	mu     sync.RWMutex
	cache  map[string]*models.UserState
	now    func() time.Time
}

// NewCachedStore creates a cache wrapper around the given remote store.
func NewCachedStore(remote Store) *CachedStore {
	return &CachedStore{
		remote: remote,
		cache:  make(map[string]*models.UserState),
		now:    time.Now,
	}
}

// SetClock overrides the wrapper's clock. Test hook.
func (s *CachedStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// GetUser reads through to the remote store. When the remote succeeds the
// cache is refreshed; when it fails the cached copy (if any) is returned so
// the conversation continues from in-memory state. A user absent from both
// tiers yields (nil, nil).
func (s *CachedStore) GetUser(ctx context.Context, userID string) (*models.UserState, error) {
	state, err := s.remote.GetUser(ctx, userID)
	if err == nil {
		if state != nil {
			s.mu.Lock()
			s.cache[userID] = state.Clone()
			s.mu.Unlock()
		}
		return state, nil
	}

	s.mu.RLock()
	cached := s.cache[userID].Clone()
	s.mu.RUnlock()
	if cached != nil {
		slog.Warn("CachedStore.GetUser: remote unavailable, serving cached state", "userID", userID, "error", err)
		return cached, nil
	}
	slog.Warn("CachedStore.GetUser: remote unavailable, no cached state", "userID", userID, "error", err)
	return nil, err
}

// SaveUser applies the patch to the cache first, then writes through to the
// remote store. The remote error is returned so callers can log it, but the
// cache already holds the merged state and the conversation is unaffected.
func (s *CachedStore) SaveUser(ctx context.Context, userID string, patch models.UserPatch) error {
	s.mu.Lock()
	state, ok := s.cache[userID]
	if !ok {
		state = &models.UserState{UserID: userID, Profile: map[string]string{}}
		s.cache[userID] = state
	}
	patch.Apply(state, s.now())
	s.mu.Unlock()

	if err := s.remote.SaveUser(ctx, userID, patch); err != nil {
		slog.Warn("CachedStore.SaveUser: remote write failed, cache retains state", "userID", userID, "error", err)
		return err
	}
	return nil
}

// AppendDocument appends to the cached document list and writes through.
func (s *CachedStore) AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error {
	s.mu.Lock()
	if state, ok := s.cache[userID]; ok {
		state.Documents = append(state.Documents, doc)
	}
	s.mu.Unlock()

	if err := s.remote.AppendDocument(ctx, userID, doc); err != nil {
		slog.Warn("CachedStore.AppendDocument: remote write failed", "userID", userID, "error", err)
		return err
	}
	return nil
}

// LogInteraction passes through; the cache keeps no interaction history.
func (s *CachedStore) LogInteraction(ctx context.Context, entry models.Interaction) error {
	return s.remote.LogInteraction(ctx, entry)
}

// Close closes the remote store.
func (s *CachedStore) Close() error { return s.remote.Close() }
