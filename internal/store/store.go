// Package store provides profile storage backends for the FuelQ Pro console.
//
// It defines the Store contract the conversation engine persists through,
// with an in-memory store for tests and degraded operation, SQLite and
// Postgres backends for self-hosted deployments, and a Firestore backend
// matching the hosted document store. All backends share tri-state read
// semantics: (state, nil) when found, (nil, nil) when the user is absent,
// and (nil, err) when the backend is unavailable.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
)

// Store is the persistence contract for per-user conversation state.
type Store interface {
	// GetUser returns the stored state, (nil, nil) if the user was never
	// seen, or an error if the backend cannot be reached.
	GetUser(ctx context.Context, userID string) (*models.UserState, error)

	// SaveUser merges the patch into the stored state. The store stamps
	// last_interaction on every write and created_at on the first write
	// for a user.
	SaveUser(ctx context.Context, userID string, patch models.UserPatch) error

	// AppendDocument appends a generated-plan record to the user's
	// append-only document list.
	AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error

	// LogInteraction records one inbound/outbound pair. Best-effort;
	// callers swallow the returned error after logging it.
	LogInteraction(ctx context.Context, entry models.Interaction) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN             string
	ProjectID       string
	CredentialsFile string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, connection URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithProjectID sets the GCP project for the Firestore backend.
func WithProjectID(id string) Option {
	return func(o *Opts) { o.ProjectID = id }
}

// WithCredentialsFile sets the service account key file for the Firestore backend.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// InMemoryStore is a map-backed Store used in tests and as the in-process tier.
type InMemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*models.UserState
	interactions []models.Interaction
	now          func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]*models.UserState),
		now:   time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// GetUser returns a deep copy so callers cannot mutate stored state in place.
func (s *InMemoryStore) GetUser(ctx context.Context, userID string) (*models.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// SaveUser merges the patch into the stored state, creating it if needed.
func (s *InMemoryStore) SaveUser(ctx context.Context, userID string, patch models.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		state = &models.UserState{UserID: userID, Profile: map[string]string{}}
		s.users[userID] = state
	}
	patch.Apply(state, s.now())
	return nil
}

// AppendDocument appends a plan record to the user's document list.
func (s *InMemoryStore) AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		state = &models.UserState{UserID: userID, Profile: map[string]string{}, CreatedAt: s.now()}
		s.users[userID] = state
	}
	state.Documents = append(state.Documents, doc)
	return nil
}

// LogInteraction records the interaction in memory.
func (s *InMemoryStore) LogInteraction(ctx context.Context, entry models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, entry)
	return nil
}

// Interactions returns the logged interactions for a user, newest first.
func (s *InMemoryStore) Interactions(userID string) []models.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Interaction
	for _, e := range s.interactions {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
