package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans one users row into a UserState.
func scanUser(row rowScanner) (*models.UserState, error) {
	var (
		state       models.UserState
		profileJSON string
		docsJSON    string
		resetAt     sql.NullTime
	)
	err := row.Scan(
		&state.UserID, &state.Step, &profileJSON, &state.AwaitingPDF,
		&state.CreatedAt, &state.LastInteraction, &resetAt, &docsJSON,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(profileJSON), &state.Profile); err != nil {
		// A malformed profile blob degrades to an empty profile rather than
		// breaking the conversation.
		state.Profile = map[string]string{}
	}
	if err := json.Unmarshal([]byte(docsJSON), &state.Documents); err != nil {
		state.Documents = nil
	}
	if resetAt.Valid {
		state.ResetAt = &resetAt.Time
	}
	return &state, nil
}

// encodeUser marshals the JSON columns of a UserState for an upsert.
func encodeUser(state *models.UserState) (profileJSON, docsJSON string, resetAt interface{}, err error) {
	profile := state.Profile
	if profile == nil {
		profile = map[string]string{}
	}
	pb, err := json.Marshal(profile)
	if err != nil {
		return "", "", nil, fmt.Errorf("marshal profile: %w", err)
	}
	docs := state.Documents
	if docs == nil {
		docs = []models.PlanDocument{}
	}
	db, err := json.Marshal(docs)
	if err != nil {
		return "", "", nil, fmt.Errorf("marshal documents: %w", err)
	}
	var reset interface{}
	if state.ResetAt != nil {
		reset = *state.ResetAt
	}
	return string(pb), string(db), reset, nil
}

// mergeForSave loads the current row (if any), applies the patch, and
// returns the merged state ready for an upsert. Shared by the SQL backends;
// read-modify-write is safe because the engine serializes per user.
func mergeForSave(row rowScanner, userID string, patch models.UserPatch, now time.Time) (*models.UserState, error) {
	state, err := scanUser(row)
	if err == sql.ErrNoRows {
		state = &models.UserState{UserID: userID, Profile: map[string]string{}}
	} else if err != nil {
		return nil, err
	}
	patch.Apply(state, now)
	return state, nil
}
