// Package models defines the core data structures for the FuelQ Pro console.
//
// It includes the per-user conversation state, the merge patch applied on
// every save, and the records kept for generated plan documents and logged
// interactions. These types are shared across the flow, store, and delivery
// modules.
package models

import "time"

// Phase is the conceptual state of a conversation, derived from the stored
// fields rather than persisted as its own column.
type Phase string

const (
	// PhaseNew means no answers have been recorded yet.
	PhaseNew Phase = "new"
	// PhaseQuestionnaire means the user is partway through the questionnaire.
	PhaseQuestionnaire Phase = "questionnaire"
	// PhaseAwaitingPDF means a plan was just shown and the next message
	// answers the PDF offer.
	PhaseAwaitingPDF Phase = "awaiting_pdf"
	// PhaseComplete means every questionnaire field has been answered.
	PhaseComplete Phase = "complete"
)

// Interaction directions for the per-user interaction log.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// UserState holds one user's conversation state. The zero value is a valid
// fresh state (step 0, no answers).
type UserState struct {
	UserID          string            `json:"user_id" firestore:"whatsapp_id"`
	Step            int               `json:"step" firestore:"step"`
	Profile         map[string]string `json:"profile" firestore:"profile"`
	AwaitingPDF     bool              `json:"awaiting_pdf" firestore:"asking_pdf"`
	CreatedAt       time.Time         `json:"created_at" firestore:"created_at"`
	LastInteraction time.Time         `json:"last_interaction" firestore:"last_interaction"`
	ResetAt         *time.Time        `json:"reset_at,omitempty" firestore:"reset_at"`
	Documents       []PlanDocument    `json:"pdf_plans,omitempty" firestore:"pdf_plans"`
}

// Phase derives the conceptual conversation phase for a questionnaire of
// the given length.
func (s *UserState) Phase(questionnaireLen int) Phase {
	switch {
	case s.AwaitingPDF:
		return PhaseAwaitingPDF
	case s.Step >= questionnaireLen:
		return PhaseComplete
	case s.Step > 0 || len(s.Profile) > 0:
		return PhaseQuestionnaire
	default:
		return PhaseNew
	}
}

// Clone returns a deep copy so cached state can be handed out without
// aliasing the cache entry.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Profile != nil {
		cp.Profile = make(map[string]string, len(s.Profile))
		for k, v := range s.Profile {
			cp.Profile[k] = v
		}
	}
	if s.Documents != nil {
		cp.Documents = append([]PlanDocument(nil), s.Documents...)
	}
	if s.ResetAt != nil {
		t := *s.ResetAt
		cp.ResetAt = &t
	}
	return &cp
}

// UserPatch is a partial update with merge semantics: nil fields are left
// untouched by the store, non-nil fields replace the stored value. Profile
// replaces the whole answer map when set.
type UserPatch struct {
	Step        *int
	Profile     map[string]string
	AwaitingPDF *bool
	// MarkReset asks the store to stamp reset_at with a server-assigned time.
	MarkReset bool
}

// Apply merges the patch into a state in place, using now for any
// timestamps the caller would otherwise get from the store backend.
func (p UserPatch) Apply(s *UserState, now time.Time) {
	if p.Step != nil {
		s.Step = *p.Step
	}
	if p.Profile != nil {
		s.Profile = make(map[string]string, len(p.Profile))
		for k, v := range p.Profile {
			s.Profile[k] = v
		}
	}
	if p.AwaitingPDF != nil {
		s.AwaitingPDF = *p.AwaitingPDF
	}
	if p.MarkReset {
		t := now
		s.ResetAt = &t
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastInteraction = now
}

// PlanDocument records one generated plan artifact. The sequence per user
// is append-only; the engine never truncates it.
type PlanDocument struct {
	Filename  string    `json:"filename" firestore:"filename"`
	URL       string    `json:"url" firestore:"url"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
}

// Interaction is one inbound/outbound pair recorded best-effort after each
// handled message.
type Interaction struct {
	UserID    string    `json:"user_id" firestore:"-"`
	Direction string    `json:"message_type" firestore:"message_type"`
	Message   string    `json:"message" firestore:"message"`
	Response  string    `json:"response" firestore:"response"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}
