// Package flow implements the per-user conversation state machine that
// drives the intake questionnaire, the out-of-band commands, and the plan
// delivery handshake.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
	"github.com/gricce/fuelqpro-console/internal/plan"
	"github.com/gricce/fuelqpro-console/internal/questionnaire"
	"github.com/gricce/fuelqpro-console/internal/store"
)

// welcomeBackAfter is the idle gap after which a returning user gets a
// personalized greeting instead of normal dispatch.
const welcomeBackAfter = 7 * 24 * time.Hour

// maxListedPlans caps the plan history shown by the 'planos' command.
const maxListedPlans = 5

// affirmatives are the accepted yes-tokens for the PDF offer, matched
// case-insensitively against the whole trimmed message.
var affirmatives = map[string]bool{"sim": true, "s": true, "yes": true, "y": true}

// PlanGenerator produces plan text from a profile. Satisfied by
// *plan.Generator.
type PlanGenerator interface {
	Generate(ctx context.Context, profile map[string]string, full bool) string
}

// DocumentDeliverer renders, uploads, and records a plan document and
// returns its shareable URL. Satisfied by *delivery.Deliverer.
type DocumentDeliverer interface {
	Deliver(ctx context.Context, userID string, profile map[string]string) (string, error)
}

// Engine is the conversation state machine. One Engine serves all users;
// handling is serialized per user ID so retried or concurrent deliveries
// from the same sender cannot lose step or profile updates.
type Engine struct {
	store    store.Store
	plans    PlanGenerator
	delivery DocumentDeliverer

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// NewEngine creates an Engine. The store and plan generator are required;
// delivery may be nil, in which case PDF requests answer with an apology.
func NewEngine(st store.Store, plans PlanGenerator, delivery DocumentDeliverer) *Engine {
	return &Engine{
		store:    st,
		plans:    plans,
		delivery: delivery,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock overrides the engine's time source for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Handle processes one inbound message and returns exactly one reply. It
// never panics outward; internal failures produce a generic apology. The
// interaction is logged best-effort after dispatch.
func (e *Engine) Handle(ctx context.Context, userID, message string) string {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	reply := e.safeDispatch(ctx, userID, message)

	if err := e.store.LogInteraction(ctx, models.Interaction{
		UserID:    userID,
		Direction: models.DirectionOutgoing,
		Message:   message,
		Response:  reply,
		Timestamp: e.now(),
	}); err != nil {
		slog.Warn("Engine.Handle: failed to log interaction", "error", err, "userID", userID)
	}
	return reply
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[userID] = lock
	}
	return lock
}

func (e *Engine) safeDispatch(ctx context.Context, userID, message string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine.Handle: recovered from panic", "panic", r, "userID", userID)
			reply = GenericErrorReply
		}
	}()
	return e.dispatch(ctx, userID, message)
}

func (e *Engine) dispatch(ctx context.Context, userID, message string) string {
	state, err := e.store.GetUser(ctx, userID)
	if err != nil {
		slog.Warn("Engine.dispatch: user state unavailable, treating as new", "error", err, "userID", userID)
	}
	isNew := state == nil
	if isNew {
		state = &models.UserState{UserID: userID}
	}
	if state.Profile == nil {
		state.Profile = map[string]string{}
	}
	slog.Debug("Engine.dispatch", "userID", userID, "step", state.Step, "phase", state.Phase(questionnaire.Len()))

	// The welcome-back decision uses the loaded snapshot; saving afterwards
	// stamps last_interaction so the greeting fires at most once per idle gap.
	if !state.CreatedAt.IsZero() && state.ResetAt == nil {
		last := state.LastInteraction
		if last.IsZero() {
			last = state.CreatedAt
		}
		if e.now().Sub(last) > welcomeBackAfter {
			e.save(ctx, userID, models.UserPatch{})
			return fmt.Sprintf(welcomeBackTemplate, state.Profile["name"])
		}
	}

	body := strings.ToLower(strings.TrimSpace(message))

	// The flag is cleared no matter what the answer is; only an explicit
	// affirmative triggers delivery.
	if state.AwaitingPDF {
		off := false
		e.save(ctx, userID, models.UserPatch{AwaitingPDF: &off})
		if !affirmatives[body] {
			return pdfDeclineReply
		}
		url, err := e.deliver(ctx, userID, state.Profile)
		if err != nil {
			return pdfConfirmFailureReply
		}
		return fmt.Sprintf(pdfLinkTemplate, url)
	}

	switch body {
	case "visualizar", "ok":
		return e.showPlan(ctx, userID, state)
	case "pdf":
		return e.sendPDF(ctx, userID, state)
	case "planos", "meus planos":
		e.save(ctx, userID, models.UserPatch{})
		return listPlans(state.Documents)
	case "reiniciar":
		return e.reset(ctx, userID)
	}

	// A never-seen user gets the opening question; their message is a
	// greeting, not an answer.
	if isNew {
		e.save(ctx, userID, models.UserPatch{})
		return questionnaire.Steps[0].Prompt
	}

	if state.Step < questionnaire.Len() {
		return e.advance(ctx, userID, state, message)
	}

	e.save(ctx, userID, models.UserPatch{})
	return menuReply
}

// showPlan handles 'visualizar'/'ok': short plan plus the PDF offer.
func (e *Engine) showPlan(ctx context.Context, userID string, state *models.UserState) string {
	if !questionnaire.Complete(state.Profile) {
		e.save(ctx, userID, models.UserPatch{})
		return profileIncompleteReply
	}
	text := e.plans.Generate(ctx, state.Profile, false)
	on := true
	e.save(ctx, userID, models.UserPatch{AwaitingPDF: &on})
	budget := plan.MessageCeiling - len(pdfQuestion)
	return plan.Truncate(text, budget) + pdfQuestion
}

// sendPDF handles the explicit 'pdf' command.
func (e *Engine) sendPDF(ctx context.Context, userID string, state *models.UserState) string {
	e.save(ctx, userID, models.UserPatch{})
	if !questionnaire.Complete(state.Profile) {
		return pdfNeedsProfileReply
	}
	url, err := e.deliver(ctx, userID, state.Profile)
	if err != nil {
		return pdfCommandFailureReply
	}
	return fmt.Sprintf(pdfLinkTemplate, url)
}

func (e *Engine) deliver(ctx context.Context, userID string, profile map[string]string) (string, error) {
	if e.delivery == nil {
		return "", fmt.Errorf("document delivery not configured")
	}
	url, err := e.delivery.Deliver(ctx, userID, profile)
	if err != nil {
		slog.Error("Engine.deliver: delivery failed", "error", err, "userID", userID)
		return "", err
	}
	return url, nil
}

// listPlans formats the most recent documents, newest first.
func listPlans(docs []models.PlanDocument) string {
	if len(docs) == 0 {
		return noPlansReply
	}
	var lines []string
	for i := len(docs) - 1; i >= 0 && len(lines) < maxListedPlans; i-- {
		doc := docs[i]
		lines = append(lines, fmt.Sprintf("%d. Plano criado em %s: %s",
			len(lines)+1, doc.CreatedAt.Format("02/01/2006"), doc.URL))
	}
	return fmt.Sprintf(planListTemplate, strings.Join(lines, "\n\n"))
}

// reset returns the user to the start of the questionnaire.
func (e *Engine) reset(ctx context.Context, userID string) string {
	zero := 0
	off := false
	e.save(ctx, userID, models.UserPatch{
		Step:        &zero,
		Profile:     map[string]string{},
		AwaitingPDF: &off,
		MarkReset:   true,
	})
	slog.Info("Engine.reset: profile reset", "userID", userID)
	return resetReplyPrefix + questionnaire.Steps[0].Prompt
}

// advance records the answer for the current step and moves forward by one.
func (e *Engine) advance(ctx context.Context, userID string, state *models.UserState, message string) string {
	key := questionnaire.Steps[state.Step].Key
	profile := make(map[string]string, len(state.Profile)+1)
	for k, v := range state.Profile {
		profile[k] = v
	}
	profile[key] = message

	next := state.Step + 1
	e.save(ctx, userID, models.UserPatch{Step: &next, Profile: profile})

	if next < questionnaire.Len() {
		return questionnaire.Steps[next].Prompt
	}
	return fmt.Sprintf(summaryTemplate, questionnaire.Summary(profile))
}

// save persists a patch, logging and swallowing failures so a storage
// outage never breaks the user-visible reply.
func (e *Engine) save(ctx context.Context, userID string, patch models.UserPatch) {
	if err := e.store.SaveUser(ctx, userID, patch); err != nil {
		slog.Warn("Engine.save: failed to persist user state", "error", err, "userID", userID)
	}
}
