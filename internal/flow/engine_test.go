package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gricce/fuelqpro-console/internal/models"
	"github.com/gricce/fuelqpro-console/internal/plan"
	"github.com/gricce/fuelqpro-console/internal/questionnaire"
	"github.com/gricce/fuelqpro-console/internal/store"
)

type stubPlans struct{ text string }

func (s *stubPlans) Generate(_ context.Context, _ map[string]string, _ bool) string {
	return s.text
}

type stubDelivery struct {
	url   string
	err   error
	calls int
}

func (d *stubDelivery) Deliver(_ context.Context, _ string, _ map[string]string) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	return d.url, nil
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine() (*Engine, *store.InMemoryStore, *stubDelivery, *testClock) {
	st := store.NewInMemoryStore()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st.SetClock(clock.Now)
	delivery := &stubDelivery{url: "https://storage.example.com/plans/plan_ana_1.pdf?sig=x"}
	e := NewEngine(st, &stubPlans{text: "Seu plano de nutrição esportiva."}, delivery)
	e.SetClock(clock.Now)
	return e, st, delivery, clock
}

var testAnswers = []string{
	"Ana", "30", "Intermediário", "Corrida, Ciclismo", "Triathlon", "Feminino",
	"62", "168", "Como de tudo", "Nenhuma", "Adaptada sim", "10", "Raramente", "Diário",
}

// completeProfile walks a fresh user through the greeting and all answers.
func completeProfile(t *testing.T, e *Engine, userID string) {
	t.Helper()
	if got := e.Handle(context.Background(), userID, "olá"); got != questionnaire.Steps[0].Prompt {
		t.Fatalf("greeting reply = %q, want first prompt", got)
	}
	if len(testAnswers) != questionnaire.Len() {
		t.Fatalf("test answers cover %d steps, questionnaire has %d", len(testAnswers), questionnaire.Len())
	}
	for _, a := range testAnswers {
		e.Handle(context.Background(), userID, a)
	}
}

func getState(t *testing.T, st store.Store, userID string) *models.UserState {
	t.Helper()
	state, err := st.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if state == nil {
		t.Fatalf("no state stored for %s", userID)
	}
	return state
}

func TestFirstMessageYieldsFirstPrompt(t *testing.T) {
	e, st, _, _ := newTestEngine()

	reply := e.Handle(context.Background(), "user1", "oi, tudo bem?")
	if reply != questionnaire.Steps[0].Prompt {
		t.Errorf("first reply = %q, want the opening question", reply)
	}
	state := getState(t, st, "user1")
	if state.Step != 0 || len(state.Profile) != 0 {
		t.Errorf("fresh user state = step %d, profile %v; want step 0, empty profile", state.Step, state.Profile)
	}
	if state.CreatedAt.IsZero() {
		t.Error("created_at not stamped on first contact")
	}
}

func TestSecondMessageRecordsName(t *testing.T) {
	e, st, _, _ := newTestEngine()
	e.Handle(context.Background(), "user1", "oi")

	reply := e.Handle(context.Background(), "user1", "Ana")
	if reply != questionnaire.Steps[1].Prompt {
		t.Errorf("reply = %q, want second prompt", reply)
	}
	state := getState(t, st, "user1")
	if state.Profile["name"] != "Ana" {
		t.Errorf("name = %q, want Ana", state.Profile["name"])
	}
	if state.Step != 1 {
		t.Errorf("step = %d, want 1", state.Step)
	}
}

func TestFullQuestionnaireYieldsSummary(t *testing.T) {
	e, st, _, _ := newTestEngine()
	ctx := context.Background()

	e.Handle(ctx, "user1", "olá")
	var last string
	for _, a := range testAnswers {
		last = e.Handle(ctx, "user1", a)
	}

	if !strings.HasPrefix(last, "Obrigado! Aqui está o resumo do seu perfil:") {
		t.Fatalf("final reply is not the summary: %q", last)
	}
	// Every label and answer appears exactly once, in questionnaire order.
	pos := 0
	for i, q := range questionnaire.Steps {
		line := fmt.Sprintf("%s: %s", questionnaire.LabelFor(q.Key), testAnswers[i])
		idx := strings.Index(last, line)
		if idx < 0 {
			t.Fatalf("summary missing %q", line)
		}
		if idx < pos {
			t.Errorf("summary line %q out of order", line)
		}
		if strings.Count(last, line) != 1 {
			t.Errorf("summary repeats %q", line)
		}
		pos = idx
	}
	state := getState(t, st, "user1")
	if state.Step != questionnaire.Len() {
		t.Errorf("step = %d, want %d", state.Step, questionnaire.Len())
	}
}

func TestShowPlanSetsAwaitingFlag(t *testing.T) {
	e, st, _, _ := newTestEngine()
	completeProfile(t, e, "user1")

	reply := e.Handle(context.Background(), "user1", "ok")
	if !strings.HasSuffix(reply, pdfQuestion) {
		t.Errorf("plan reply does not end with the PDF offer: %q", reply)
	}
	if !strings.Contains(reply, "Seu plano de nutrição esportiva.") {
		t.Errorf("plan reply missing generated text: %q", reply)
	}
	if !getState(t, st, "user1").AwaitingPDF {
		t.Error("awaiting_pdf not set after showing the plan")
	}
}

func TestShowPlanRespectsMessageCeiling(t *testing.T) {
	e, _, _, _ := newTestEngine()
	e.plans = &stubPlans{text: strings.Repeat("Coma bem. ", 400)}
	completeProfile(t, e, "user1")

	reply := e.Handle(context.Background(), "user1", "visualizar")
	if !strings.HasSuffix(reply, pdfQuestion) {
		t.Fatalf("truncated reply lost the PDF offer: %q", reply)
	}
	// Ceiling plus a little slack for the continuation marker.
	if len(reply) > plan.MessageCeiling+120 {
		t.Errorf("reply length %d exceeds the channel ceiling", len(reply))
	}
}

func TestVisualizarIncompleteProfile(t *testing.T) {
	e, st, _, _ := newTestEngine()
	e.Handle(context.Background(), "user1", "oi")
	e.Handle(context.Background(), "user1", "Ana")

	if got := e.Handle(context.Background(), "user1", "visualizar"); got != profileIncompleteReply {
		t.Errorf("reply = %q, want incomplete-profile nudge", got)
	}
	if getState(t, st, "user1").AwaitingPDF {
		t.Error("awaiting_pdf set despite incomplete profile")
	}
}

func TestConfirmPDFDeliversLink(t *testing.T) {
	e, st, delivery, _ := newTestEngine()
	completeProfile(t, e, "user1")
	e.Handle(context.Background(), "user1", "ok")

	reply := e.Handle(context.Background(), "user1", "Sim")
	if !strings.Contains(reply, delivery.url) {
		t.Errorf("reply %q missing the document URL", reply)
	}
	if !strings.Contains(reply, "7 dias") {
		t.Errorf("reply %q missing the expiry note", reply)
	}
	if delivery.calls != 1 {
		t.Errorf("delivery called %d times, want 1", delivery.calls)
	}
	if getState(t, st, "user1").AwaitingPDF {
		t.Error("awaiting_pdf still set after confirmation")
	}
}

func TestDeclinePDF(t *testing.T) {
	e, st, delivery, _ := newTestEngine()
	completeProfile(t, e, "user1")
	e.Handle(context.Background(), "user1", "ok")

	if got := e.Handle(context.Background(), "user1", "não"); got != pdfDeclineReply {
		t.Errorf("reply = %q, want decline acknowledgment", got)
	}
	if delivery.calls != 0 {
		t.Errorf("delivery called %d times on decline, want 0", delivery.calls)
	}
	if getState(t, st, "user1").AwaitingPDF {
		t.Error("awaiting_pdf still set after decline")
	}
}

func TestAwaitingFlagClearedOnDeliveryFailure(t *testing.T) {
	e, st, delivery, _ := newTestEngine()
	delivery.err = errors.New("bucket unavailable")
	completeProfile(t, e, "user1")
	e.Handle(context.Background(), "user1", "ok")

	if got := e.Handle(context.Background(), "user1", "sim"); got != pdfConfirmFailureReply {
		t.Errorf("reply = %q, want PDF failure apology", got)
	}
	if getState(t, st, "user1").AwaitingPDF {
		t.Error("awaiting_pdf still set after failed delivery")
	}
}

func TestPDFCommand(t *testing.T) {
	e, _, delivery, _ := newTestEngine()
	completeProfile(t, e, "user1")

	reply := e.Handle(context.Background(), "user1", "pdf")
	if !strings.Contains(reply, delivery.url) || !strings.Contains(reply, "7 dias") {
		t.Errorf("reply %q missing URL or expiry note", reply)
	}
}

func TestPDFCommandIncompleteProfile(t *testing.T) {
	e, _, delivery, _ := newTestEngine()
	e.Handle(context.Background(), "user1", "oi")

	if got := e.Handle(context.Background(), "user1", "pdf"); got != pdfNeedsProfileReply {
		t.Errorf("reply = %q, want restart hint", got)
	}
	if delivery.calls != 0 {
		t.Errorf("delivery called %d times for incomplete profile, want 0", delivery.calls)
	}
}

func TestPDFCommandDeliveryFailure(t *testing.T) {
	e, _, delivery, _ := newTestEngine()
	delivery.err = errors.New("bucket unavailable")
	completeProfile(t, e, "user1")

	if got := e.Handle(context.Background(), "user1", "pdf"); got != pdfCommandFailureReply {
		t.Errorf("reply = %q, want delivery apology", got)
	}
}

func TestPlanosWithNoDocuments(t *testing.T) {
	e, _, _, _ := newTestEngine()
	e.Handle(context.Background(), "user1", "oi")

	if got := e.Handle(context.Background(), "user1", "planos"); got != noPlansReply {
		t.Errorf("reply = %q, want no-plans hint", got)
	}
}

func TestPlanosListsNewestFirstCappedAtFive(t *testing.T) {
	e, st, _, _ := newTestEngine()
	ctx := context.Background()
	e.Handle(ctx, "user1", "oi")
	for i := 1; i <= 7; i++ {
		doc := models.PlanDocument{
			Filename:  fmt.Sprintf("plans/plan_%d.pdf", i),
			URL:       fmt.Sprintf("https://example.com/plan%d", i),
			CreatedAt: time.Date(2025, 5, i, 0, 0, 0, 0, time.UTC),
		}
		if err := st.AppendDocument(ctx, "user1", doc); err != nil {
			t.Fatalf("AppendDocument failed: %v", err)
		}
	}

	reply := e.Handle(ctx, "user1", "meus planos")
	if !strings.HasPrefix(reply, "Seus planos nutricionais:") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if !strings.Contains(reply, "1. Plano criado em 07/05/2025: https://example.com/plan7") {
		t.Errorf("newest plan not listed first: %q", reply)
	}
	if strings.Contains(reply, "plan1") || strings.Contains(reply, "plan2") {
		t.Errorf("listing not capped at five entries: %q", reply)
	}
}

func TestResetMidQuestionnaire(t *testing.T) {
	e, st, _, _ := newTestEngine()
	ctx := context.Background()
	e.Handle(ctx, "user1", "oi")
	for _, a := range testAnswers[:5] {
		e.Handle(ctx, "user1", a)
	}

	reply := e.Handle(ctx, "user1", "reiniciar")
	if reply != resetReplyPrefix+questionnaire.Steps[0].Prompt {
		t.Errorf("reply = %q, want confirmation plus first prompt", reply)
	}
	state := getState(t, st, "user1")
	if state.Step != 0 || len(state.Profile) != 0 {
		t.Errorf("state after reset = step %d, profile %v", state.Step, state.Profile)
	}
	if state.ResetAt == nil {
		t.Error("reset_at not stamped")
	}
}

func TestResetIsIdempotent(t *testing.T) {
	e, st, _, _ := newTestEngine()
	ctx := context.Background()
	completeProfile(t, e, "user1")
	e.Handle(ctx, "user1", "ok")

	first := e.Handle(ctx, "user1", "reiniciar")
	second := e.Handle(ctx, "user1", "reiniciar")
	if first != second {
		t.Errorf("reset replies differ: %q vs %q", first, second)
	}
	state := getState(t, st, "user1")
	if state.Step != 0 || len(state.Profile) != 0 || state.AwaitingPDF {
		t.Errorf("state after double reset = %+v", state)
	}
}

func TestPostCompletionMenu(t *testing.T) {
	e, _, _, _ := newTestEngine()
	completeProfile(t, e, "user1")

	if got := e.Handle(context.Background(), "user1", "qualquer coisa"); got != menuReply {
		t.Errorf("reply = %q, want command menu", got)
	}
}

func TestWelcomeBackAfterIdleWeek(t *testing.T) {
	e, _, _, clock := newTestEngine()
	ctx := context.Background()
	e.Handle(ctx, "user1", "oi")
	e.Handle(ctx, "user1", "Ana")

	clock.Advance(8 * 24 * time.Hour)

	reply := e.Handle(ctx, "user1", "planos")
	if !strings.Contains(reply, "Olá Ana, bem-vindo(a) de volta ao FuelQ Pro!") {
		t.Fatalf("expected welcome-back greeting, got %q", reply)
	}

	// Handling the greeting updated last_interaction, so the next message
	// goes through normal dispatch.
	if got := e.Handle(ctx, "user1", "planos"); got != noPlansReply {
		t.Errorf("second message reply = %q, want normal planos handling", got)
	}
}

func TestWelcomeBackSkippedAfterReset(t *testing.T) {
	e, _, _, clock := newTestEngine()
	ctx := context.Background()
	e.Handle(ctx, "user1", "oi")
	e.Handle(ctx, "user1", "Ana")
	e.Handle(ctx, "user1", "reiniciar")

	clock.Advance(8 * 24 * time.Hour)

	if got := e.Handle(ctx, "user1", "planos"); got != noPlansReply {
		t.Errorf("reply = %q; reset users should not get the welcome-back greeting", got)
	}
}

// downStore fails every operation, modeling a total backend outage.
type downStore struct{}

var errStoreDown = errors.New("store unavailable")

func (downStore) GetUser(context.Context, string) (*models.UserState, error) {
	return nil, errStoreDown
}
func (downStore) SaveUser(context.Context, string, models.UserPatch) error { return errStoreDown }
func (downStore) AppendDocument(context.Context, string, models.PlanDocument) error {
	return errStoreDown
}
func (downStore) LogInteraction(context.Context, models.Interaction) error { return errStoreDown }
func (downStore) Close() error                                             { return nil }

func TestDegradedStoreStillReplies(t *testing.T) {
	e := NewEngine(downStore{}, &stubPlans{text: "plano"}, nil)

	if got := e.Handle(context.Background(), "user1", "oi"); got != questionnaire.Steps[0].Prompt {
		t.Errorf("reply = %q, want first prompt despite store outage", got)
	}
}

// panicStore panics on read, exercising the top-level recovery.
type panicStore struct{ downStore }

func (panicStore) GetUser(context.Context, string) (*models.UserState, error) {
	panic("corrupted state")
}

func TestPanicProducesSingleApology(t *testing.T) {
	e := NewEngine(panicStore{}, &stubPlans{text: "plano"}, nil)

	if got := e.Handle(context.Background(), "user1", "oi"); got != GenericErrorReply {
		t.Errorf("reply = %q, want generic apology", got)
	}
}

func TestNoDelivererConfigured(t *testing.T) {
	st := store.NewInMemoryStore()
	e := NewEngine(st, &stubPlans{text: "plano"}, nil)
	completeProfile(t, e, "user1")

	if got := e.Handle(context.Background(), "user1", "pdf"); got != pdfCommandFailureReply {
		t.Errorf("reply = %q, want delivery apology when no deliverer is wired", got)
	}
}

func TestInteractionLogged(t *testing.T) {
	e, st, _, _ := newTestEngine()
	e.Handle(context.Background(), "user1", "oi")

	logged := st.Interactions("user1")
	if len(logged) != 1 {
		t.Fatalf("expected 1 logged interaction, got %d", len(logged))
	}
	entry := logged[0]
	if entry.Direction != models.DirectionOutgoing {
		t.Errorf("direction = %q", entry.Direction)
	}
	if entry.Message != "oi" || entry.Response != questionnaire.Steps[0].Prompt {
		t.Errorf("logged pair = (%q, %q)", entry.Message, entry.Response)
	}
}
