// Package plan generates nutrition plan text from a completed intake
// profile. It tries OpenAI model tiers in priority order and falls back to
// a deterministic templated plan, so a plan is always produced.
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gricce/fuelqpro-console/internal/genai"
	"github.com/gricce/fuelqpro-console/internal/questionnaire"
)

// TextClient is the minimal text-generation dependency, satisfied by
// *genai.Client.
type TextClient interface {
	Generate(ctx context.Context, model, prompt string, maxTokens int64) (string, error)
}

// Generator produces nutrition plan text for a profile.
type Generator struct {
	client TextClient
}

// NewGenerator creates a plan generator. A nil client skips the remote
// tiers and always serves the templated fallback.
func NewGenerator(client TextClient) *Generator {
	return &Generator{client: client}
}

// Generate returns plan text for the profile. full=false requests the
// channel-bounded variant; full=true the unabridged variant for document
// rendering. It never fails: remote backend errors cascade to the next
// tier and finally to the deterministic fallback.
func (g *Generator) Generate(ctx context.Context, profile map[string]string, full bool) string {
	prompt := buildPrompt(profile, full)
	maxTokens := int64(1000)
	if full {
		maxTokens = 2000
	}

	if g.client != nil {
		for _, model := range []string{genai.ModelPrimary, genai.ModelSecondary} {
			text, err := g.client.Generate(ctx, model, prompt, maxTokens)
			if err != nil {
				slog.Warn("plan.Generate: model tier failed, trying next", "model", model, "error", err)
				continue
			}
			slog.Debug("plan.Generate: plan generated", "model", model, "full", full, "length", len(text))
			if full {
				return text
			}
			return Truncate(text, MessageCeiling)
		}
	}

	slog.Info("plan.Generate: serving templated fallback plan", "full", full)
	return fallbackPlan(profile, full)
}

// buildPrompt renders the generation prompt from the profile summary.
func buildPrompt(profile map[string]string, full bool) string {
	lengthInstruction := "conciso para caber em uma mensagem de WhatsApp (máximo 1500 caracteres)"
	if full {
		lengthInstruction = "detalhado e completo"
	}
	planType := profile["plan_type"]
	if planType == "" {
		planType = "Diário"
	}

	var b strings.Builder
	b.WriteString("Crie um plano de nutrição personalizado para esportistas baseado nesse perfil:\n\n")
	b.WriteString(questionnaire.Summary(profile))
	b.WriteString("\n\nO plano deve incluir:\n")
	b.WriteString("1. Recomendações gerais baseadas no perfil\n")
	b.WriteString("2. Sugestões de alimentação pré, durante e pós treino\n")
	b.WriteString("3. Dicas para evitar cãibras (se aplicável)\n")
	b.WriteString("4. Estratégia de hidratação\n")
	fmt.Fprintf(&b, "5. Formato %s\n", planType)
	fmt.Fprintf(&b, "\nO plano deve ser %s.", lengthInstruction)
	return b.String()
}
