package plan

import (
	"fmt"
	"strings"
)

// sportRecommendations matches on a substring of the user's listed sports;
// first match wins, so the order is fixed.
var sportRecommendations = []struct {
	sport string
	text  string
}{
	{"ciclismo", "Como ciclista, foque em carboidratos complexos e proteínas para recuperação."},
	{"corrida", "Como corredor, priorize carboidratos e proteínas magras."},
	{"natação", "Como nadador, equilibre carboidratos e proteínas."},
}

const defaultSportRecommendation = "Foque em carboidratos complexos e proteínas para recuperação."

const crampTips = "\n\n🔹 DICAS PARA EVITAR CÃIBRAS:\n- Aumente magnésio e potássio (banana, abacate)\n- Hidrate-se bem\n- Faça alongamentos"

const fullPlanDetail = `
🔹 PLANO DETALHADO:

Café da manhã:
- 1 xícara de aveia cozida com frutas
- 2 ovos ou 30g de whey protein
- 1 fruta (banana ou maçã)

Lanche da manhã:
- Iogurte natural com granola
- Punhado de castanhas

Almoço:
- 150g de proteína magra (frango, peixe)
- 1 xícara de arroz integral ou batata doce
- Vegetais variados (2 xícaras)
- 1 colher de azeite de oliva

Lanche pré-treino (1-2h antes):
- 1 banana
- 1 torrada com mel
- 200ml de água

Durante treino:
- 500-750ml de água com eletrólitos por hora
- Gel energético a cada 45-60min para treinos longos

Pós-treino imediato:
- 30g de whey protein
- 1 banana ou 1 colher de mel

Jantar:
- 150g de proteína magra
- Vegetais variados
- 1/2 xícara de carboidratos complexos

Suplementação recomendada:
- Magnésio: 300-400mg/dia (especialmente se tem cãibras)
- Vitamina D: 1000-2000 UI/dia
- Eletrólitos para reposição durante treinos intensos

Esse plano deve ser adaptado conforme suas necessidades calóricas específicas e ajustado com o acompanhamento de um nutricionista esportivo.
`

// fallbackPlan builds the deterministic templated plan from the sport type,
// cramps flag, and plan-type preference.
func fallbackPlan(profile map[string]string, full bool) string {
	name := profile["name"]
	sports := strings.ToLower(profile["sports"])
	hasCramps := strings.ToLower(profile["cramps"]) == "sim"
	planType := strings.ToLower(profile["plan_type"])
	if planType == "" {
		planType = "diário"
	}

	sportText := defaultSportRecommendation
	for _, rec := range sportRecommendations {
		if strings.Contains(sports, rec.sport) {
			sportText = rec.text
			break
		}
	}

	crampText := ""
	if hasCramps {
		crampText = crampTips
	}

	text := fmt.Sprintf(`🍎 PLANO NUTRICIONAL 🍎

Olá %s! Seu plano %s:

🔹 GERAL:
%s
- 5-6 refeições pequenas ao dia
- 2-3 litros de água diários

🔹 PRÉ-TREINO:
- Carboidratos: batata doce, aveia
- Proteína: frango, ovo ou whey

🔹 DURANTE:
- Água com eletrólitos
- Gel para treinos >1h

🔹 PÓS-TREINO:
- Whey protein
- Carboidratos: banana, mel%s

🔹 HIDRATAÇÃO:
- 500ml água 2h antes
- 150-200ml a cada 15-20min
- 500ml após treino

Consulte um nutricionista!
`, name, planType, sportText, crampText)

	if full {
		text += fullPlanDetail
	}
	return text
}
