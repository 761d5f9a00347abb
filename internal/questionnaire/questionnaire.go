// Package questionnaire holds the fixed intake questionnaire: the ordered
// field/prompt sequence and the field-key display labels. It is static
// configuration consumed by the conversation engine, plan generator, and
// PDF renderer.
package questionnaire

import (
	"fmt"
	"strings"
)

// Question is one step of the intake sequence.
type Question struct {
	Key    string
	Prompt string
}

// Steps is the ordered questionnaire. Answers are stored under each Key.
var Steps = []Question{
	{"name", "Olá, Bem vindo ao FuelQ Pro! Vamos a uma jornada bem divertida e interessante para você ter mais performance, mas antes me diga seu nome?"},
	{"age", "Ok, e qual a sua idade?"},
	{"experience", "Qual o seu nível de experiência em esportes? (Iniciante, Intermediário, Avançado)"},
	{"sports", "Quais esportes você pratica? (Ciclismo, Corrida, Natação, etc.)"},
	{"events", "Quais eventos você tem em mente? (Corrida 5k, Corrida 10k, Ciclismo, MTB, Triathlon etc.)"},
	{"gender", "Qual o seu Sexo (Masculino/Feminino)?"},
	{"weight", "Me diga qual seu peso em Kg?"},
	{"height", "E sua altura em Centímetros?"},
	{"diet", "Que tipo de dieta você segue? (ex: Como de tudo, Vegano, Vegetariano, etc.)"},
	{"allergies", "Algum alimento te causa alergia?"},
	{"carb_adapted", "Você está adaptado a altas quantidades de carbo nos dias de treino longo ou competição? (Sim/Não)"},
	{"training_hours", "Quantas horas em média você treina na semana?"},
	{"cramps", "Você tem cãibras musculares durante seus treinos? (Sim/Não)"},
	{"plan_type", "Como você gostaria de receber seu plano alimentar? (Diário ou Semanal)"},
}

// Labels maps field keys to display labels for summaries and documents.
var Labels = map[string]string{
	"name":           "Nome",
	"age":            "Idade",
	"experience":     "Nível de experiência",
	"sports":         "Esportes praticados",
	"events":         "Eventos de interesse",
	"gender":         "Sexo",
	"weight":         "Peso (kg)",
	"height":         "Altura (cm)",
	"diet":           "Tipo de dieta",
	"allergies":      "Alergias alimentares",
	"carb_adapted":   "Adaptado a alto consumo de carboidrato?",
	"training_hours": "Horas de treino por semana",
	"cramps":         "Cãibras frequentes?",
	"plan_type":      "Tipo de plano desejado",
}

// Len returns the number of questionnaire steps.
func Len() int { return len(Steps) }

// LabelFor returns the display label for a field key, falling back to the
// key itself for unknown fields.
func LabelFor(key string) string {
	if label, ok := Labels[key]; ok {
		return label
	}
	return key
}

// Summary renders the answered profile as "Label: value" lines in
// questionnaire order, skipping unanswered fields.
func Summary(profile map[string]string) string {
	var lines []string
	for _, q := range Steps {
		if v, ok := profile[q.Key]; ok {
			lines = append(lines, fmt.Sprintf("%s: %s", LabelFor(q.Key), v))
		}
	}
	return strings.Join(lines, "\n")
}

// Complete reports whether every questionnaire field has been answered.
func Complete(profile map[string]string) bool {
	return len(profile) >= len(Steps)
}
