package preferences

import (
	"strconv"
	"strings"
)

const (
	ScaleMin     = 1
	ScaleMax     = 5
	ScaleNeutral = 3

	scaleStepPrefix = "personality_scale_"
	scaleHint       = "1 = nada de acuerdo · 5 = totalmente de acuerdo"
)

var scaleStatements = []string{
	"Me resulta fácil iniciar conversaciones con personas que no conozco.",
	"Prefiero escuchar antes que hablar en la mayoría de las situaciones.",
	"Me esfuerzo por ser amable y considerado, incluso en desacuerdos.",
	"Cuando algo no sale como quiero, tiendo a reaccionar de forma brusca o directa.",
	"Me mantengo calmado y enfocado en situaciones de presión.",
	"Me pongo nervioso o frustrado con facilidad cuando hay tensión.",
	"Me gusta planificar y organizar antes de actuar.",
	"A menudo actúo de manera improvisada y sin plan previo.",
	"Disfruto probar ideas o formas nuevas de hacer las cosas.",
	"Prefiero seguir los métodos que ya conozco en lugar de cambiar.",
}

// QuestionCount is the number of statements of the personality questionnaire.
var QuestionCount = len(scaleStatements)

// ScaleStepID names the step of the questionnaire statement at index.
func ScaleStepID(index int) string {
	return scaleStepPrefix + strconv.Itoa(index)
}

func scaleIndex(stepID string) (int, bool) {
	rest, ok := strings.CutPrefix(stepID, scaleStepPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || i >= QuestionCount {
		return 0, false
	}
	return i, true
}

// Questionnaire returns one step per statement, answered from ScaleMin to ScaleMax.
func Questionnaire() []Step {
	options := make([]Option, 0, ScaleMax-ScaleMin+1)
	for v := ScaleMin; v <= ScaleMax; v++ {
		s := strconv.Itoa(v)
		options = append(options, Option{Label: s, Value: s})
	}

	steps := make([]Step, 0, QuestionCount)
	for i, statement := range scaleStatements {
		steps = append(steps, Step{
			ID:          ScaleStepID(i),
			Title:       statement,
			Placeholder: scaleHint,
			Options:     options,
			Scale:       true,
		})
	}
	return steps
}

// WithQuestionnaire inserts the questionnaire right after the personality step,
// or appends it when steps have none.
func WithQuestionnaire(steps []Step) []Step {
	at := len(steps)
	for i, step := range steps {
		if step.ID == StepPersonality {
			at = i + 1
			break
		}
	}
	out := make([]Step, 0, len(steps)+QuestionCount)
	out = append(out, steps[:at]...)
	out = append(out, Questionnaire()...)
	return append(out, steps[at:]...)
}

// NeutralAnswers is the questionnaire of a player who never answered it.
func NeutralAnswers() []int {
	answers := make([]int, QuestionCount)
	for i := range answers {
		answers[i] = ScaleNeutral
	}
	return answers
}

// PersonalityAnswers returns one answer per statement. Unanswered statements
// are neutral.
func (p Preferences) PersonalityAnswers() []int {
	answers := NeutralAnswers()
	for i, v := range p.PersonalityTest {
		if i < len(answers) && v >= ScaleMin && v <= ScaleMax {
			answers[i] = v
		}
	}
	return answers
}

func (p *Preferences) setScale(index int, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil || v < ScaleMin || v > ScaleMax {
		return ErrUnknownValue
	}
	answers := make([]int, QuestionCount)
	copy(answers, p.PersonalityTest)
	answers[index] = v
	p.PersonalityTest = answers
	return nil
}
