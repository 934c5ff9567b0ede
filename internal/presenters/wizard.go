package presenters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/preferences"
)

const (
	wizardColor  = 0x5865f2
	summaryColor = 0x57f287
	timeoutColor = 0xfee75c

	WizardIntro = "He analizado tu partida. Para darte el mejor feedback, por favor, responde a estas preguntas:"
)

var stepNames = map[string]string{
	preferences.StepGame:        "🎮 Juego",
	preferences.StepCoachType:   "🎯 Tipo de coach",
	preferences.StepPersonality: "🧠 Personalidad",
	preferences.StepVoice:       "🗣️ Voz",
	preferences.StepSpeed:       "⏩ Velocidad",
}

const personalityTestName = "📊 Test de personalidad"

var wizardSelectMinValues = 1

// WizardCustomID builds the custom ID of a wizard select menu.
func WizardCustomID(stepID, instanceID string) string {
	return stepID + ":" + instanceID
}

// WizardButtonID builds the custom ID of the button answering stepID with value.
func WizardButtonID(stepID, value, instanceID string) string {
	return WizardCustomID(stepID+"."+value, instanceID)
}

func wizardStepEmbed(step preferences.Step, index, total int) *discordgo.MessageEmbed {
	description := fmt.Sprintf("Pregunta %d de %d", index+1, total)
	if step.Scale {
		description += "\n" + step.Placeholder
	}
	return &discordgo.MessageEmbed{
		Color:       wizardColor,
		Title:       step.Title,
		Description: description,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Si no respondes en 5 minutos usaremos las preferencias por defecto.",
		},
	}
}

func wizardStepComponents(step preferences.Step, instanceID string) []discordgo.MessageComponent {
	if step.Scale {
		buttons := make([]discordgo.MessageComponent, 0, len(step.Options))
		for _, o := range step.Options {
			buttons = append(buttons, discordgo.Button{
				Label:    o.Label,
				Style:    discordgo.SecondaryButton,
				CustomID: WizardButtonID(step.ID, o.Value, instanceID),
			})
		}
		return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	}

	options := make([]discordgo.SelectMenuOption, 0, len(step.Options))
	for _, o := range step.Options {
		options = append(options, discordgo.SelectMenuOption{
			Label:       o.Label,
			Value:       o.Value,
			Description: o.Description,
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    WizardCustomID(step.ID, instanceID),
					Placeholder: step.Placeholder,
					MinValues:   &wizardSelectMinValues,
					MaxValues:   1,
					Options:     options,
				},
			},
		},
	}
}

// WizardStartMessage is the direct message that opens the wizard on its first step.
func WizardStartMessage(step preferences.Step, total int, instanceID string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    WizardIntro,
		Embeds:     []*discordgo.MessageEmbed{wizardStepEmbed(step, 0, total)},
		Components: wizardStepComponents(step, instanceID),
	}
}

// WizardStepResponse replaces the wizard message with the step at index.
func WizardStepResponse(step preferences.Step, index, total int, instanceID string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    WizardIntro,
			Embeds:     []*discordgo.MessageEmbed{wizardStepEmbed(step, index, total)},
			Components: wizardStepComponents(step, instanceID),
		},
	}
}

// WizardSummaryResponse replaces the wizard message with the chosen preferences.
func WizardSummaryResponse(prefs preferences.Preferences, steps []preferences.Step) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    "",
			Embeds:     []*discordgo.MessageEmbed{PreferencesEmbed("✅ Preferencias guardadas", summaryColor, prefs, steps)},
			Components: []discordgo.MessageComponent{},
		},
	}
}

// WizardTimeoutEmbed replaces the wizard once the player ran out of time.
func WizardTimeoutEmbed(prefs preferences.Preferences, steps []preferences.Step) *discordgo.MessageEmbed {
	return PreferencesEmbed("⌛ Tiempo agotado, usaremos estas preferencias", timeoutColor, prefs, steps)
}

// PreferencesEmbed lists preferences with the labels of their options. The
// questionnaire is summarized in a single field.
func PreferencesEmbed(title string, color int, prefs preferences.Preferences, steps []preferences.Step) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(steps))
	questionnaire := false
	for _, step := range steps {
		if step.Scale {
			questionnaire = true
			continue
		}
		value, _ := prefs.Value(step.ID)
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   stepNames[step.ID],
			Value:  step.Label(value),
			Inline: true,
		})
	}
	if questionnaire {
		answers := prefs.PersonalityAnswers()
		values := make([]string, len(answers))
		for i, a := range answers {
			values[i] = strconv.Itoa(a)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  personalityTestName,
			Value: strings.Join(values, ", "),
		})
	}
	return &discordgo.MessageEmbed{
		Color:  color,
		Title:  title,
		Fields: fields,
	}
}
