package presenters

import (
	"fmt"

	"github.com/glizzus/clutch/internal/util"
)

// MaxMessageLength is the longest message content Discord accepts.
const MaxMessageLength = 2000

const (
	NotInVoiceMessage        = "¡Necesitas estar en un canal de voz!"
	AlreadyRecordingMessage  = "¡Ya estoy grabando! Usa !stop para detener la grabación."
	NotRecordingMessage      = "No estoy grabando en este servidor."
	NoParticipantsMessage    = "No hay otros usuarios en el canal de voz para grabar."
	JoinFailedMessage        = "No pude unirme al canal de voz. Inténtalo de nuevo."
	StoppingMessage          = "Finalizando grabación, un momento por favor..."
	NoActiveRecordingMessage = "No había grabaciones activas para procesar."
	StopFailedMessage        = "Ocurrió un error al detener la grabación."
	CompletedMessage         = "✅ ¡Análisis completo! Revisa tus mensajes directos para ver el feedback."
	ProcessingFailedMessage  = "❌ No pudimos procesar tu grabación esta vez. Inténtalo de nuevo más tarde."
	NoRecordingFoundMessage  = "❌ No se encontraron grabaciones tuyas para probar."
	ArchiveDisabledMessage   = "❌ El archivo de grabaciones no está configurado en este bot."
	InternalErrorMessage     = "Ocurrió un error inesperado."
	GuildOnlyMessage         = "Este comando solo funciona dentro de un servidor."
	RecordFailedMessage      = "No pude empezar a grabar a nadie en el canal de voz."
	AudioFeedbackMessage     = "🎧 **También tienes este análisis en audio:**"
	ReportMessage            = "📄 **Tu reporte de Clutch en PDF:**"
)

// RecordingStartedMessage confirms a recording and how many players are captured.
func RecordingStartedMessage(participants int) string {
	return fmt.Sprintf(
		"¡Empezando a grabar a %d %s! Usa !stop cuando quieras detener la grabación.",
		participants,
		plural(participants, "jugador", "jugadores"),
	)
}

// TestAnalysisFailedMessage reports a failed test run.
func TestAnalysisFailedMessage(err error) string {
	return fmt.Sprintf("❌ Error en la prueba: %v", err)
}

// SplitMessage breaks text into chunks Discord accepts as message content.
func SplitMessage(text string) []string {
	return util.SplitText(text, MaxMessageLength)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
