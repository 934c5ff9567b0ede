package presenters

import (
	"fmt"
	"strings"

	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/util"
)

const (
	structuredHeader = "**Resumen Estructurado de tu Análisis**\n\n"
	fullHeader       = "🎮 **Tu Análisis Completo de Clutch**\n\n"
)

// AnalysisMessages renders an analysis as the direct messages sent to the player,
// in delivery order: the structured summary when present, then the full analysis.
func AnalysisMessages(result analysis.Result) []string {
	var messages []string
	if structured := strings.TrimSpace(result.StructuredText()); structured != "" {
		messages = append(messages, SplitMessage(structuredHeader+structured)...)
	}
	messages = append(messages, SplitMessage(fullHeader+strings.TrimSpace(result.Analysis))...)
	return messages
}

// TestAnalysisMessage summarises a test run in the channel it was requested from.
func TestAnalysisMessage(username string, result analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Prueba completada exitosamente!\n📊 Usuario: %s\n", username)
	if result.WPM > 0 {
		fmt.Fprintf(&b, "🗣️ Palabras por minuto: %.0f\n", result.WPM)
	}
	b.WriteString(excerpt(result.Analysis, 300))
	return b.String()
}

func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return "📝 " + text
	}
	return "📝 " + util.SplitText(text, limit)[0] + "…"
}
