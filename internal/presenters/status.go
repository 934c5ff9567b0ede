package presenters

import (
	"fmt"
	"strings"
	"time"

	"github.com/glizzus/clutch/internal/capture"
)

const idleStatus = "⚪ No hay grabaciones activas. Usa `!record` para comenzar."

// ParticipantStatus pairs a capture snapshot with the participant's display name.
type ParticipantStatus struct {
	Username string
	Stats    capture.Stats
}

// StatusMessage describes the recording of a guild. rssBytes is the resident memory
// of the bot process; zero omits the line.
func StatusMessage(participants []ParticipantStatus, now time.Time, rssBytes uint64) string {
	var b strings.Builder
	if len(participants) == 0 {
		b.WriteString(idleStatus)
	} else {
		b.WriteString("🔴 **Grabando activamente**\n\n")
		for _, p := range participants {
			duration := now.Sub(p.Stats.StartedAt).Round(time.Second)
			fmt.Fprintf(&b, "👤 %s: %d paquetes, %s", p.Username, p.Stats.Frames, formatDuration(duration))
			if p.Stats.Dropped > 0 {
				fmt.Fprintf(&b, " (%d perdidos)", p.Stats.Dropped)
			}
			if p.Stats.Truncated {
				b.WriteString(" (límite alcanzado)")
			}
			b.WriteString("\n")
		}
	}
	if rssBytes > 0 {
		fmt.Fprintf(&b, "\n💾 Memoria del bot: %.1f MB", float64(rssBytes)/(1024*1024))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%ds", int(d/time.Second))
}
