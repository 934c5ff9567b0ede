package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RunAt executes a function asynchronously at a specified time.
// The function is not run if ctx is cancelled first.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) {
	go func() {
		timer := time.NewTimer(time.Until(runAt))
		defer timer.Stop()
		select {
		case <-timer.C:
			execute(ctx)
		case <-ctx.Done():
		}
	}()
}

// Every runs execute at each match of cron until ctx is cancelled. Runs never
// overlap: a run that outlasts the next match skips it.
func Every(ctx context.Context, cron *Cron, execute func(ctx context.Context)) error {
	for {
		next := cron.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q never matches again", cron)
		}
		slog.Debug("Next scheduled run", "cron", cron.String(), "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			execute(ctx)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
