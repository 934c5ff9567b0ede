package schedule

import (
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// Cron is a parsed cron expression.
type Cron struct {
	source string
	expr   *cronexpr.Expression
}

// ParseCron parses a standard five field expression, or one of the extended
// forms cronexpr accepts (seconds, years, @daily and friends).
func ParseCron(cron string) (*Cron, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	return &Cron{source: cron, expr: expr}, nil
}

// Next returns the first match strictly after t, or the zero time when the
// expression never matches again.
func (c *Cron) Next(t time.Time) time.Time {
	return c.expr.Next(t)
}

// Upcoming returns up to n matches after t.
func (c *Cron) Upcoming(t time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	return c.expr.NextN(t, uint(n))
}

func (c *Cron) String() string {
	return c.source
}
