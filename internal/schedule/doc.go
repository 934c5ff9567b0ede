// Package schedule runs work at a point in time or on a cron schedule.
//
// ParseCron wraps cronexpr, RunAt fires once after a delay, and Every repeats
// until its context ends.
package schedule
