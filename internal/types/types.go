package types

import "time"

// TickInterval is the width of one evaluation round. Tick timestamps are
// floored to this boundary so re-running inside the same window is idempotent.
const TickInterval = 15 * time.Minute

// FloorToTick floors a timestamp to the nearest tick boundary in UTC.
func FloorToTick(t time.Time) time.Time {
	return t.UTC().Truncate(TickInterval)
}
