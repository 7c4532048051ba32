package util

import "time"

// NowUTC returns the current UTC time at the microsecond precision Postgres
// timestamps keep, so records look the same regardless of the store.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
