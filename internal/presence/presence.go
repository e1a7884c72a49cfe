// Package presence tracks member liveness. Records live in Redis, keyed per
// (show, member), and carry only an online flag, a last-seen timestamp, and
// the reporting device. The store never expires records on its own: a member
// that vanishes without saying goodbye stays online with a stale LastSeenAt,
// and deciding what "stale" means is the consumer's job.
package presence

import "time"

type Status struct {
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	DeviceID   string    `json:"deviceId,omitempty"`
}

// Stale is the advisory staleness judgment consumers can share. It compares
// LastSeenAt against wall clock and does not mutate anything.
func (s Status) Stale(now time.Time, maxAge time.Duration) bool {
	return s.Online && now.Sub(s.LastSeenAt) > maxAge
}
