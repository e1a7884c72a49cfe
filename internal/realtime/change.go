// Package realtime moves change notifications from writers to connected
// feeds. Writers publish a Change onto the Redis bus; every API replica's
// bus loop rebroadcasts into its local hub; each feed connection then
// recomputes its view from the latest store snapshot. Notifications carry no
// payload beyond "this stream of this show changed". The snapshot re-read is
// what keeps clients convergent regardless of notification arrival order.
package realtime

// Stream names one of the per-show subscriptions. Ordering is guaranteed
// within a stream, never across streams.
type Stream string

const (
	StreamShow    Stream = "show"
	StreamMembers Stream = "members"
	StreamCues    Stream = "cues"
	// StreamDegraded is synthesized locally when the bus connection fails, so
	// feeds can surface a degraded state while keeping their last snapshot.
	StreamDegraded Stream = "degraded"
)

type Change struct {
	ShowID string `json:"showId"`
	Stream Stream `json:"stream"`
}
