// Package view derives the per-client render model from store snapshots.
// Everything here is a pure function over the latest snapshot: given the same
// cue set and the same member filter, the rails come out identical no matter
// in which order the underlying change notifications arrived. The feed layer
// only has to pump snapshots in, in order per stream.
package view

import (
	"cuemesh/api/internal/cue"
	"cuemesh/api/internal/presence"
	"cuemesh/api/internal/store"
)

// Filter is the member-local view criteria: their department and access role
// drive targeting resolution, and an optional priority narrows the feed.
type Filter struct {
	Department cue.Department
	AccessRole cue.AccessRole
	Priority   cue.Priority // empty means all priorities
}

// Rails is the rendered cue grouping.
type Rails struct {
	Standby []store.Cue `json:"standby"`
	Go      []store.Cue `json:"go"`
}

// MemberPresence pairs a directory record with its live presence.
type MemberPresence struct {
	Member   store.Member    `json:"member"`
	Presence presence.Status `json:"presence"`
}

// Snapshot is the latest known state per subscription stream. The streams
// have no cross-ordering guarantee, so any field may be ahead of the others;
// the reducer must stay total regardless.
type Snapshot struct {
	Show    store.Show
	Members []MemberPresence
	Cues    []store.Cue
}

// View is what a single client renders.
type View struct {
	Show    store.Show
	Members []MemberPresence
	Rails   Rails
	// SeenGo remembers which cues this client has already observed in GO, so
	// the native playback bridge fires at most once per cue per client.
	SeenGo map[string]bool
}

// BuildRails filters cues by targeting and priority, then splits them into
// the standby and go rails. Input order (creation time descending) is kept.
func BuildRails(cues []store.Cue, filter Filter) Rails {
	rails := Rails{Standby: []store.Cue{}, Go: []store.Cue{}}
	for _, c := range cues {
		if !c.Targets.Matches(filter.Department, filter.AccessRole) {
			continue
		}
		if filter.Priority != "" && c.Priority != filter.Priority {
			continue
		}
		switch cue.RailFor(c.Status) {
		case cue.RailStandby:
			rails.Standby = append(rails.Standby, c)
		case cue.RailGo:
			rails.Go = append(rails.Go, c)
		}
	}
	return rails
}

// Reduce folds a new snapshot into the previous view. It recomputes the rails
// wholesale (no incremental patching) and returns, alongside the new view,
// the ids of cues observed in GO for the first time by this client.
func Reduce(prev View, snap Snapshot, filter Filter) (View, []string) {
	next := View{
		Show:    snap.Show,
		Members: snap.Members,
		Rails:   BuildRails(snap.Cues, filter),
		SeenGo:  make(map[string]bool, len(prev.SeenGo)),
	}
	for id := range prev.SeenGo {
		next.SeenGo[id] = true
	}

	var firstGo []string
	for _, c := range next.Rails.Go {
		if next.SeenGo[c.ID] {
			continue
		}
		next.SeenGo[c.ID] = true
		firstGo = append(firstGo, c.ID)
	}
	return next, firstGo
}
