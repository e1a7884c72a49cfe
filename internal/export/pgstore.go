package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cuemesh/api/internal/store"
)

// PGStore adapts the Postgres store to the export DataStore. Export reads are
// infrequent so it trades extra round trips (one ack and confirm listing per
// cue) for staying on the store's existing query surface.
type PGStore struct {
	store *store.PostgresStore
}

func NewPGStore(s *store.PostgresStore) *PGStore {
	return &PGStore{store: s}
}

func (p *PGStore) GetShowInfo(ctx context.Context, id string) (ShowInfo, error) {
	show, err := p.store.GetShow(ctx, id)
	if err != nil {
		return ShowInfo{}, err
	}
	return ShowInfo{ID: show.ID, Name: show.Name, Venue: show.Venue}, nil
}

func (p *PGStore) ListCueRows(ctx context.Context, showID string) ([]CueRow, error) {
	cues, err := p.store.ListCues(ctx, showID)
	if err != nil {
		return nil, err
	}

	rows := make([]CueRow, 0, len(cues))
	for _, c := range cues {
		acks, err := p.store.ListAcks(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list acks for cue %s: %w", c.ID, err)
		}
		confirms, err := p.store.ListConfirms(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list confirms for cue %s: %w", c.ID, err)
		}
		rows = append(rows, CueRow{
			Type:      string(c.Type),
			Title:     c.Title,
			Details:   c.Details,
			Targets:   targetsLabel(c.Targets.Departments, c.Targets.AccessRoles),
			TargetSet: c.Targets,
			Priority:  string(c.Priority),
			Status:    string(c.Status),
			GoAt:      c.GoAt,
			AckCount:  len(acks),
			ConfCount: len(confirms),
		})
	}
	return rows, nil
}

func (p *PGStore) ListEventLines(ctx context.Context, showID string) ([]EventLine, error) {
	events, err := p.store.ListShowEvents(ctx, showID, "", 500)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	if members, err := p.store.ListMembers(ctx, showID); err == nil {
		for _, m := range members {
			names[m.ParticipantID] = m.DisplayName
		}
	}

	lines := make([]EventLine, 0, len(events))
	for _, ev := range events {
		var payload struct {
			Note string `json:"note"`
		}
		_ = json.Unmarshal(ev.Payload, &payload)
		author := names[ev.CreatedBy]
		if author == "" {
			author = ev.CreatedBy
		}
		lines = append(lines, EventLine{
			Type:      ev.Type,
			Note:      payload.Note,
			Author:    author,
			CreatedAt: ev.CreatedAt,
		})
	}
	return lines, nil
}

// targetsLabel renders normalized targets for the sheet's Targets column.
// Empty targets mean the cue addresses everyone.
func targetsLabel(departments, roles []string) string {
	parts := append([]string{}, departments...)
	parts = append(parts, roles...)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}
