package export

import (
	"context"
	"fmt"
	"time"

	"cuemesh/api/internal/cue"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetShowInfo(ctx context.Context, id string) (ShowInfo, error)
	ListCueRows(ctx context.Context, showID string) ([]CueRow, error)
	ListEventLines(ctx context.Context, showID string) ([]EventLine, error)
}

// ShowInfo holds show metadata for the sheet header
type ShowInfo struct {
	ID    string
	Name  string
	Venue string
}

// EventLine is one entry in the exported event trail appendix.
type EventLine struct {
	Type      string
	Note      string
	Author    string
	CreatedAt time.Time
}

// Service provides cue sheet export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a cue sheet in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	show, err := s.store.GetShowInfo(ctx, req.ShowID)
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}

	rows, err := s.store.ListCueRows(ctx, req.ShowID)
	if err != nil {
		return nil, fmt.Errorf("list cues: %w", err)
	}

	data := TemplateData{
		ShowName:   show.Name,
		Venue:      show.Venue,
		ExportedAt: time.Now(),
		Department: req.FilterDepartment,
		Cues:       filterByDepartment(rows, req.FilterDepartment),
	}

	if req.IncludeEvents {
		events, err := s.store.ListEventLines(ctx, req.ShowID)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		data.Events = events
	}

	html, err := RenderCueSheetHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, show.Name)
	case FormatDOCX:
		return exportDOCX(html, show.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// filterByDepartment keeps the rows a member of the given department would
// see, using the same normalized-target resolution as the rails. Untargeted
// cues address everyone and stay on every sheet.
func filterByDepartment(rows []CueRow, department string) []CueRow {
	if department == "" {
		return rows
	}
	var out []CueRow
	for _, row := range rows {
		if row.TargetSet.Matches(cue.Department(department), "") {
			out = append(out, row)
		}
	}
	return out
}
