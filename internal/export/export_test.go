package export

import (
	"strings"
	"testing"
	"time"

	"cuemesh/api/internal/cue"
)

func TestFilterByDepartmentUsesNormalizedTargets(t *testing.T) {
	rows := []CueRow{
		{Title: "ASM preset", Targets: "ASSISTANT_STAGE_MANAGER",
			TargetSet: cue.Targets{Departments: []string{"ASSISTANT_STAGE_MANAGER"}}},
		{Title: "SM standby", Targets: "STAGE_MANAGER",
			TargetSet: cue.Targets{Departments: []string{"STAGE_MANAGER"}}},
		{Title: "House open"},
	}

	got := filterByDepartment(rows, "STAGE_MANAGER")

	titles := make([]string, 0, len(got))
	for _, row := range got {
		titles = append(titles, row.Title)
	}
	if len(titles) != 2 || titles[0] != "SM standby" || titles[1] != "House open" {
		t.Fatalf("expected the SM cue and the untargeted cue, got %v", titles)
	}

	if got := filterByDepartment(rows, ""); len(got) != len(rows) {
		t.Fatalf("empty department filter must keep every row, got %d", len(got))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Evening Performance", "Evening-Performance"},
		{"Matinee v1.2", "Matinee-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "cuesheet"},
		{"A Very Long Show Title That Exceeds Fifty Characters Limit", "A-Very-Long-Show-Title-That-Exceeds-Fifty-Characte"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderCueSheetHTML(t *testing.T) {
	goAt := time.Date(2026, 3, 14, 20, 15, 0, 0, time.UTC)
	data := TemplateData{
		ShowName:   "Evening Performance",
		Venue:      "Main Stage",
		ExportedAt: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
		Cues: []CueRow{
			{
				Type:      "LIGHT",
				Title:     "LX 12 blackout",
				Details:   "Full blackout on last note",
				Targets:   "LIGHTING_LX_OP",
				Priority:  "CRITICAL",
				Status:    "GO",
				GoAt:      &goAt,
				AckCount:  3,
				ConfCount: 2,
			},
			{
				Type:     "STAGE",
				Title:    "Scene change",
				Targets:  "DECK, FOH",
				Priority: "MEDIUM",
				Status:   "STANDBY",
			},
		},
		Events: []EventLine{
			{Type: "CUE_CANT", Note: "mic 4 is dead", Author: "A2", CreatedAt: goAt},
		},
	}

	html, err := RenderCueSheetHTML(data)
	if err != nil {
		t.Fatalf("RenderCueSheetHTML() error = %v", err)
	}

	for _, want := range []string{
		"Evening Performance",
		"Main Stage",
		"LX 12 blackout",
		"Full blackout on last note",
		"LIGHTING_LX_OP",
		"20:15",
		"Scene change",
		"Event Trail",
		"mic 4 is dead",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered sheet missing %q", want)
		}
	}

	if !strings.Contains(html, `class="CRITICAL"`) {
		t.Error("critical cue row should carry its priority class")
	}
}

func TestRenderCueSheetHTMLEscapesUserText(t *testing.T) {
	data := TemplateData{
		ShowName:   "Injection <script>",
		ExportedAt: time.Now(),
		Cues: []CueRow{
			{Type: "STAGE", Title: "<b>bold</b>", Priority: "LOW", Status: "DRAFT"},
		},
	}

	html, err := RenderCueSheetHTML(data)
	if err != nil {
		t.Fatalf("RenderCueSheetHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("show name was not escaped")
	}
	if strings.Contains(html, "<b>bold</b>") {
		t.Error("cue title was not escaped")
	}
}
