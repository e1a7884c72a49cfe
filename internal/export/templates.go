package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var cueSheetTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/cuesheet.html")
	if err != nil {
		// Fallback to built-in template if file not found
		cueSheetTemplate = template.Must(template.New("cuesheet").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	cueSheetTemplate = template.Must(template.New("cuesheet").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for cue sheet rendering
type TemplateData struct {
	ShowName   string
	Venue      string
	ExportedAt time.Time
	Department string
	Cues       []CueRow
	Events     []EventLine
}

// RenderCueSheetHTML renders the cue sheet template with provided data
func RenderCueSheetHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := cueSheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.ShowName}} Cue Sheet</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.4; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; }
    th, td { border: 1px solid #ccc; padding: 0.4rem; text-align: left; font-size: 0.85em; }
    .CRITICAL { font-weight: bold; }
    .event { background: #f5f5f5; padding: 0.5rem; margin: 0.5rem 0; border-left: 3px solid #333; }
  </style>
</head>
<body>
  <h1>{{.ShowName}}</h1>
  <div class="meta">{{if .Venue}}{{.Venue}} | {{end}}Exported {{.ExportedAt.Format "Jan 2, 2006 15:04"}}{{if .Department}} | {{.Department}} only{{end}}</div>
  <table>
    <tr><th>Type</th><th>Cue</th><th>Targets</th><th>Priority</th><th>Status</th><th>Go</th><th>Ack</th><th>Conf</th></tr>
    {{range .Cues}}
    <tr class="{{.Priority}}">
      <td>{{.Type}}</td>
      <td>{{.Title}}{{if .Details}}<br><small>{{.Details}}</small>{{end}}</td>
      <td>{{.Targets}}</td>
      <td>{{.Priority}}</td>
      <td>{{.Status}}</td>
      <td>{{if .GoAt}}{{.GoAt.Format "15:04:05"}}{{end}}</td>
      <td>{{.AckCount}}</td>
      <td>{{.ConfCount}}</td>
    </tr>
    {{end}}
  </table>
  {{if .Events}}
  <h2>Event Trail</h2>
  {{range .Events}}<div class="event">{{.CreatedAt.Format "15:04:05"}} {{.Type}} {{.Author}}{{if .Note}}: {{.Note}}{{end}}</div>{{end}}
  {{end}}
</body>
</html>`
