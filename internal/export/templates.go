package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"buildea/api/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"richText": TextToHTML,
}).ParseFS(templateFS, "templates/report.html"))

// ReportData holds everything the report template shows.
type ReportData struct {
	Event       store.Event
	Theme       *store.Theme
	Idea        *store.Idea
	GeneratedAt time.Time
}

// RenderReportHTML renders the event report template with provided data
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
