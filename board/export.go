package board

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// DefaultExportMessages is how many recent messages an export includes.
const DefaultExportMessages = 5

var exportTemplate = template.Must(template.New("column").Funcs(template.FuncMap{
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"oneline": func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	},
}).Parse(`# {{ .Col.Title }}

| Criticality | Duration | Reminder |
|---|---|---|
| {{ .Col.Criticality }}/10 | {{ if .Col.Duration }}{{ .Col.Duration }}{{ else }}-{{ end }} | {{ .Reminder }} |

## Description

{{ if .Col.Description }}{{ .Col.Description }}{{ else }}_No description._{{ end }}
{{ if .Col.Links }}
## Links
{{ range .Col.Links }}
- [{{ .Label }}]({{ .URL }}){{ end }}
{{ end }}{{ if .Messages }}
## Recent messages
{{ range .Messages }}
- **{{ stamp .CreatedAt }}** {{ oneline .Text }}{{ end }}
{{ end }}`))

// Export renders a one-page markdown summary of col with its last n messages.
func Export(col Column, n int) ([]byte, error) {
	if n <= 0 {
		n = DefaultExportMessages
	}
	msgs := col.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}

	reminder := "-"
	if col.Reminder != nil {
		reminder = fmt.Sprintf("%s at %s", col.Reminder.Type, col.Reminder.Time.Format("2006-01-02 15:04"))
	}

	var buf bytes.Buffer
	err := exportTemplate.Execute(&buf, struct {
		Col      Column
		Reminder string
		Messages []Message
	}{Col: col, Reminder: reminder, Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("failed to render column export: %w", err)
	}
	return buf.Bytes(), nil
}
