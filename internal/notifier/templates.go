package notifier

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	html  *htmltemplate.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	AlertName   string
	Description string
	ReportName  string
	Status      string
	StatusColor string
	Condition   string
	KPI         string
	Value       string
	Text        string
	URL         string
	Timestamp   string
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}

	htmlTmpl, err := htmltemplate.New("alert.html").Funcs(htmltemplate.FuncMap(funcs)).ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("alert.txt").Funcs(funcs).ParseFS(templateFS, "templates/alert.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// statusColor returns the color for an alert status.
func statusColor(status models.AlertStatus) string {
	switch status {
	case models.AlertStatusFailed:
		return "#d32f2f" // red
	case models.AlertStatusWarning:
		return "#f57c00" // orange
	case models.AlertStatusSuccess:
		return "#388e3c" // green
	default:
		return "#757575" // gray
	}
}

// MessageToTemplateData converts a message to template data.
func MessageToTemplateData(msg *Message) TemplateData {
	return TemplateData{
		AlertName:   msg.AlertName,
		Description: msg.Description,
		ReportName:  msg.ReportName,
		Status:      string(msg.Status),
		StatusColor: statusColor(msg.Status),
		Condition:   msg.Condition,
		KPI:         msg.KPI,
		Value:       formatValue(msg.Value),
		Text:        msg.Text,
		URL:         msg.URL,
		Timestamp:   msg.Timestamp.Format("2006-01-02 15:04:05 MST"),
	}
}

func formatValue(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// statusEmoji returns an emoji for the alert status.
func statusEmoji(status models.AlertStatus) string {
	switch status {
	case models.AlertStatusFailed:
		return "\U0001F534" // red circle
	case models.AlertStatusWarning:
		return "\U0001F7E0" // orange circle
	case models.AlertStatusSuccess:
		return "\U0001F7E2" // green circle
	default:
		return "⚪" // white circle
	}
}

// summary is the one-paragraph plain text used by chat channels.
func summary(msg *Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ReportWatch alert: %s\n", statusEmoji(msg.Status), msg.AlertName)
	if msg.ReportName != "" {
		fmt.Fprintf(&b, "Report: %s\n", msg.ReportName)
	}
	if msg.KPI != "" {
		fmt.Fprintf(&b, "%s = %s\n", msg.KPI, formatValue(msg.Value))
	}
	if msg.Condition != "" {
		fmt.Fprintf(&b, "Condition: %s\n", msg.Condition)
	}
	if msg.Text != "" {
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	if msg.URL != "" {
		b.WriteString(msg.URL)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate truncates a string to max bytes with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
