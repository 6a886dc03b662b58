package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"

	"github.com/slatrack/backend/internal/model"
)

var urgencyColors = map[model.Urgency]string{
	model.UrgencyLow:      "#17a2b8",
	model.UrgencyMedium:   "#ffc107",
	model.UrgencyHigh:     "#fd7e14",
	model.UrgencyCritical: "#dc3545",
}

var emailTemplate = htmltemplate.Must(htmltemplate.New("email").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h2 style="color: {{.Color}};">{{.Heading}}</h2>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td><b>Item</b></td><td>{{.Item.Code}} - {{.Item.Name}} ({{.Item.Type}})</td></tr>
{{- if .Alert}}
<tr><td><b>Alert type</b></td><td>{{.Alert.Type}}</td></tr>
<tr><td><b>Urgency</b></td><td>{{.Alert.Urgency}}</td></tr>
{{- if gt .Alert.Pending 0}}
<tr><td><b>Pending incidents</b></td><td style="color: #dc3545; font-weight: bold;">{{.Alert.Pending}}</td></tr>
{{- end}}
{{- end}}
{{- if .Incident}}
<tr><td><b>Incident</b></td><td>#{{.Incident.ID}} {{.Incident.Title}}</td></tr>
<tr><td><b>Severity</b></td><td>{{.Incident.Severity}}</td></tr>
<tr><td><b>Occurred</b></td><td>{{.Incident.OccurredAt.Format "2006-01-02 15:04"}}</td></tr>
{{- end}}
</table>
{{- if .Alert}}
<p>{{.Alert.Message}}</p>
{{- end}}
</body></html>`))

type emailView struct {
	Heading  string
	Color    string
	Item     ItemData
	Alert    *AlertData
	Incident *IncidentData
}

// EmailSubject returns the subject line for a notification email.
func EmailSubject(n model.Notification) string {
	if n.Alert != nil {
		return fmt.Sprintf("[%s] Alert %s on %s", n.Alert.Urgency, n.Alert.Type, n.Item.Code)
	}
	if n.Incident != nil {
		return fmt.Sprintf("Incident #%d assigned on %s: %s", n.Incident.ID, n.Item.Code, n.Incident.Title)
	}
	return "Notification for " + n.Item.Code
}

// EmailBody renders the HTML body for a notification email.
func EmailBody(n model.Notification) (string, error) {
	view := emailView{
		Heading: "Notification",
		Color:   urgencyColors[model.UrgencyLow],
		Item:    ItemDataFromModel(n.Item),
	}
	if n.Alert != nil {
		a := AlertDataFromModel(*n.Alert)
		view.Alert = &a
		view.Heading = "Alert: " + a.Type
		if c, ok := urgencyColors[n.Alert.Urgency]; ok {
			view.Color = c
		}
	}
	if n.Incident != nil {
		i := IncidentDataFromModel(*n.Incident)
		view.Incident = &i
		if n.Alert == nil {
			view.Heading = "Incident assigned"
		}
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
