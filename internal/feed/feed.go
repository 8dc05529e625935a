// Package feed renders the alert and event lists. Both renderers are pure
// functions of the latest snapshot and replace the whole list every cycle.
package feed

import (
	"bytes"
	"html/template"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

var log = logger.For("Feed")

// NoAlertsHTML is shown when there are no alerts.
const NoAlertsHTML = `<p class="no-alerts">No high-priority alerts at the moment.</p>`

// Sink receives freshly rendered feeds.
type Sink interface {
	SetAlerts(html template.HTML)
	SetEvents(html template.HTML)
}

var alertsTmpl = template.Must(template.New("alerts").Parse(
	`{{range .}}<div class="alert-item"><p>{{.Message}}</p><span>{{.Time}} - {{.Date}}</span></div>{{end}}`))

var eventsTmpl = template.Must(template.New("events").Parse(
	`{{range .}}<li class="{{if .Threat}}event-threat{{end}}"><span>{{.Time}}:</span> {{.Message}}</li>{{end}}`))

type alertRow struct {
	Message, Time, Date string
}

type eventRow struct {
	Message, Time string
	Threat        bool
}

// RenderAlerts renders alerts in the order given.
func RenderAlerts(alerts []snapshot.Alert, loc *time.Location) template.HTML {
	if len(alerts) == 0 {
		return NoAlertsHTML
	}
	rows := make([]alertRow, len(alerts))
	for i, a := range alerts {
		rows[i] = alertRow{Message: a.Message, Time: a.Timestamp.LocalTime(loc), Date: a.Timestamp.LocalDate(loc)}
	}
	return execute(alertsTmpl, rows)
}

// RenderEvents renders events in the order given. No events render as "".
func RenderEvents(events []snapshot.Event, loc *time.Location) template.HTML {
	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = eventRow{Message: e.Message, Time: e.Timestamp.LocalTime(loc), Threat: e.IsThreat}
	}
	return execute(eventsTmpl, rows)
}

// Render pushes both feeds for snap into sink.
func Render(sink Sink, snap *snapshot.Snapshot, loc *time.Location) {
	sink.SetAlerts(RenderAlerts(snap.Alerts, loc))
	sink.SetEvents(RenderEvents(snap.Events, loc))
}

// execute renders t, or returns "" when rendering fails part way so a
// half-written list is never published.
func execute(t *template.Template, data any) template.HTML {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.Error("Render %s: %v", t.Name(), err)
		return ""
	}
	return template.HTML(buf.String())
}
