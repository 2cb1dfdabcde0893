package components

import (
	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

// Alert renders a toast message. Kind is a session flash kind.
func Alert(kind, message string) templ.Component {
	role := "status"
	if kind == session.FlashError {
		role = "alert"
	}
	return New(func(h *HTML) {
		h.Raw(`<div`)
		h.Attr("class", "toast toast-"+kind)
		h.Attr("role", role)
		h.Raw(">")
		h.Text(message)
		h.Raw(`</div>`)
	})
}

// StatusBadge renders an alert or run status.
func StatusBadge(st models.AlertStatus) templ.Component {
	return New(func(h *HTML) {
		h.Raw(`<span`)
		h.Attr("class", "badge badge-"+string(st))
		h.Raw(">")
		h.Text(string(st))
		h.Raw(`</span>`)
	})
}

// HistoryTable renders execution rows, linking each to its alert when
// withAlert is set.
func HistoryTable(rows []*models.AlertHistory, withAlert bool) templ.Component {
	return New(func(h *HTML) {
		if len(rows) == 0 {
			h.Raw(`<p>No runs yet.</p>`)
			return
		}
		h.Raw(`<table><thead><tr><th>Started</th>`)
		if withAlert {
			h.Raw(`<th>Alert</th>`)
		}
		h.Raw(`<th>Status</th><th>Value</th><th>Message</th><th>Duration</th><th>Cost</th></tr></thead><tbody>`)
		for _, r := range rows {
			h.Raw(`<tr><td>`)
			h.Text(FormatTime(r.StartedAt))
			h.Raw(`</td>`)
			if withAlert {
				h.Raw(`<td>`)
				h.Link("/alerts/"+r.AlertID, r.AlertName)
				h.Raw(`</td>`)
			}
			h.Raw(`<td>`)
			h.Render(StatusBadge(r.Status))
			h.Raw(`</td><td>`)
			h.Textf("%g", r.Value)
			h.Raw(`</td><td>`)
			msg := r.Message
			if r.Error != "" {
				msg = r.Error
			}
			h.Text(msg)
			h.Raw(`</td><td>`)
			h.Text(r.Duration.String())
			h.Raw(`</td><td>`)
			h.Text(FormatCost(r.Cost))
			h.Raw(`</td></tr>`)
		}
		h.Raw(`</tbody></table>`)
	})
}
