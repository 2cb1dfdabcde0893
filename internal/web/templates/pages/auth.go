// Package pages renders the full web UI pages.
package pages

import (
	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// Login renders the sign-in page.
func Login(b components.Base, username, errMsg string) templ.Component {
	b.Title = "Sign in"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<div class="card" style="max-width:360px;margin:4rem auto"><h1>Sign in to ReportWatch</h1>`)
		if errMsg != "" {
			h.Render(components.Alert(session.FlashError, errMsg))
		}
		h.Raw(`<form method="post" action="/login">`)
		h.CSRF(b.CSRFToken)
		h.Input("Username", "text", "username", username, "")
		h.Input("Password", "password", "password", "", "")
		h.Raw(`<label><input type="checkbox" name="remember_me"> Remember me</label>`)
		h.Raw(`<p><button type="submit">Sign in</button></p></form></div>`)
	}))
}

// Onboarding renders the first-run introduction.
func Onboarding(b components.Base, reports, workspaces int) templ.Component {
	b.Title = "Welcome"
	b.Nav = ""
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<div class="card"><h1>Welcome to ReportWatch</h1>`)
		h.Raw(`<p>ReportWatch watches KPIs in your Power BI reports and notifies your team by email, WhatsApp, Teams or Telegram when a condition is met.</p>`)
		h.Raw(`<ol><li>Pick a report and the datasets, KPIs and dimensions to watch.</li>`)
		h.Raw(`<li>Write a condition such as <code>value &lt; 1000</code> and choose how often to check it.</li>`)
		h.Raw(`<li>Choose who gets notified.</li></ol>`)
		h.Textf("Your catalog has %d reports in %d workspaces.", reports, workspaces)
		h.Raw(`<form method="post" action="/onboarding">`)
		h.CSRF(b.CSRFToken)
		h.Raw(`<p><button type="submit">Get started</button></p></form></div>`)
	}))
}

// NotFound renders the catch-all page.
func NotFound(b components.Base, path string) templ.Component {
	b.Title = "Not found"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<div class="card"><h1>Page not found</h1><p>Nothing lives at <code>`)
		h.Text(path)
		h.Raw(`</code>.</p><p><a href="/alerts">Back to alerts</a></p></div>`)
	}))
}
