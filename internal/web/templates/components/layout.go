package components

import (
	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

// CSRFFieldName is the form field carrying the CSRF token.
const CSRFFieldName = "csrf_token"

// Base is the per-request data every page layout needs.
type Base struct {
	Title     string
	Nav       string
	Username  string
	Role      string
	CSRFToken string
	Nonce     string
	Flashes   []session.Flash
}

// IsAdmin reports whether the signed-in user is an admin.
func (b Base) IsAdmin() bool {
	return b.Role == "admin"
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;color:#1f2933;background:#f5f7fa}
header{background:#1f2933;color:#fff;padding:.6rem 1.5rem;display:flex;gap:1rem;align-items:center;flex-wrap:wrap}
header a{color:#cbd2d9;text-decoration:none}header a.active{color:#fff;font-weight:600}
header .spacer{flex:1}
main{padding:1.5rem;max-width:1200px;margin:auto}
table{width:100%;border-collapse:collapse;background:#fff}
th,td{padding:.45rem .6rem;border-bottom:1px solid #e4e7eb;text-align:left;vertical-align:top}
.field{display:flex;flex-direction:column;gap:.25rem;margin-bottom:.8rem}
.error{color:#ba2525;font-size:.85rem}
.toast{padding:.6rem 1rem;margin-bottom:1rem;border-radius:4px}
.toast-success{background:#e3f9e5;color:#05400a}.toast-error{background:#ffe3e3;color:#610404}
.badge{padding:.1rem .45rem;border-radius:3px;font-size:.8rem;background:#e4e7eb}
.badge-success{background:#c1eac5}.badge-warning{background:#fce588}.badge-failed{background:#ffbdbd}.badge-inactive{background:#d9e2ec}
.inline{display:inline}.card{background:#fff;padding:1rem;border-radius:4px;margin-bottom:1rem}
.stats{display:grid;grid-template-columns:repeat(auto-fit,minmax(160px,1fr));gap:1rem}
.steps span{margin-right:.8rem;color:#9aa5b1}.steps span.current{color:#1f2933;font-weight:600}
button.danger{color:#ba2525}
`

type navItem struct {
	key, href, label string
	adminOnly        bool
}

var navItems = []navItem{
	{"alerts", "/alerts", "Alerts", false},
	{"monitor", "/monitor", "Monitor", false},
	{"history", "/history", "History", false},
	{"analytics", "/analytics", "Analytics", false},
	{"reports", "/reports", "Reports", false},
	{"workspaces", "/workspaces", "Workspaces", false},
	{"catalog", "/catalog", "Data catalog", false},
	{"users", "/users", "Users", true},
	{"admin", "/admin", "Admin", true},
	{"settings", "/settings", "Settings", false},
}

// Layout wraps body in the page chrome: navigation, flashes and styles.
func Layout(b Base, body templ.Component) templ.Component {
	return New(func(h *HTML) {
		h.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Raw(`<title>`)
		h.Text(b.Title)
		h.Raw(` · ReportWatch</title><style>`, styles, `</style></head><body>`)
		if b.Username != "" {
			h.Raw(`<header><strong>ReportWatch</strong>`)
			for _, item := range navItems {
				if item.adminOnly && !b.IsAdmin() {
					continue
				}
				h.Raw(`<a`)
				h.Attr("href", item.href)
				if item.key == b.Nav {
					h.Raw(` class="active"`)
				}
				h.Raw(">")
				h.Text(item.label)
				h.Raw(`</a>`)
			}
			h.Raw(`<span class="spacer"></span><span>`)
			h.Text(b.Username)
			h.Raw(`</span>`)
			h.PostButton("/logout", "Sign out", b.CSRFToken, "")
			h.Raw(`</header>`)
		}
		h.Raw(`<main>`)
		for _, f := range b.Flashes {
			h.Render(Alert(f.Kind, f.Message))
		}
		h.Render(body)
		h.Raw(`</main></body></html>`)
	})
}
