package pages

import (
	"fmt"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// UserForm is the create-user form state.
type UserForm struct {
	Username string
	Email    string
	Role     string
}

// UsersView is the state of the user management page.
type UsersView struct {
	Users  []*models.User
	Search string
	Role   string
	SelfID string
	Form   UserForm
	Errors map[string]string
}

var roles = []models.Role{models.RoleAdmin, models.RoleOperator, models.RoleViewer}

// Users renders the user list and the create-user form.
func Users(b components.Base, v UsersView) templ.Component {
	b.Title = "Users"
	b.Nav = "users"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Users</h1><form method="get" action="/users" class="card">`)
		h.Input("Search", "search", "q", v.Search, "")
		h.Raw(`<label>Role <select name="role"><option value="">Any</option>`)
		for _, r := range roles {
			h.Option(string(r), string(r), string(r) == v.Role)
		}
		h.Raw(`</select></label> <button type="submit">Filter</button></form>`)

		h.Raw(`<table><thead><tr><th>Username</th><th>Name</th><th>Email</th><th>Role</th><th>Permissions</th><th>Last login</th><th>Active</th><th></th></tr></thead><tbody>`)
		for _, u := range v.Users {
			h.Raw(`<tr><td>`)
			h.Text(u.Username)
			h.Raw(`</td><td>`)
			h.Text(u.Name)
			h.Raw(`</td><td>`)
			h.Text(u.Email)
			h.Raw(`</td><td>`)
			h.Text(string(u.Role))
			h.Raw(`</td><td>`)
			h.Text(strings.Join(u.Permissions, ", "))
			h.Raw(`</td><td>`)
			h.Text(components.FormatTime(u.LastLoginAt))
			h.Raw(`</td><td>`)
			if u.Active {
				h.Raw(`yes`)
			} else {
				h.Raw(`no`)
			}
			h.Raw(`</td><td>`)
			if u.ID != v.SelfID {
				label := "Deactivate"
				if !u.Active {
					label = "Activate"
				}
				h.PostButton("/users/"+u.ID+"/toggle", label, b.CSRFToken, "")
				h.Raw(` `)
				h.PostButton("/users/"+u.ID+"/delete", "Delete", b.CSRFToken, "danger")
			}
			h.Raw(`</td></tr>`)
		}
		h.Raw(`</tbody></table>`)

		errs := v.Errors
		h.Raw(`<h2>Add user</h2><form method="post" action="/users" class="card">`)
		h.CSRF(b.CSRFToken)
		h.Input("Username", "text", "username", v.Form.Username, errs["username"])
		h.Input("Email", "email", "email", v.Form.Email, errs["email"])
		h.Input("Password", "password", "password", "", errs["password"])
		h.Input("Confirm password", "password", "confirm_password", "", errs["confirm_password"])
		h.Raw(`<label class="field">Role<select name="role">`)
		for _, r := range roles {
			h.Option(string(r), string(r), string(r) == v.Form.Role || (v.Form.Role == "" && r == models.RoleViewer))
		}
		h.Raw(`</select>`)
		h.FieldError(errs["role"])
		h.Raw(`</label><p><button type="submit">Create user</button></p></form>`)
	}))
}

// SettingsView is the state of the settings page.
type SettingsView struct {
	User           *models.User
	Settings       models.Settings
	SettingsError  string
	PasswordErrors map[string]string
	Alerts         []*models.Alert
}

var themes = []string{"light", "dark", "system"}

func settingString(s models.Settings, key string) string {
	switch v := s[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Settings renders the settings blob form, subscriptions and password change.
func Settings(b components.Base, v SettingsView) templ.Component {
	b.Title = "Settings"
	b.Nav = "settings"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Settings</h1>`)

		if b.IsAdmin() {
			h.Raw(`<h2>Workspace</h2><form method="post" action="/settings" class="card">`)
			h.CSRF(b.CSRFToken)
			h.FieldError(v.SettingsError)
			h.Input("Company name", "text", "companyName", settingString(v.Settings, "companyName"), "")
			h.Raw(`<label class="field">Theme<select name="theme"><option value="">Default</option>`)
			theme := settingString(v.Settings, "theme")
			for _, t := range themes {
				h.Option(t, t, t == theme)
			}
			h.Raw(`</select></label>`)
			h.Input("Default check frequency", "text", "defaultFrequency", settingString(v.Settings, "defaultFrequency"), "")
			h.Input("Cost per query (USD)", "text", "costPerQuery", settingString(v.Settings, "costPerQuery"), "")
			h.Raw(`<p><button type="submit">Save settings</button></p></form>`)
		}

		if v.User != nil {
			h.Raw(`<h2>Subscriptions</h2><form method="post" action="/settings/subscriptions" class="card">`)
			h.CSRF(b.CSRFToken)
			if len(v.Alerts) == 0 {
				h.Raw(`<p>There are no alerts to subscribe to.</p>`)
			}
			for _, a := range v.Alerts {
				h.Raw(`<label>`)
				h.Checkbox("alert_id", a.ID, slices.Contains(v.User.Subscriptions, a.ID))
				h.Text(" " + a.Name)
				h.Raw(`</label><br>`)
			}
			h.Raw(`<p><button type="submit">Save subscriptions</button></p></form>`)
		}

		errs := v.PasswordErrors
		h.Raw(`<h2>Change password</h2><form method="post" action="/settings/password" class="card">`)
		h.CSRF(b.CSRFToken)
		h.Input("Current password", "password", "current_password", "", errs["current_password"])
		h.Input("New password", "password", "new_password", "", errs["new_password"])
		h.Input("Confirm new password", "password", "confirm_password", "", errs["confirm_password"])
		h.Raw(`<p><button type="submit">Change password</button></p></form>`)
	}))
}
