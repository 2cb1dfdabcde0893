package pages

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// ReportsView is the state of the report browser.
type ReportsView struct {
	Reports     []models.Report
	Workspaces  []models.Workspace
	WorkspaceID string
	Search      string
	CanMove     bool
}

func workspaceName(workspaces []models.Workspace, id string) string {
	for _, w := range workspaces {
		if w.ID == id {
			return w.Name
		}
	}
	return id
}

// Reports renders the Power BI reports with an optional move action.
func Reports(b components.Base, v ReportsView) templ.Component {
	b.Title = "Reports"
	b.Nav = "reports"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Reports</h1><form method="get" action="/reports" class="card">`)
		h.Input("Search", "search", "q", v.Search, "")
		h.Raw(`<label>Workspace <select name="workspace_id"><option value="">All workspaces</option>`)
		for _, w := range v.Workspaces {
			h.Option(w.ID, w.Name, w.ID == v.WorkspaceID)
		}
		h.Raw(`</select></label> <button type="submit">Filter</button></form>`)

		if len(v.Reports) == 0 {
			h.Raw(`<p>No reports match.</p>`)
			return
		}
		h.Raw(`<table><thead><tr><th>Report</th><th>Workspace</th><th>Datasets</th><th>Owner</th><th>Modified</th>`)
		if v.CanMove {
			h.Raw(`<th>Move to</th>`)
		}
		h.Raw(`</tr></thead><tbody>`)
		for _, r := range v.Reports {
			h.Raw(`<tr><td>`)
			if r.WebURL != "" {
				h.Link(r.WebURL, r.Name)
			} else {
				h.Text(r.Name)
			}
			h.Raw(`</td><td>`)
			h.Text(workspaceName(v.Workspaces, r.WorkspaceID))
			h.Raw(`</td><td>`)
			h.Text(strings.Join(r.DatasetIDs, ", "))
			h.Raw(`</td><td>`)
			h.Text(r.Owner)
			h.Raw(`</td><td>`)
			h.Text(components.FormatTime(r.ModifiedAt))
			h.Raw(`</td>`)
			if v.CanMove {
				h.Raw(`<td><form method="post" class="inline"`)
				h.Attr("action", "/reports/"+r.ID+"/move")
				h.Raw(">")
				h.CSRF(b.CSRFToken)
				h.Raw(`<select name="workspace_id">`)
				for _, w := range v.Workspaces {
					if w.ID != r.WorkspaceID {
						h.Option(w.ID, w.Name, false)
					}
				}
				h.Raw(`</select> <button type="submit">Move</button></form></td>`)
			}
			h.Raw(`</tr>`)
		}
		h.Raw(`</tbody></table>`)
	}))
}

// WorkspaceSummary is one workspace with its report count.
type WorkspaceSummary struct {
	models.Workspace
	Reports int
}

// Workspaces renders the Power BI workspaces.
func Workspaces(b components.Base, workspaces []WorkspaceSummary) templ.Component {
	b.Title = "Workspaces"
	b.Nav = "workspaces"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Workspaces</h1><table><thead><tr><th>Workspace</th><th>Description</th><th>Capacity</th><th>Owner</th><th>Reports</th></tr></thead><tbody>`)
		for _, w := range workspaces {
			h.Raw(`<tr><td>`)
			h.Text(w.Name)
			h.Raw(`</td><td>`)
			h.Text(w.Description)
			h.Raw(`</td><td>`)
			h.Text(w.Capacity)
			h.Raw(`</td><td>`)
			h.Text(w.Owner)
			h.Raw(`</td><td>`)
			h.Link("/reports?workspace_id="+w.ID, components.FormatInt(w.Reports))
			h.Raw(`</td></tr>`)
		}
		h.Raw(`</tbody></table>`)
	}))
}

// TableForm is the add/replace catalog table form state.
type TableForm struct {
	Name        string
	Description string
	Owner       string
	Columns     string
}

// CatalogView is the state of the data catalog page.
type CatalogView struct {
	DataSources []models.DataSource
	Datasets    []models.Dataset
	Tables      []models.CatalogTable
	Form        TableForm
	Error       string
	CanManage   bool
}

// Catalog renders data sources, datasets and the catalog table definitions.
func Catalog(b components.Base, v CatalogView) templ.Component {
	b.Title = "Data catalog"
	b.Nav = "catalog"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Data catalog</h1><h2>Data sources</h2>`)
		h.Raw(`<table><thead><tr><th>Name</th><th>Type</th><th>Host</th><th>Database</th><th>Gateway</th><th>Migration</th>`)
		if v.CanManage {
			h.Raw(`<th>Migrate</th>`)
		}
		h.Raw(`</tr></thead><tbody>`)
		for _, ds := range v.DataSources {
			h.Raw(`<tr><td>`)
			h.Text(ds.Name)
			h.Raw(`</td><td>`)
			h.Text(ds.Type)
			h.Raw(`</td><td>`)
			h.Text(ds.Host)
			h.Raw(`</td><td>`)
			h.Text(ds.Database)
			h.Raw(`</td><td>`)
			h.Text(ds.Gateway)
			h.Raw(`</td><td>`)
			h.Text(string(ds.MigrationStatus))
			h.Raw(`</td>`)
			if v.CanManage {
				h.Raw(`<td><form method="post" class="inline"`)
				h.Attr("action", "/catalog/datasources/"+ds.ID+"/migrate")
				h.Raw(">")
				h.CSRF(b.CSRFToken)
				h.Raw(`<input name="type" placeholder="type" size="10"> <input name="host" placeholder="host" size="16"> <button type="submit">Migrate</button></form></td>`)
			}
			h.Raw(`</tr>`)
		}
		h.Raw(`</tbody></table>`)

		h.Raw(`<h2>Datasets</h2><table><thead><tr><th>Dataset</th><th>KPIs</th><th>Dimensions</th></tr></thead><tbody>`)
		for _, ds := range v.Datasets {
			h.Raw(`<tr><td>`)
			h.Text(ds.Name)
			h.Raw(`</td><td>`)
			h.Text(strings.Join(ds.KPIs, ", "))
			h.Raw(`</td><td>`)
			h.Text(strings.Join(ds.Dimensions, ", "))
			h.Raw(`</td></tr>`)
		}
		h.Raw(`</tbody></table>`)

		h.Raw(`<h2>Tables</h2>`)
		if len(v.Tables) == 0 {
			h.Raw(`<p>No tables defined.</p>`)
		}
		for _, t := range v.Tables {
			h.Raw(`<div class="card"><h3>`)
			h.Text(t.Name)
			h.Raw(`</h3>`)
			if t.Description != "" {
				h.Raw(`<p>`)
				h.Text(t.Description)
				h.Raw(`</p>`)
			}
			h.Raw(`<table><thead><tr><th>Column</th><th>Type</th><th>Description</th></tr></thead><tbody>`)
			for _, c := range t.Columns {
				h.Raw(`<tr><td>`)
				h.Text(c.Name)
				h.Raw(`</td><td>`)
				h.Text(c.Type)
				h.Raw(`</td><td>`)
				h.Text(c.Description)
				h.Raw(`</td></tr>`)
			}
			h.Raw(`</tbody></table><p><small>Owner: `)
			h.Text(t.Owner)
			h.Raw(`. Updated `)
			h.Text(components.FormatTime(t.UpdatedAt))
			h.Raw(`</small></p>`)
			if v.CanManage {
				h.PostButton("/catalog/tables/"+t.Name+"/delete", "Delete", b.CSRFToken, "danger")
			}
			h.Raw(`</div>`)
		}

		if v.CanManage {
			h.Raw(`<h2>Add or replace a table</h2><form method="post" action="/catalog/tables" class="card">`)
			h.CSRF(b.CSRFToken)
			h.FieldError(v.Error)
			h.Input("Name", "text", "name", v.Form.Name, "")
			h.Input("Description", "text", "description", v.Form.Description, "")
			h.Input("Owner", "text", "owner", v.Form.Owner, "")
			h.Raw(`<label class="field">Columns, one per line as "name type description"<textarea name="columns" rows="6">`)
			h.Text(v.Form.Columns)
			h.Raw(`</textarea></label><p><button type="submit">Save table</button></p></form>`)
		}
	}))
}

// ClientForm is the add-client form state.
type ClientForm struct {
	Name  string
	Email string
	Plan  string
}

// AdminView is the state of the admin console.
type AdminView struct {
	Clients []models.AdminClient
	Form    ClientForm
	Error   string
}

var plans = []string{"free", "pro", "enterprise"}

// Admin renders the admin console client list.
func Admin(b components.Base, v AdminView) templ.Component {
	b.Title = "Admin"
	b.Nav = "admin"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Clients</h1>`)
		if len(v.Clients) == 0 {
			h.Raw(`<p>No clients yet.</p>`)
		} else {
			h.Raw(`<table><thead><tr><th>Name</th><th>Email</th><th>Plan</th><th>Active</th><th>Created</th><th></th></tr></thead><tbody>`)
			for _, c := range v.Clients {
				h.Raw(`<tr><td>`)
				h.Text(c.Name)
				h.Raw(`</td><td>`)
				h.Text(c.Email)
				h.Raw(`</td><td>`)
				h.Text(c.Plan)
				h.Raw(`</td><td>`)
				if c.Active {
					h.Raw(`yes`)
				} else {
					h.Raw(`no`)
				}
				h.Raw(`</td><td>`)
				h.Text(components.FormatTime(c.CreatedAt))
				h.Raw(`</td><td>`)
				h.PostButton("/admin/clients/"+c.ID+"/delete", "Remove", b.CSRFToken, "danger")
				h.Raw(`</td></tr>`)
			}
			h.Raw(`</tbody></table>`)
		}

		h.Raw(`<h2>Add client</h2><form method="post" action="/admin/clients" class="card">`)
		h.CSRF(b.CSRFToken)
		h.FieldError(v.Error)
		h.Input("Name", "text", "name", v.Form.Name, "")
		h.Input("Contact email", "email", "email", v.Form.Email, "")
		h.Raw(`<label class="field">Plan<select name="plan">`)
		for _, p := range plans {
			h.Option(p, p, p == v.Form.Plan)
		}
		h.Raw(`</select></label><label><input type="checkbox" name="active" value="true" checked> Active</label>`)
		h.Raw(`<p><button type="submit">Add client</button></p></form>`)
	}))
}
