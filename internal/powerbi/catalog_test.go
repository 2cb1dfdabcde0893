package powerbi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

func TestNewCatalogEmbeddedFixture(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	w, r, d, s := c.Counts()
	if w == 0 || r == 0 || d == 0 || s == 0 {
		t.Fatalf("embedded fixture looks empty: %d %d %d %d", w, r, d, s)
	}

	rep, ok := c.GetReport("rpt-sales-overview")
	if !ok {
		t.Fatal("rpt-sales-overview not found")
	}
	if rep.Slug != "sales-overview" {
		t.Errorf("Slug = %q, want sales-overview", rep.Slug)
	}
	if bySlug, ok := c.GetReport("sales-overview"); !ok || bySlug.ID != rep.ID {
		t.Error("lookup by slug failed")
	}
	if rep.ModifiedAt.IsZero() {
		t.Error("ModifiedAt not parsed")
	}
}

func TestCatalogListReports(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	sales := c.ListReports("ws-sales", "")
	if len(sales) != 2 {
		t.Fatalf("ws-sales reports = %d, want 2", len(sales))
	}
	if sales[0].Name > sales[1].Name {
		t.Error("reports not ordered by name")
	}

	found := c.ListReports("", "CASH")
	if len(found) != 1 || found[0].ID != "rpt-cash-flow" {
		t.Errorf("search CASH = %+v", found)
	}

	if none := c.ListReports("ws-missing", ""); len(none) != 0 {
		t.Errorf("unknown workspace returned %d reports", len(none))
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	ds, _ := c.GetDataset("ds-sales")
	ds.KPIs[0] = "Mutated"

	again, _ := c.GetDataset("ds-sales")
	if again.KPIs[0] == "Mutated" {
		t.Error("GetDataset leaked internal slice")
	}
}

func TestCatalogReportDatasets(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	ds, err := c.ReportDatasets("rpt-sales-overview")
	if err != nil {
		t.Fatalf("ReportDatasets: %v", err)
	}
	if len(ds) != 2 || ds[0].ID != "ds-sales" || ds[1].ID != "ds-web" {
		t.Errorf("unexpected datasets %+v", ds)
	}
	if _, err := c.ReportDatasets("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCatalogMoveReport(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	moved, err := c.MoveReport("rpt-cash-flow", "ws-sales")
	if err != nil {
		t.Fatalf("MoveReport: %v", err)
	}
	if moved.WorkspaceID != "ws-sales" {
		t.Errorf("WorkspaceID = %q", moved.WorkspaceID)
	}
	if got, _ := c.GetReport("rpt-cash-flow"); got.WorkspaceID != "ws-sales" {
		t.Error("move not persisted in catalog")
	}
	if n := len(c.ListReports("ws-finance", "")); n != 1 {
		t.Errorf("ws-finance reports after move = %d, want 1", n)
	}

	tests := []struct {
		name      string
		report    string
		workspace string
		want      error
	}{
		{"unknown report", "rpt-missing", "ws-sales", ErrNotFound},
		{"unknown workspace", "rpt-cash-flow", "ws-missing", ErrNotFound},
		{"same workspace", "rpt-cash-flow", "ws-sales", ErrInvalidMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.MoveReport(tt.report, tt.workspace); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCatalogMigrateDataSource(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	ds, err := c.MigrateDataSource("src-erp-pg", Migration{Type: "SQLServer", Host: "erp.database.windows.net", Port: 1433})
	if err != nil {
		t.Fatalf("MigrateDataSource: %v", err)
	}
	if ds.MigrationStatus != models.MigrationMigrated || ds.MigratedAt.IsZero() {
		t.Errorf("unexpected status %q at %v", ds.MigrationStatus, ds.MigratedAt)
	}
	if ds.Type != "sqlserver" || ds.Port != 1433 || ds.Database != "ledger" {
		t.Errorf("unexpected data source %+v", ds)
	}

	if _, err := c.MigrateDataSource("src-missing", Migration{Type: "mysql", Host: "h"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.MigrateDataSource("src-erp-pg", Migration{Type: "mysql"}); !errors.Is(err, ErrInvalidMigration) {
		t.Errorf("err = %v, want ErrInvalidMigration", err)
	}
}

const testFixture = `
workspaces:
  - id: ws-a
    name: Alpha
datasets:
  - id: ds-a
    name: Dataset A
    kpis: [Revenue]
    dimensions: [Region]
reports:
  - id: rpt-a
    name: Alpha Report
    workspace_id: ws-a
    datasets: [ds-a]
datasources:
  - id: src-a
    name: Source A
    type: postgresql
    host: localhost
`

func writeFixture(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := writeFixture(t, t.TempDir(), testFixture)

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Path() != path {
		t.Errorf("Path() = %q", c.Path())
	}
	if _, ok := c.GetReport("alpha-report"); !ok {
		t.Error("report slug lookup failed")
	}
	src, _ := c.GetDataSource("src-a")
	if src.MigrationStatus != models.MigrationNone {
		t.Errorf("default migration status = %q", src.MigrationStatus)
	}
}

func TestLoadCatalogRejectsBrokenReferences(t *testing.T) {
	tests := map[string]string{
		"unknown workspace": `
workspaces: [{id: ws-a, name: A}]
reports: [{id: r1, name: R, workspace_id: ws-b}]
`,
		"unknown dataset": `
workspaces: [{id: ws-a, name: A}]
reports: [{id: r1, name: R, workspace_id: ws-a, datasets: [ds-x]}]
`,
		"duplicate id": `
workspaces: [{id: ws-a, name: A}, {id: ws-a, name: B}]
`,
		"invalid yaml": `workspaces: [`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFixture(t, t.TempDir(), content)
			if _, err := LoadCatalog(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCatalogReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, testFixture)
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	writeFixture(t, dir, testFixture+`
  - id: src-b
    name: Source B
    type: mysql
    host: db
`)
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := c.GetDataSource("src-b"); !ok {
		t.Error("reload did not pick up src-b")
	}

	writeFixture(t, dir, "workspaces: [")
	if err := c.Reload(); err == nil {
		t.Error("expected parse error")
	}
	if _, ok := c.GetDataSource("src-b"); !ok {
		t.Error("failed reload should keep previous snapshot")
	}
}
