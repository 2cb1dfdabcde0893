// Package powerbi serves Power BI workspace, report, dataset and data source
// metadata from a YAML fixture and resolves KPI values for alert runs.
package powerbi

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ettle/strcase"
	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

//go:embed fixtures.yaml
var defaultFixture []byte

var (
	// ErrNotFound is returned when a catalog object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidMove is returned when a report cannot be moved to the target workspace.
	ErrInvalidMove = errors.New("invalid move")
	// ErrInvalidMigration is returned for a malformed data source migration.
	ErrInvalidMigration = errors.New("invalid migration")
)

// Fixture is the on-disk catalog format.
type Fixture struct {
	Workspaces  []models.Workspace  `yaml:"workspaces"`
	Reports     []models.Report     `yaml:"reports"`
	Datasets    []models.Dataset    `yaml:"datasets"`
	DataSources []models.DataSource `yaml:"datasources"`
}

// snapshot is an immutable view of the catalog. Mutations build a new one.
type snapshot struct {
	workspaces  []models.Workspace
	reports     []models.Report
	datasets    []models.Dataset
	datasources []models.DataSource
}

// Catalog is the in-memory Power BI metadata store. It is safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	snap *snapshot
	path string
}

// NewCatalog returns a catalog loaded from the embedded fixture.
func NewCatalog() (*Catalog, error) {
	snap, err := parseFixture(defaultFixture)
	if err != nil {
		return nil, fmt.Errorf("parse embedded fixture: %w", err)
	}
	return &Catalog{snap: snap}, nil
}

// LoadCatalog returns a catalog loaded from path. An empty path uses the embedded fixture.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog()
	}
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCatalogFromFixture builds a catalog from an in-memory fixture.
func NewCatalogFromFixture(f Fixture) (*Catalog, error) {
	snap, err := buildSnapshot(f)
	if err != nil {
		return nil, err
	}
	return &Catalog{snap: snap}, nil
}

// Path returns the fixture file backing the catalog, or "" for the embedded one.
func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the fixture file and swaps the snapshot. In-memory moves and
// migrations are discarded.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	snap, err := parseFixture(data)
	if err != nil {
		return fmt.Errorf("parse catalog %s: %w", c.path, err)
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}

func parseFixture(data []byte) (*snapshot, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return buildSnapshot(f)
}

func buildSnapshot(f Fixture) (*snapshot, error) {
	seen := make(map[string]bool)
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s with empty id", kind)
		}
		key := kind + "/" + id
		if seen[key] {
			return fmt.Errorf("duplicate %s id %q", kind, id)
		}
		seen[key] = true
		return nil
	}

	for _, w := range f.Workspaces {
		if err := check("workspace", w.ID); err != nil {
			return nil, err
		}
	}
	for _, d := range f.Datasets {
		if err := check("dataset", d.ID); err != nil {
			return nil, err
		}
	}
	for _, s := range f.DataSources {
		if err := check("datasource", s.ID); err != nil {
			return nil, err
		}
	}
	for i := range f.Reports {
		r := &f.Reports[i]
		if err := check("report", r.ID); err != nil {
			return nil, err
		}
		if !seen["workspace/"+r.WorkspaceID] {
			return nil, fmt.Errorf("report %q references unknown workspace %q", r.ID, r.WorkspaceID)
		}
		for _, ds := range r.DatasetIDs {
			if !seen["dataset/"+ds] {
				return nil, fmt.Errorf("report %q references unknown dataset %q", r.ID, ds)
			}
		}
		r.Slug = strcase.ToKebab(r.Name)
	}
	for i := range f.DataSources {
		if f.DataSources[i].MigrationStatus == "" {
			f.DataSources[i].MigrationStatus = models.MigrationNone
		}
	}

	return &snapshot{
		workspaces:  f.Workspaces,
		reports:     f.Reports,
		datasets:    f.Datasets,
		datasources: f.DataSources,
	}, nil
}

func (c *Catalog) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// ListWorkspaces returns every workspace ordered by name.
func (c *Catalog) ListWorkspaces() []models.Workspace {
	s := c.current()
	out := make([]models.Workspace, len(s.workspaces))
	copy(out, s.workspaces)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetWorkspace returns a workspace by id.
func (c *Catalog) GetWorkspace(id string) (*models.Workspace, bool) {
	for _, w := range c.current().workspaces {
		if w.ID == id {
			w := w
			return &w, true
		}
	}
	return nil, false
}

// ListReports returns reports, optionally limited to one workspace and to
// names containing q (case-insensitive).
func (c *Catalog) ListReports(workspaceID, q string) []models.Report {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []models.Report
	for _, r := range c.current().reports {
		if workspaceID != "" && r.WorkspaceID != workspaceID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(r.Name), q) {
			continue
		}
		out = append(out, cloneReport(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetReport returns a report by id or slug.
func (c *Catalog) GetReport(id string) (*models.Report, bool) {
	for _, r := range c.current().reports {
		if r.ID == id || r.Slug == id {
			r := cloneReport(r)
			return &r, true
		}
	}
	return nil, false
}

// ReportDatasets returns the datasets a report uses, in report order.
func (c *Catalog) ReportDatasets(reportID string) ([]models.Dataset, error) {
	r, ok := c.GetReport(reportID)
	if !ok {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	out := make([]models.Dataset, 0, len(r.DatasetIDs))
	for _, id := range r.DatasetIDs {
		if ds, ok := c.GetDataset(id); ok {
			out = append(out, *ds)
		}
	}
	return out, nil
}

// ListDatasets returns every dataset.
func (c *Catalog) ListDatasets() []models.Dataset {
	s := c.current()
	out := make([]models.Dataset, len(s.datasets))
	for i, d := range s.datasets {
		out[i] = cloneDataset(d)
	}
	return out
}

// GetDataset returns a dataset by id.
func (c *Catalog) GetDataset(id string) (*models.Dataset, bool) {
	for _, d := range c.current().datasets {
		if d.ID == id {
			d := cloneDataset(d)
			return &d, true
		}
	}
	return nil, false
}

// ListDataSources returns every data source.
func (c *Catalog) ListDataSources() []models.DataSource {
	s := c.current()
	out := make([]models.DataSource, len(s.datasources))
	copy(out, s.datasources)
	return out
}

// GetDataSource returns a data source by id.
func (c *Catalog) GetDataSource(id string) (*models.DataSource, bool) {
	for _, d := range c.current().datasources {
		if d.ID == id {
			d := d
			return &d, true
		}
	}
	return nil, false
}

// MoveReport moves a report to another existing workspace.
func (c *Catalog) MoveReport(reportID, workspaceID string) (*models.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, r := range c.snap.reports {
		if r.ID == reportID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	found := false
	for _, w := range c.snap.workspaces {
		if w.ID == workspaceID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	if c.snap.reports[idx].WorkspaceID == workspaceID {
		return nil, fmt.Errorf("report already in workspace %s: %w", workspaceID, ErrInvalidMove)
	}

	next := *c.snap
	next.reports = make([]models.Report, len(c.snap.reports))
	copy(next.reports, c.snap.reports)
	next.reports[idx].WorkspaceID = workspaceID
	next.reports[idx].ModifiedAt = time.Now().UTC()
	c.snap = &next

	moved := cloneReport(next.reports[idx])
	return &moved, nil
}

// Migration describes the target of a data source migration.
type Migration struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	Gateway  string `json:"gateway,omitempty"`
}

// MigrateDataSource repoints a data source. The migration completes
// synchronously: the status passes through pending and ends as migrated.
func (c *Catalog) MigrateDataSource(id string, m Migration) (*models.DataSource, error) {
	if strings.TrimSpace(m.Type) == "" || strings.TrimSpace(m.Host) == "" {
		return nil, fmt.Errorf("type and host are required: %w", ErrInvalidMigration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, d := range c.snap.datasources {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("datasource %s: %w", id, ErrNotFound)
	}

	next := *c.snap
	next.datasources = make([]models.DataSource, len(c.snap.datasources))
	copy(next.datasources, c.snap.datasources)

	ds := &next.datasources[idx]
	ds.MigrationStatus = models.MigrationPending
	ds.Type = strings.ToLower(strings.TrimSpace(m.Type))
	ds.Host = strings.TrimSpace(m.Host)
	if m.Port > 0 {
		ds.Port = m.Port
	}
	if m.Database != "" {
		ds.Database = m.Database
	}
	if m.Gateway != "" {
		ds.Gateway = m.Gateway
	}
	ds.MigrationStatus = models.MigrationMigrated
	ds.MigratedAt = time.Now().UTC()
	c.snap = &next

	out := *ds
	return &out, nil
}

// Counts returns the number of workspaces, reports, datasets and data sources.
func (c *Catalog) Counts() (workspaces, reports, datasets, datasources int) {
	s := c.current()
	return len(s.workspaces), len(s.reports), len(s.datasets), len(s.datasources)
}

func cloneReport(r models.Report) models.Report {
	r.DatasetIDs = append([]string(nil), r.DatasetIDs...)
	return r
}

func cloneDataset(d models.Dataset) models.Dataset {
	d.KPIs = append([]string(nil), d.KPIs...)
	d.Dimensions = append([]string(nil), d.Dimensions...)
	return d
}
