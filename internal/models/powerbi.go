package models

import "time"

// Workspace mirrors a Power BI workspace.
type Workspace struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Capacity    string `json:"capacity,omitempty" yaml:"capacity"`
	Owner       string `json:"owner,omitempty" yaml:"owner"`
}

// Report mirrors a Power BI report.
type Report struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Slug        string    `json:"slug" yaml:"-"`
	WorkspaceID string    `json:"workspace_id" yaml:"workspace_id"`
	DatasetIDs  []string  `json:"dataset_ids" yaml:"datasets"`
	Owner       string    `json:"owner,omitempty" yaml:"owner"`
	WebURL      string    `json:"web_url,omitempty" yaml:"web_url"`
	ModifiedAt  time.Time `json:"modified_at" yaml:"modified_at"`
}

// Dataset mirrors a Power BI dataset with the KPIs and dimensions alerts can select.
type Dataset struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	DataSourceID string   `json:"datasource_id,omitempty" yaml:"datasource"`
	KPIs         []string `json:"kpis" yaml:"kpis"`
	Dimensions   []string `json:"dimensions" yaml:"dimensions"`
}

// MigrationStatus tracks a data source migration.
type MigrationStatus string

const (
	MigrationNone     MigrationStatus = "none"
	MigrationPending  MigrationStatus = "pending"
	MigrationMigrated MigrationStatus = "migrated"
	MigrationFailed   MigrationStatus = "failed"
)

// DataSource mirrors a Power BI data source.
type DataSource struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Type            string          `json:"type" yaml:"type"`
	Host            string          `json:"host,omitempty" yaml:"host"`
	Port            int             `json:"port,omitempty" yaml:"port"`
	Database        string          `json:"database,omitempty" yaml:"database"`
	Gateway         string          `json:"gateway,omitempty" yaml:"gateway"`
	MigrationStatus MigrationStatus `json:"migration_status" yaml:"migration_status"`
	MigratedAt      time.Time       `json:"migrated_at" yaml:"-"`
}
