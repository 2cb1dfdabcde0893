package models

import "time"

// AdminClient is an entry of the admin console client list.
type AdminClient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogColumn is one column of a data catalog table definition.
type CatalogColumn struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// CatalogTable is a data catalog table definition.
type CatalogTable struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	Columns     []CatalogColumn `json:"columns"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Settings is the free-form settings blob.
type Settings map[string]any
