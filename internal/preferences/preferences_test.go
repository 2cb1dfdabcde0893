package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]json.RawMessage)}
}

func (m *memStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, store
}

func TestOnboarding(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	onboarded, err := svc.Onboarded(ctx)
	if err != nil {
		t.Fatalf("Onboarded failed: %v", err)
	}
	if onboarded {
		t.Error("missing flag should read as false")
	}

	if err := svc.SetOnboarded(ctx, true); err != nil {
		t.Fatalf("SetOnboarded failed: %v", err)
	}
	if onboarded, _ := svc.Onboarded(ctx); !onboarded {
		t.Error("flag should be set")
	}
}

func TestSettings(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	settings, err := svc.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if len(settings) != 0 {
		t.Errorf("default settings = %v, want empty", settings)
	}

	updated, err := svc.UpdateSettings(ctx, models.Settings{
		"companyName":      "Contoso",
		"theme":            "dark",
		"defaultFrequency": "15m",
		"notifications":    map[string]any{"email": true, "digest": "daily"},
		"customFlag":       true,
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if updated["theme"] != "dark" {
		t.Errorf("theme = %v", updated["theme"])
	}
	if _, ok := store.data[KeySettings]; !ok {
		t.Error("settings should be persisted")
	}

	got, _ := svc.Settings(ctx)
	if got["companyName"] != "Contoso" || got["customFlag"] != true {
		t.Errorf("settings = %v", got)
	}
}

func TestSettings_SchemaViolations(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		settings models.Settings
	}{
		{"bad theme", models.Settings{"theme": "neon"}},
		{"negative cost", models.Settings{"costPerQuery": -1}},
		{"bad frequency", models.Settings{"defaultFrequency": "soon"}},
		{"unknown notification key", models.Settings{"notifications": map[string]any{"pager": true}}},
		{"wrong type", models.Settings{"companyName": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateSettings(ctx, tt.settings)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Key != KeySettings {
				t.Errorf("key = %q, want %q", verr.Key, KeySettings)
			}
		})
	}
	if _, ok := store.data[KeySettings]; ok {
		t.Error("invalid settings must not be persisted")
	}
}

func TestClients(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.AddClient(ctx, models.AdminClient{Name: " Fabrikam ", Email: "it@fabrikam.com", Plan: "pro", Active: true})
	if err != nil {
		t.Fatalf("AddClient failed: %v", err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		t.Errorf("id and created_at should be assigned: %+v", c)
	}
	if c.Name != "Fabrikam" {
		t.Errorf("name = %q, want trimmed", c.Name)
	}

	if _, err := svc.AddClient(ctx, models.AdminClient{Name: "Dup", Email: "IT@fabrikam.com"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}

	second, err := svc.AddClient(ctx, models.AdminClient{Name: "Northwind", Email: "ops@northwind.com"})
	if err != nil {
		t.Fatalf("AddClient failed: %v", err)
	}
	if second.Plan != "free" {
		t.Errorf("default plan = %q, want free", second.Plan)
	}

	clients, _ := svc.Clients(ctx)
	if len(clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(clients))
	}

	if err := svc.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}
	if err := svc.DeleteClient(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	clients, _ = svc.Clients(ctx)
	if len(clients) != 1 || clients[0].Name != "Northwind" {
		t.Errorf("clients after delete = %+v", clients)
	}
}

func TestClients_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []models.AdminClient{
		{Name: "", Email: "a@example.com"},
		{Name: "No mail", Email: "not-an-email"},
		{Name: "Bad plan", Email: "b@example.com", Plan: "platinum"},
	}
	for _, c := range tests {
		var verr *ValidationError
		if _, err := svc.AddClient(ctx, c); !errors.As(err, &verr) {
			t.Errorf("AddClient(%+v) err = %v, want *ValidationError", c, err)
		}
	}
	if clients, _ := svc.Clients(ctx); len(clients) != 0 {
		t.Errorf("invalid clients were stored: %+v", clients)
	}
}

func TestTables(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	table := models.CatalogTable{
		Description: "Daily sales facts",
		Owner:       "finance",
		Columns: []models.CatalogColumn{
			{Name: "order_id", Type: "integer"},
			{Name: "amount", Type: "decimal", Description: "Net amount"},
		},
	}
	got, err := svc.PutTable(ctx, "fact_sales", table)
	if err != nil {
		t.Fatalf("PutTable failed: %v", err)
	}
	if got.Name != "fact_sales" || got.UpdatedAt.IsZero() {
		t.Errorf("table = %+v", got)
	}

	table.Columns = append(table.Columns, models.CatalogColumn{Name: "region", Type: "string"})
	if _, err := svc.PutTable(ctx, "fact_sales", table); err != nil {
		t.Fatalf("replace table: %v", err)
	}
	tables, _ := svc.Tables(ctx)
	if len(tables) != 1 || len(tables[0].Columns) != 3 {
		t.Errorf("tables = %+v, want one table with 3 columns", tables)
	}

	if err := svc.DeleteTable(ctx, "fact_sales"); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}
	if err := svc.DeleteTable(ctx, "fact_sales"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTables_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		table models.CatalogTable
	}{
		{"bad-name!", models.CatalogTable{Columns: []models.CatalogColumn{{Name: "id", Type: "integer"}}}},
		{"no_columns", models.CatalogTable{}},
		{"bad_type", models.CatalogTable{Columns: []models.CatalogColumn{{Name: "id", Type: "uuid"}}}},
	}
	for _, tt := range tests {
		var verr *ValidationError
		if _, err := svc.PutTable(ctx, tt.name, tt.table); !errors.As(err, &verr) {
			t.Errorf("PutTable(%s) err = %v, want *ValidationError", tt.name, err)
		}
	}
}
