// Package preferences stores the onboarding flag, the settings blob, the
// admin console client list and the data catalog table definitions as JSON
// documents in the key-value store. Every write is checked against a JSON
// Schema before it is persisted.
package preferences

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// Keys of the documents managed by the service.
const (
	KeyOnboarded     = "onboarded"
	KeySettings      = "settings"
	KeyClients       = "admin.clients"
	KeyCatalogTables = "catalog.tables"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	KeySettings:      "schemas/settings.json",
	KeyClients:       "schemas/clients.json",
	KeyCatalogTables: "schemas/tables.json",
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError is returned when a document does not match its schema.
type ValidationError struct {
	Key string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Store is the key-value persistence the service needs.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
}

// Service manages preference documents.
type Service struct {
	kv      Store
	schemas map[string]*jsonschema.Schema

	// mu serializes read-modify-write cycles on list documents.
	mu sync.Mutex
}

// NewService compiles the embedded schemas.
func NewService(kv Store) (*Service, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	schemas := make(map[string]*jsonschema.Schema, len(schemaFiles))
	for key, file := range schemaFiles {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		if err := compiler.AddResource(file, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("load schema %s: %w", file, err)
		}
		compiled, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		schemas[key] = compiled
	}
	return &Service{kv: kv, schemas: schemas}, nil
}

// Onboarded reports whether onboarding was completed. A missing flag is false.
func (s *Service) Onboarded(ctx context.Context) (bool, error) {
	var v bool
	if _, err := s.load(ctx, KeyOnboarded, &v); err != nil {
		return false, err
	}
	return v, nil
}

// SetOnboarded stores the onboarding flag.
func (s *Service) SetOnboarded(ctx context.Context, onboarded bool) error {
	return s.save(ctx, KeyOnboarded, onboarded)
}

// Settings returns the settings blob, empty when never saved.
func (s *Service) Settings(ctx context.Context) (models.Settings, error) {
	settings := models.Settings{}
	if _, err := s.load(ctx, KeySettings, &settings); err != nil {
		return nil, err
	}
	if settings == nil {
		settings = models.Settings{}
	}
	return settings, nil
}

// UpdateSettings replaces the settings blob.
func (s *Service) UpdateSettings(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if settings == nil {
		settings = models.Settings{}
	}
	if err := s.save(ctx, KeySettings, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Clients returns the admin console client list ordered as stored.
func (s *Service) Clients(ctx context.Context) ([]models.AdminClient, error) {
	clients := []models.AdminClient{}
	if _, err := s.load(ctx, KeyClients, &clients); err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []models.AdminClient{}
	}
	return clients, nil
}

// AddClient appends a client. The id and creation time are assigned here and
// emails must be unique.
func (s *Service) AddClient(ctx context.Context, c models.AdminClient) (*models.AdminClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients, err := s.Clients(ctx)
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Plan == "" {
		c.Plan = "free"
	}
	for _, existing := range clients {
		if strings.EqualFold(existing.Email, c.Email) {
			return nil, fmt.Errorf("client with email %s: %w", c.Email, ErrConflict)
		}
	}
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	clients = append(clients, c)
	if err := s.save(ctx, KeyClients, clients); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteClient removes a client by id.
func (s *Service) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients, err := s.Clients(ctx)
	if err != nil {
		return err
	}
	out := clients[:0]
	for _, c := range clients {
		if c.ID != id {
			out = append(out, c)
		}
	}
	if len(out) == len(clients) {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return s.save(ctx, KeyClients, out)
}

// Tables returns the data catalog table definitions.
func (s *Service) Tables(ctx context.Context) ([]models.CatalogTable, error) {
	tables := []models.CatalogTable{}
	if _, err := s.load(ctx, KeyCatalogTables, &tables); err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []models.CatalogTable{}
	}
	return tables, nil
}

// PutTable creates or replaces the table called name.
func (s *Service) PutTable(ctx context.Context, name string, table models.CatalogTable) (*models.CatalogTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	table.Name = name
	table.UpdatedAt = time.Now().UTC()

	replaced := false
	for i := range tables {
		if tables[i].Name == name {
			tables[i] = table
			replaced = true
			break
		}
	}
	if !replaced {
		tables = append(tables, table)
	}
	if err := s.save(ctx, KeyCatalogTables, tables); err != nil {
		return nil, err
	}
	return &table, nil
}

// DeleteTable removes the table called name.
func (s *Service) DeleteTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	out := tables[:0]
	for _, t := range tables {
		if t.Name != name {
			out = append(out, t)
		}
	}
	if len(out) == len(tables) {
		return fmt.Errorf("table %s: %w", name, ErrNotFound)
	}
	return s.save(ctx, KeyCatalogTables, out)
}

// load decodes the document at key into v and reports whether it existed.
func (s *Service) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// save validates v against the schema of key, if any, and persists it.
func (s *Service) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if schema, ok := s.schemas[key]; ok {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("normalize %s: %w", key, err)
		}
		if err := schema.Validate(doc); err != nil {
			return &ValidationError{Key: key, Err: err}
		}
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
