package powerbi

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Client resolves the current value of a KPI.
type Client interface {
	QueryKPI(ctx context.Context, datasetID, kpi string, dimensions []string) (float64, error)
}

// MockClient derives stable pseudo-random KPI values from the catalog.
// The same dataset, KPI and dimension set always yield the same value unless
// an override is set.
type MockClient struct {
	catalog *Catalog

	mu        sync.RWMutex
	overrides map[string]float64
	failures  map[string]error
}

// NewMockClient creates a mock client backed by catalog.
func NewMockClient(catalog *Catalog) *MockClient {
	return &MockClient{
		catalog:   catalog,
		overrides: make(map[string]float64),
		failures:  make(map[string]error),
	}
}

// SetValue fixes the value returned for a dataset KPI regardless of dimensions.
func (m *MockClient) SetValue(datasetID, kpi string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[datasetID+"/"+kpi] = v
}

// SetError makes queries for a dataset KPI fail with err. A nil err clears it.
func (m *MockClient) SetError(datasetID, kpi string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, datasetID+"/"+kpi)
		return
	}
	m.failures[datasetID+"/"+kpi] = err
}

// QueryKPI implements Client.
func (m *MockClient) QueryKPI(ctx context.Context, datasetID, kpi string, dimensions []string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ds, ok := m.catalog.GetDataset(datasetID)
	if !ok {
		return 0, fmt.Errorf("dataset %s: %w", datasetID, ErrNotFound)
	}
	if !slices.Contains(ds.KPIs, kpi) {
		return 0, fmt.Errorf("kpi %q in dataset %s: %w", kpi, datasetID, ErrNotFound)
	}
	for _, dim := range dimensions {
		if !slices.Contains(ds.Dimensions, dim) {
			return 0, fmt.Errorf("dimension %q in dataset %s: %w", dim, datasetID, ErrNotFound)
		}
	}

	key := datasetID + "/" + kpi
	m.mu.RLock()
	failure := m.failures[key]
	v, overridden := m.overrides[key]
	m.mu.RUnlock()

	if failure != nil {
		return 0, failure
	}
	if overridden {
		return v, nil
	}
	return syntheticValue(datasetID, kpi, dimensions), nil
}

// syntheticValue maps the query onto [0, 10000) with two decimals.
func syntheticValue(datasetID, kpi string, dimensions []string) float64 {
	dims := append([]string(nil), dimensions...)
	sort.Strings(dims)

	h := fnv.New64a()
	h.Write([]byte(datasetID))
	h.Write([]byte{0})
	h.Write([]byte(kpi))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(dims, ",")))

	cents := h.Sum64() % 1_000_000
	return math.Round(float64(cents)) / 100
}
