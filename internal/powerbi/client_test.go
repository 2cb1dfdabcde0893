package powerbi

import (
	"context"
	"errors"
	"testing"
)

func TestMockClientDeterministic(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	client := NewMockClient(c)
	ctx := context.Background()

	a, err := client.QueryKPI(ctx, "ds-sales", "Revenue", []string{"Region", "Channel"})
	if err != nil {
		t.Fatalf("QueryKPI: %v", err)
	}
	b, _ := client.QueryKPI(ctx, "ds-sales", "Revenue", []string{"Channel", "Region"})
	if a != b {
		t.Errorf("dimension order changed value: %v vs %v", a, b)
	}
	if a < 0 || a >= 10000 {
		t.Errorf("value %v out of range", a)
	}

	other, _ := client.QueryKPI(ctx, "ds-sales", "Orders", []string{"Region", "Channel"})
	if other == a {
		t.Log("different KPIs produced the same value; acceptable but unlikely")
	}
}

func TestMockClientOverridesAndFailures(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	client := NewMockClient(c)
	ctx := context.Background()

	client.SetValue("ds-sales", "Revenue", 42)
	if v, err := client.QueryKPI(ctx, "ds-sales", "Revenue", []string{"Region"}); err != nil || v != 42 {
		t.Errorf("override = %v, %v; want 42", v, err)
	}

	boom := errors.New("gateway offline")
	client.SetError("ds-sales", "Revenue", boom)
	if _, err := client.QueryKPI(ctx, "ds-sales", "Revenue", nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	client.SetError("ds-sales", "Revenue", nil)
	if _, err := client.QueryKPI(ctx, "ds-sales", "Revenue", nil); err != nil {
		t.Errorf("error not cleared: %v", err)
	}
}

func TestMockClientValidatesAgainstCatalog(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	client := NewMockClient(c)
	ctx := context.Background()

	tests := []struct {
		name    string
		dataset string
		kpi     string
		dims    []string
	}{
		{"unknown dataset", "ds-missing", "Revenue", nil},
		{"unknown kpi", "ds-sales", "Headcount", nil},
		{"unknown dimension", "ds-sales", "Revenue", []string{"Warehouse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.QueryKPI(ctx, tt.dataset, tt.kpi, tt.dims); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := client.QueryKPI(cancelled, "ds-sales", "Revenue", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
