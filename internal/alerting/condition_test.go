package alerting

import "testing"

func TestCompileCondition(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{"numeric comparison", `value > 1000`, false},
		{"values map", `values["Revenue"] < 50000`, false},
		{"kpi name", `kpi == "Revenue" && value < 10`, false},
		{"dimension membership", `"Region" in dimensions`, false},
		{"empty", `   `, true},
		{"invalid syntax", `value >`, true},
		{"non-bool result", `value + 1`, true},
		{"undefined variable", `threshold > 1`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCondition(tt.expression)
			if (err != nil) != tt.wantErr {
				t.Errorf("CompileCondition(%q) error = %v, wantErr %v", tt.expression, err, tt.wantErr)
			}
		})
	}
}

func TestCondition_Evaluate(t *testing.T) {
	obs := Observation{Values: []KPIValue{
		{DatasetID: "ds-sales", KPI: "Revenue", Dimensions: []string{"Region"}, Value: 1250},
		{DatasetID: "ds-sales", KPI: "Orders", Dimensions: []string{"Region"}, Value: 42},
	}}

	tests := []struct {
		expression string
		want       bool
	}{
		{`value > 1000`, true},
		{`value > 2000`, false},
		{`values["Orders"] < 50`, true},
		{`dataset == "ds-sales" && kpi == "Revenue"`, true},
		{`"Product" in dimensions`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			c, err := CompileCondition(tt.expression)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := c.Evaluate(obs)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCondition_EvaluateEmptyObservation(t *testing.T) {
	c, err := CompileCondition(`value == 0 && kpi == ""`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := c.Evaluate(Observation{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got {
		t.Error("expected zero values for an empty observation")
	}
}
