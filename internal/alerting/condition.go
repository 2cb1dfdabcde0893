package alerting

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Observation is what one evaluation sees: the KPI values resolved for
// every dataset selection of an alert, in selection order.
type Observation struct {
	Values []KPIValue
}

// KPIValue is one resolved KPI.
type KPIValue struct {
	DatasetID  string
	KPI        string
	Dimensions []string
	Value      float64
}

// Primary returns the first value, or zero when nothing was resolved.
func (o Observation) Primary() KPIValue {
	if len(o.Values) == 0 {
		return KPIValue{}
	}
	return o.Values[0]
}

// Condition is a compiled boolean expression over an Observation.
// Syntax is expr-lang: value > 1000 && values["Revenue"] < 50000
type Condition struct {
	expression string
	program    *vm.Program
}

// CompileCondition compiles expression with type checking.
func CompileCondition(expression string) (*Condition, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("condition is empty")
	}
	program, err := expr.Compile(expression,
		expr.Env(sampleEnv()),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	return &Condition{expression: expression, program: program}, nil
}

// Evaluate runs the condition against obs.
func (c *Condition) Evaluate(obs Observation) (bool, error) {
	result, err := expr.Run(c.program, envFor(obs))
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	triggered, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return bool: got %T", result)
	}
	return triggered, nil
}

// Expression returns the source text.
func (c *Condition) Expression() string {
	return c.expression
}

func sampleEnv() map[string]any {
	return map[string]any{
		"value":      0.0,
		"values":     map[string]float64{},
		"kpi":        "",
		"dataset":    "",
		"dimensions": []string{},
	}
}

func envFor(obs Observation) map[string]any {
	values := make(map[string]float64, len(obs.Values))
	for _, v := range obs.Values {
		if _, seen := values[v.KPI]; !seen {
			values[v.KPI] = v.Value
		}
	}
	p := obs.Primary()
	dims := p.Dimensions
	if dims == nil {
		dims = []string{}
	}
	return map[string]any{
		"value":      p.Value,
		"values":     values,
		"kpi":        p.KPI,
		"dataset":    p.DatasetID,
		"dimensions": dims,
	}
}
