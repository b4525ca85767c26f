package provider

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/ystore/internal/yerr"
)

// docFilter wraps a compiled CEL program evaluated per enumerated document.
// When disabled, Eval always returns true.
type docFilter struct {
	prog    cel.Program
	enabled bool
}

func newDocFilter(expr string) (docFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return docFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("clock", cel.IntType),
	)
	if err != nil {
		return docFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return docFilter{}, yerr.Validationf("filter expression: %v", iss.Err())
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return docFilter{}, yerr.Validationf("filter expression: %v", iss2.Err())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return docFilter{}, err
	}
	return docFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against one document marker.
func (f docFilter) Eval(name string, clock uint32) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"name":  name,
		"clock": int64(clock),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
