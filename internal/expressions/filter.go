package expressions

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/deskbot/pkg/schema"
)

// RecordScope is the data a filter expression sees for one record.
type RecordScope struct {
	Index    int
	Fields   map[string]any
	Code     any
	Quantity any
}

func (s RecordScope) data() map[string]any {
	return map[string]any{
		"record":   s.Fields,
		"code":     s.Code,
		"quantity": s.Quantity,
		"index":    s.Index,
	}
}

// compiler is implemented by engines that can check an expression up front.
type compiler interface {
	Compile(expression string) error
}

// Filter decides whether a record is processed. A false result marks the
// record as skipped.
type Filter struct {
	engine     Engine
	expression string
}

// NewFilter builds a filter on the named engine ("expr" or "cel"; empty means
// expr). The expression is compiled immediately so syntax errors surface as
// CONFIGURATION_ERROR before the run starts.
func NewFilter(engineName, expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "filter expression is empty")
	}

	var eng Engine
	switch strings.ToLower(strings.TrimSpace(engineName)) {
	case "", "expr":
		eng = NewExprEngine()
	case "cel":
		c, err := NewCELEngine()
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConfiguration, err.Error()).WithCause(err)
		}
		eng = c
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "unknown filter engine %q (want expr or cel)", engineName)
	}

	if c, ok := eng.(compiler); ok {
		if err := c.Compile(expression); err != nil {
			return nil, err
		}
	}
	return &Filter{engine: eng, expression: expression}, nil
}

// Expression returns the filter source.
func (f *Filter) Expression() string { return f.expression }

// Engine returns the engine name.
func (f *Filter) Engine() string { return f.engine.Name() }

// Match evaluates the filter for one record. Non-boolean results are errors.
func (f *Filter) Match(ctx context.Context, scope RecordScope) (bool, error) {
	out, err := f.engine.Evaluate(ctx, f.expression, scope.data())
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"filter %q returned %s, want bool", f.expression, fmt.Sprintf("%T", out))
	}
	return b, nil
}
