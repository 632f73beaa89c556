package expressions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/deskbot/pkg/schema"
)

// JQ runs jq programs over run history for `deskbot history --jq` and the
// deskbot.history tool. Programs are compiled once per source text.
type JQ struct {
	mu    sync.Mutex
	cache map[string]*gojq.Code
}

// NewJQ creates a JQ with an empty program cache.
func NewJQ() *JQ {
	return &JQ{cache: make(map[string]*gojq.Code)}
}

// Query applies program to v as it would be printed as JSON. One output is
// returned as is, several as []any, none as nil.
func (q *JQ) Query(ctx context.Context, program string, v any) (any, error) {
	code, err := q.compile(program)
	if err != nil {
		return nil, err
	}
	doc, err := asJSON(v)
	if err != nil {
		return nil, err
	}

	var out []any
	iter := code.RunWithContext(ctx, doc)
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExpression, "jq %q: %s", program, err.Error()).
				WithCause(err)
		}
		out = append(out, val)
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

func (q *JQ) compile(program string) (*gojq.Code, error) {
	if program == "" {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "empty jq program")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if code, ok := q.cache[program]; ok {
		return code, nil
	}

	parsed, err := gojq.Parse(program)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "invalid jq program %q: %s", program, err.Error()).
			WithCause(err)
	}
	// History output must not leak the environment of the machine it runs on.
	code, err := gojq.Compile(parsed, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "invalid jq program %q: %s", program, err.Error()).
			WithCause(err)
	}
	q.cache[program] = code
	return code, nil
}

// asJSON turns v into the maps, slices and float64s gojq works on, using the
// same json tags the history output is printed with.
func asJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return doc, nil
}
