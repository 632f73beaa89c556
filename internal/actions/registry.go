package actions

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rendis/deskbot/pkg/schema"
)

// Decoder builds a typed Action from its persisted form.
type Decoder func(def schema.StepDefinition, common Common) Action

type entry struct {
	decode      Decoder
	description string
}

// Registry maps action names to decoders. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Kind]entry),
	}
}

// Register adds a decoder. Returns error on duplicate or empty kind.
func (r *Registry) Register(kind Kind, description string, decode Decoder) error {
	if decode == nil {
		return schema.NewError(schema.ErrCodeValidation, "decoder is nil")
	}
	if kind == "" {
		return schema.NewError(schema.ErrCodeValidation, "action kind is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[kind]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action %q already registered", kind)
	}
	r.entries[kind] = entry{decode: decode, description: description}
	return nil
}

// Has checks if a kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[kind]
	return ok
}

// List returns all registered kinds, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.entries))
	for k, e := range r.entries {
		infos = append(infos, Info{Kind: k, Description: e.description})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Kind < infos[j].Kind
	})
	return infos
}

// Decode converts one persisted step. Unregistered kinds become Unknown.
func (r *Registry) Decode(def schema.StepDefinition) Action {
	kind := Kind(strings.TrimSpace(def.Action))
	common := Common{
		Name:      def.Name,
		WaitAfter: positiveDuration(def.WaitAfter),
	}
	if common.Name == "" {
		common.Name = string(kind)
	}

	r.mu.RLock()
	e, ok := r.entries[kind]
	r.mu.RUnlock()

	if !ok {
		return Unknown{Common: common, Type: string(kind)}
	}
	return e.decode(def, common)
}

// DecodeAll converts a step list, preserving order.
func (r *Registry) DecodeAll(defs []schema.StepDefinition) []Action {
	out := make([]Action, 0, len(defs))
	for _, def := range defs {
		out = append(out, r.Decode(def))
	}
	return out
}

func positiveDuration(s schema.Seconds) time.Duration {
	if !s.Valid || s.Value <= 0 {
		return 0
	}
	return secondsToDuration(s.Value)
}

func secondsToDuration(v float64) time.Duration {
	return schema.DurationOf(v)
}
