package access

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// FieldVisibility declares the dotted field paths of a model that are
// hidden below a given access level.
type FieldVisibility struct {
	Model     string   `yaml:"model" json:"model"`
	Private   []string `yaml:"private" json:"private"`
	Protected []string `yaml:"protected" json:"protected"`
}

// Excluded returns the paths that must be removed from documents served at
// the given access level. Public access excludes both private and
// protected paths, protected access excludes private paths, and private
// access excludes nothing.
func (v FieldVisibility) Excluded(level Level) []string {
	switch level {
	case Private:
		return nil
	case Protected:
		return append([]string{}, v.Private...)
	default:
		out := make([]string, 0, len(v.Private)+len(v.Protected))
		out = append(out, v.Private...)
		return append(out, v.Protected...)
	}
}

func (v FieldVisibility) clone() FieldVisibility {
	return FieldVisibility{
		Model:     v.Model,
		Private:   append([]string{}, v.Private...),
		Protected: append([]string{}, v.Protected...),
	}
}

// Registry maps model names to their declared field visibility. Entries
// are expected to be registered at setup; re-registering a model replaces
// its entry atomically.
type Registry struct {
	mu     sync.RWMutex
	models map[string]FieldVisibility
}

// NewRegistry returns an empty visibility registry.
func NewRegistry() *Registry {
	return &Registry{models: map[string]FieldVisibility{}}
}

// Register stores a copy of the model's visibility declaration.
func (r *Registry) Register(v FieldVisibility) error {
	if v.Model == "" {
		return errors.New("cannot register field visibility without a model name")
	}

	entry := v.clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[v.Model] = entry

	return nil
}

// Get returns a copy of the visibility declared for the model.
func (r *Registry) Get(model string) (FieldVisibility, bool) {
	r.mu.RLock()
	v, ok := r.models[model]
	r.mu.RUnlock()
	if !ok {
		return FieldVisibility{}, false
	}

	return v.clone(), true
}

// Excluded returns the paths excluded for the model at the access level.
// The second return value is false when the model has no declaration.
func (r *Registry) Excluded(model string, level Level) ([]string, bool) {
	r.mu.RLock()
	v, ok := r.models[model]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	return v.Excluded(level), true
}

// Models returns the sorted names of all models with a declaration.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.models))
	for name := range r.models {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}
