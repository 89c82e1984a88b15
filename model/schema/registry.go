package schema

import (
	"sort"
	"sync"

	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
)

// Registry holds the schemas of every registered model. It implements
// Reflector.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*Schema{}}
}

// Register adds or replaces the schema of a model. Schemas must not be
// modified after registration.
func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return errors.New("cannot register a nil schema")
	}
	if s.Model == "" {
		return errors.New("cannot register a schema without a model name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Model] = s

	return nil
}

// Get returns the schema of a model.
func (r *Registry) Get(model string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[model]
	return s, ok
}

// Models returns the sorted names of all registered models.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// ResolvePath implements Reflector.
func (r *Registry) ResolvePath(model, path string) (PathInfo, bool) {
	s, ok := r.Get(model)
	if !ok {
		return PathInfo{}, false
	}

	return s.Resolve(path)
}

// HasPath reports whether the dotted path is declared in the model's schema.
func (r *Registry) HasPath(model, path string) bool {
	_, ok := r.ResolvePath(model, path)
	return ok
}

// CheckReferences returns an error naming every reference field whose
// target model is not registered.
func (r *Registry) CheckReferences() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, s := range r.schemas {
		walkFields(s.Model, s.Fields, func(path string, f *Field) {
			if f.Ref == "" {
				return
			}
			if _, ok := r.schemas[f.Ref]; !ok {
				missing = append(missing, path+" -> "+f.Ref)
			}
		})
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	return errors.Errorf("unregistered reference targets: %v", missing)
}

func walkFields(prefix string, fields map[string]*Field, fn func(string, *Field)) {
	for name, f := range fields {
		path := bsonutil.GetDottedKeyName(prefix, name)
		fn(path, f)
		if len(f.Fields) > 0 {
			walkFields(path, f.Fields, fn)
		}
	}
}
