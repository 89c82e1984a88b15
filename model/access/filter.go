package access

import (
	"reflect"
	"strings"

	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// FilterOptions controls how FilterObject shapes a resource.
type FilterOptions struct {
	// Access is the level the resource is served at. An empty level is
	// treated as public.
	Access Level
	// Populate lists the dotted paths that were populated with referenced
	// documents.
	Populate []string
	// PopulateModels names the model of the documents populated at a
	// path, overriding the reference declared in the schema.
	PopulateModels map[string]string
	// Excluded, when non-nil, replaces the registry's exclusion list for
	// the top level model.
	Excluded []string
}

// Filter removes fields from documents according to the visibility
// declared for their model and for every populated model they embed.
type Filter struct {
	visibility *Registry
	schemas    schema.Reflector
}

// NewFilter returns a filter reading declarations from the visibility
// registry and resolving populated paths with the reflector.
func NewFilter(visibility *Registry, schemas schema.Reflector) *Filter {
	return &Filter{
		visibility: visibility,
		schemas:    schemas,
	}
}

// FilterObject returns a filtered copy of a document or a list of
// documents of the model. The resource itself is never modified. Paths
// that do not exist in a document, populated paths that do not resolve to
// a reference, and referenced models without a declaration are skipped.
func (f *Filter) FilterObject(model string, resource any, opts FilterOptions) (any, error) {
	if opts.Access == "" {
		opts.Access = Public
	}
	if err := opts.Access.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	plain, err := Plainify(resource)
	if err != nil {
		return nil, errors.Wrapf(err, "normalizing '%s' resource", model)
	}

	excluded := opts.Excluded
	if excluded == nil && f.visibility != nil {
		excluded, _ = f.visibility.Excluded(model, opts.Access)
	}

	walk(plain, func(doc map[string]any) {
		removePaths(doc, excluded)
		for _, path := range opts.Populate {
			f.filterPopulated(model, doc, path, opts.PopulateModels[path], opts.Access)
		}
	})

	return plain, nil
}

// FilterDocuments filters a list of documents, returning them as maps.
func (f *Filter) FilterDocuments(model string, docs []map[string]any, opts FilterOptions) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		filtered, err := f.FilterObject(model, doc, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, filtered.(map[string]any))
	}

	return out, nil
}

// filterPopulated filters the documents populated at the path with the
// exclusions of the target model, or of the model the path references
// when no target is given.
func (f *Filter) filterPopulated(model string, doc map[string]any, path, target string, level Level) {
	if f.visibility == nil {
		return
	}

	if target == "" {
		if f.schemas == nil {
			return
		}
		info, ok := f.schemas.ResolvePath(model, path)
		if !ok || info.Kind != schema.PathReference || info.Ref == "" {
			return
		}
		target = info.Ref
	}
	excluded, ok := f.visibility.Excluded(target, level)
	if !ok || len(excluded) == 0 {
		return
	}

	head, rest, nested := strings.Cut(path, ".")
	child, ok := doc[head]
	if !ok {
		return
	}
	if nested {
		prefixed := make([]string, 0, len(excluded))
		for _, p := range excluded {
			prefixed = append(prefixed, rest+"."+p)
		}
		excluded = prefixed
	}

	walk(child, func(sub map[string]any) {
		removePaths(sub, excluded)
	})
}

// removePaths deletes every dotted path from the document in place.
// Dotted paths are grouped by their first segment and applied to the
// value under it, element-wise for arrays.
func removePaths(doc map[string]any, paths []string) {
	var heads []string
	nested := map[string][]string{}

	for _, path := range paths {
		head, tail, dotted := strings.Cut(path, ".")
		if !dotted {
			delete(doc, path)
			continue
		}
		if _, ok := nested[head]; !ok {
			heads = append(heads, head)
		}
		nested[head] = append(nested[head], tail)
	}

	for _, head := range heads {
		child, ok := doc[head]
		if !ok {
			continue
		}
		tails := nested[head]
		walk(child, func(sub map[string]any) {
			removePaths(sub, tails)
		})
	}
}

type shape int

const (
	shapeScalar shape = iota
	shapeObject
	shapeArray
)

func shapeOf(node any) shape {
	switch node.(type) {
	case map[string]any:
		return shapeObject
	case []any:
		return shapeArray
	default:
		return shapeScalar
	}
}

// walk calls visit on every object reachable from node without crossing
// an object boundary: node itself when it is an object, or each object
// element when it is an array (recursively for nested arrays). Scalars
// are left alone.
func walk(node any, visit func(map[string]any)) {
	switch shapeOf(node) {
	case shapeObject:
		visit(node.(map[string]any))
	case shapeArray:
		for _, elem := range node.([]any) {
			walk(elem, visit)
		}
	case shapeScalar:
	}
}

type populatePather interface {
	PopulatePath() string
}

type populateModeler interface {
	PopulateModel() string
}

// ParsePopulatePaths extracts the populated paths from any of the accepted
// populate forms: a comma or space separated string, a list of strings, a
// value with a PopulatePath method, a map with a "path" key, or a list of
// any of these. Duplicates are dropped and order is preserved.
func ParsePopulatePaths(populate any) []string {
	seen := map[string]bool{}
	var out []string
	collectPopulate(populate, func(path, _ string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		out = append(out, path)
	})

	return out
}

// ParsePopulateModels returns the explicit target model of every populated
// path that names one, from the same forms as ParsePopulatePaths. When a
// path is given more than once its first form decides.
func ParsePopulateModels(populate any) map[string]string {
	seen := map[string]bool{}
	out := map[string]string{}
	collectPopulate(populate, func(path, model string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		if model != "" {
			out[path] = model
		}
	})

	return out
}

func collectPopulate(populate any, add func(path, model string)) {
	switch val := populate.(type) {
	case nil:
	case string:
		for _, path := range strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ' ' }) {
			add(strings.TrimSpace(path), "")
		}
	case []string:
		for _, s := range val {
			collectPopulate(s, add)
		}
	case populatePather:
		model := ""
		if m, ok := val.(populateModeler); ok {
			model = m.PopulateModel()
		}
		add(val.PopulatePath(), model)
	case map[string]any:
		collectPopulateMap(val, add)
	case bson.M:
		collectPopulateMap(val, add)
	case []any:
		for _, elem := range val {
			collectPopulate(elem, add)
		}
	default:
		rv := reflect.ValueOf(populate)
		if rv.Kind() != reflect.Slice {
			return
		}
		for idx := 0; idx < rv.Len(); idx++ {
			collectPopulate(rv.Index(idx).Interface(), add)
		}
	}
}

func collectPopulateMap(directive map[string]any, add func(path, model string)) {
	path, _ := directive["path"].(string)
	model, _ := directive["model"].(string)
	add(strings.TrimSpace(path), model)
}
