package db

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Projection is an ordered projection document. Its methods never modify
// the receiver.
type Projection bson.D

// SelectProjection parses a field list such as "name,-age" or "name age"
// into a projection. A leading "-" excludes the field.
func SelectProjection(fields string) Projection {
	var out Projection
	for _, field := range strings.FieldsFunc(fields, isListSeparator) {
		if strings.HasPrefix(field, "-") {
			if field = field[1:]; field != "" {
				out = out.Set(field, 0)
			}
			continue
		}
		out = out.Set(strings.TrimPrefix(field, "+"), 1)
	}

	return out
}

func isListSeparator(r rune) bool { return r == ',' || r == ' ' }

// Get returns the value projected for the key.
func (p Projection) Get(key string) (any, bool) {
	for _, e := range p {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Has reports whether the key is in the projection.
func (p Projection) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set returns a copy of the projection with the key set to the value,
// keeping the key's position if it was already present.
func (p Projection) Set(key string, value any) Projection {
	out := p.copy()
	for idx := range out {
		if out[idx].Key == key {
			out[idx].Value = value
			return out
		}
	}

	return append(out, bson.E{Key: key, Value: value})
}

// Delete returns a copy of the projection without the key.
func (p Projection) Delete(key string) Projection {
	out := make(Projection, 0, len(p))
	for _, e := range p {
		if e.Key != key {
			out = append(out, e)
		}
	}

	return out
}

// Keys returns the projected keys in order.
func (p Projection) Keys() []string {
	out := make([]string, 0, len(p))
	for _, e := range p {
		out = append(out, e.Key)
	}
	return out
}

// Inclusive reports whether the projection lists fields to return rather
// than fields to remove. An _id exclusion alone does not make a projection
// exclusive.
func (p Projection) Inclusive() bool {
	for _, e := range p {
		if e.Key == "_id" {
			continue
		}
		if Included(e.Value) {
			return true
		}
	}
	return false
}

// String renders the projection in the select grammar.
func (p Projection) String() string {
	fields := make([]string, 0, len(p))
	for _, e := range p {
		if Included(e.Value) {
			fields = append(fields, e.Key)
		} else {
			fields = append(fields, "-"+e.Key)
		}
	}

	return strings.Join(fields, ",")
}

// Included reports whether a projection value includes its field. Zero
// numbers and false exclude; anything else, including operator documents,
// includes.
func Included(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}

func (p Projection) copy() Projection {
	if p == nil {
		return nil
	}
	return append(Projection{}, p...)
}

// Apply projects a document in memory the way the database would. The
// input document is not modified.
func (p Projection) Apply(doc map[string]any) map[string]any {
	if len(p) == 0 {
		return copyDocument(doc)
	}

	if !p.Inclusive() {
		out := copyDocument(doc)
		for _, e := range p {
			removePath(out, e.Key)
		}
		return out
	}

	var paths []string
	keepID := true
	for _, e := range p {
		if e.Key == "_id" {
			keepID = Included(e.Value)
			continue
		}
		if Included(e.Value) {
			paths = append(paths, e.Key)
		}
	}

	out := includePaths(doc, paths)
	if id, ok := doc["_id"]; ok && keepID {
		out["_id"] = id
	}

	return out
}

func includePaths(doc map[string]any, paths []string) map[string]any {
	var heads []string
	whole := map[string]bool{}
	nested := map[string][]string{}
	for _, path := range paths {
		head, tail, dotted := strings.Cut(path, ".")
		if _, seen := nested[head]; !seen && !whole[head] {
			heads = append(heads, head)
		}
		if dotted {
			nested[head] = append(nested[head], tail)
		} else {
			whole[head] = true
		}
	}

	out := map[string]any{}
	for _, head := range heads {
		val, ok := doc[head]
		if !ok {
			continue
		}
		if whole[head] {
			out[head] = copyValue(val)
			continue
		}
		if sub, ok := includeValue(val, nested[head]); ok {
			out[head] = sub
		}
	}

	return out
}

func includeValue(val any, paths []string) (any, bool) {
	switch v := val.(type) {
	case map[string]any:
		return includePaths(v, paths), true
	case []any:
		out := []any{}
		for _, elem := range v {
			if sub, ok := includeValue(elem, paths); ok {
				out = append(out, sub)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func removePath(doc map[string]any, path string) {
	head, tail, dotted := strings.Cut(path, ".")
	if !dotted {
		delete(doc, head)
		return
	}

	switch v := doc[head].(type) {
	case map[string]any:
		removePath(v, tail)
	case []any:
		for _, elem := range v {
			if sub, ok := elem.(map[string]any); ok {
				removePath(sub, tail)
			}
		}
	}
}

func copyDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return copyDocument(v)
	case []any:
		out := make([]any, len(v))
		for idx := range v {
			out[idx] = copyValue(v[idx])
		}
		return out
	default:
		return val
	}
}
