package schema

import (
	"strconv"
	"strings"
)

// Type is the declared value type of a schema field.
type Type string

const (
	TypeString   Type = "string"
	TypeNumber   Type = "number"
	TypeBoolean  Type = "boolean"
	TypeDate     Type = "date"
	TypeObjectID Type = "objectid"
	TypeObject   Type = "object"
	TypeMixed    Type = "mixed"
)

// Validate reports whether the type is one of the known field types.
func (t Type) Validate() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeObjectID, TypeObject, TypeMixed:
		return true
	default:
		return false
	}
}

// IDField is the key of the primary key field of every document.
const IDField = "_id"

// Field describes a single key of a document.
type Field struct {
	Name string
	Type Type
	// Array is true when the key holds a list of values of Type.
	Array bool
	// Ref names the model referenced by the field's values, if any.
	Ref string
	// Fields holds the sub-document schema for object fields.
	Fields map[string]*Field
}

// Schema describes the documents of one model.
type Schema struct {
	Model      string
	Collection string
	Fields     map[string]*Field
}

// PathKind classifies what a dotted path resolves to.
type PathKind string

const (
	PathScalar    PathKind = "scalar"
	PathReference PathKind = "reference"
	PathArray     PathKind = "array"
)

// PathInfo is the result of resolving a dotted path against a schema.
type PathInfo struct {
	Kind PathKind
	// IsArray is true when the path addresses an array itself or crosses
	// an array of sub-documents on the way to the leaf.
	IsArray bool
	// Ref is the referenced model when Kind is PathReference.
	Ref string
	// Type is the declared type of the leaf field.
	Type Type
	// Field is the leaf field definition.
	Field *Field
}

// Reflector answers questions about model schemas by dotted path.
type Reflector interface {
	// ResolvePath resolves a dotted path within the named model. The
	// second return value is false when the model or path is unknown.
	ResolvePath(model, path string) (PathInfo, bool)
}

// Lookup returns the field addressed by a dotted path. Numeric segments
// following an array field are treated as element indexes.
func (s *Schema) Lookup(path string) (*Field, bool, bool) {
	if s == nil || path == "" {
		return nil, false, false
	}

	var (
		current  = s.Fields
		field    *Field
		crossed  bool
		segments = strings.Split(path, ".")
	)

	for idx, segment := range segments {
		if field != nil && field.Array && isIndex(segment) {
			if idx == len(segments)-1 {
				return &Field{Name: field.Name, Type: field.Type, Ref: field.Ref, Fields: field.Fields}, true, true
			}
			continue
		}
		if current == nil {
			return nil, false, false
		}

		next, ok := current[segment]
		if !ok {
			return nil, false, false
		}
		if idx < len(segments)-1 && next.Array {
			crossed = true
		}

		field = next
		current = next.Fields
	}

	return field, crossed, true
}

// Resolve describes the field addressed by a dotted path.
func (s *Schema) Resolve(path string) (PathInfo, bool) {
	field, crossed, ok := s.Lookup(path)
	if !ok {
		return PathInfo{}, false
	}

	info := PathInfo{
		Kind:    PathScalar,
		IsArray: crossed || field.Array,
		Ref:     field.Ref,
		Type:    field.Type,
		Field:   field,
	}
	switch {
	case field.Ref != "":
		info.Kind = PathReference
	case field.Array:
		info.Kind = PathArray
	}

	return info, true
}

func isIndex(segment string) bool {
	_, err := strconv.Atoi(segment)
	return err == nil
}
