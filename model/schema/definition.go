package schema

import (
	"sort"
	"strings"

	"github.com/mongodb/anser/bsonutil"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// Definition is the declarative form of a field, as read from the service
// settings.
type Definition struct {
	Type   Type                  `yaml:"type" json:"type"`
	Array  bool                  `yaml:"array" json:"array"`
	Ref    string                `yaml:"ref" json:"ref"`
	Fields map[string]Definition `yaml:"fields" json:"fields"`
}

// FromDefinition builds a schema from declared field definitions. Fields
// with a reference default to the objectid type and fields with nested
// definitions default to the object type. An _id field is added when the
// definitions do not declare one, typed by idType (objectid when empty).
func FromDefinition(model, collection string, idType Type, defs map[string]Definition) (*Schema, error) {
	if model == "" {
		return nil, errors.New("model name cannot be empty")
	}

	fields, err := buildFields("", defs)
	if err != nil {
		return nil, errors.Wrapf(err, "building schema for model '%s'", model)
	}
	if _, ok := fields[IDField]; !ok {
		if idType == "" {
			idType = TypeObjectID
		}
		if !idType.Validate() {
			return nil, errors.Errorf("invalid id type '%s' for model '%s'", idType, model)
		}
		fields[IDField] = &Field{Name: IDField, Type: idType}
	}

	return &Schema{
		Model:      model,
		Collection: collection,
		Fields:     fields,
	}, nil
}

func buildFields(prefix string, defs map[string]Definition) (map[string]*Field, error) {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	catcher := grip.NewBasicCatcher()
	fields := make(map[string]*Field, len(defs))
	for _, name := range names {
		def := defs[name]
		path := name
		if prefix != "" {
			path = bsonutil.GetDottedKeyName(prefix, name)
		}

		if name == "" || strings.Contains(name, ".") {
			catcher.Errorf("invalid field name '%s'", path)
			continue
		}

		field := &Field{
			Name:  name,
			Type:  def.Type,
			Array: def.Array,
			Ref:   def.Ref,
		}
		if len(def.Fields) > 0 {
			sub, err := buildFields(path, def.Fields)
			if err != nil {
				catcher.Add(err)
				continue
			}
			field.Fields = sub
			if field.Type == "" {
				field.Type = TypeObject
			}
		}
		if field.Type == "" && field.Ref != "" {
			field.Type = TypeObjectID
		}
		if field.Type == "" {
			field.Type = TypeMixed
		}

		catcher.ErrorfWhen(!field.Type.Validate(), "field '%s' has invalid type '%s'", path, field.Type)
		catcher.ErrorfWhen(field.Ref != "" && len(field.Fields) > 0, "reference field '%s' cannot declare sub-fields", path)

		fields[name] = field
	}

	return fields, catcher.Resolve()
}
