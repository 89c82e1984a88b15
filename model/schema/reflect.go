package schema

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefTag is the struct tag naming the model a field references.
const RefTag = "ref"

var (
	timeType     = reflect.TypeOf(time.Time{})
	objectIDType = reflect.TypeOf(primitive.ObjectID{})
	dateTimeType = reflect.TypeOf(primitive.DateTime(0))
)

// FromStruct builds a schema from the bson tags of a struct value. Fields
// tagged with `ref:"Model"` are references to that model; nested structs
// become sub-documents and slices become arrays.
func FromStruct(model, collection string, v any) (*Schema, error) {
	if model == "" {
		return nil, errors.New("model name cannot be empty")
	}

	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("schema for model '%s' must be built from a struct, not %T", model, v)
	}

	fields := map[string]*Field{}
	structFields(t, fields, map[reflect.Type]bool{})
	if _, ok := fields[IDField]; !ok {
		fields[IDField] = &Field{Name: IDField, Type: TypeObjectID}
	}

	return &Schema{
		Model:      model,
		Collection: collection,
		Fields:     fields,
	}, nil
}

func structFields(t reflect.Type, out map[string]*Field, seen map[reflect.Type]bool) {
	if seen[t] {
		return
	}
	seen[t] = true
	defer delete(seen, t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		name, inline, skip := bsonKey(sf)
		if skip {
			continue
		}

		ft := sf.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if inline && ft.Kind() == reflect.Struct {
			structFields(ft, out, seen)
			continue
		}

		field := &Field{Name: name, Ref: sf.Tag.Get(RefTag)}
		if (ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array) && ft.Elem().Kind() != reflect.Uint8 {
			field.Array = true
			ft = ft.Elem()
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
		}

		field.Type = typeOf(ft)
		if field.Type == TypeObject && ft.Kind() == reflect.Struct {
			field.Fields = map[string]*Field{}
			structFields(ft, field.Fields, seen)
		}

		out[name] = field
	}
}

// bsonKey returns the document key of a struct field following the bson
// codec's conventions.
func bsonKey(sf reflect.StructField) (string, bool, bool) {
	tag := sf.Tag.Get("bson")
	if tag == "-" {
		return "", false, true
	}

	parts := strings.Split(tag, ",")
	name := parts[0]
	inline := false
	for _, opt := range parts[1:] {
		if opt == "inline" {
			inline = true
		}
	}
	if name == "" {
		name = strings.ToLower(sf.Name)
	}

	return name, inline, false
}

func typeOf(t reflect.Type) Type {
	switch t {
	case timeType, dateTimeType:
		return TypeDate
	case objectIDType:
		return TypeObjectID
	}

	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Struct, reflect.Map:
		return TypeObject
	default:
		return TypeMixed
	}
}
