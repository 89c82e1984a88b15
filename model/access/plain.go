package access

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is implemented by values that wrap live, store-backed state and
// must be converted before keys can be removed from them.
type Document interface {
	ToPlainObject() (map[string]any, error)
}

const primitivePkg = "go.mongodb.org/mongo-driver/bson/primitive"

var timeType = reflect.TypeOf(time.Time{})

// Plainify returns a deep copy of v made only of map[string]any, []any and
// scalar values. Documents are converted with ToPlainObject, structs are
// converted through their BSON encoding, and BSON scalar types such as
// object ids and dates are kept as they are.
func Plainify(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Document:
		m, err := val.ToPlainObject()
		if err != nil {
			return nil, errors.Wrap(err, "converting document to a plain object")
		}
		return plainMap(m)
	case map[string]any:
		return plainMap(val)
	case bson.M:
		return plainMap(val)
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			plain, err := Plainify(elem.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "key '%s'", elem.Key)
			}
			out[elem.Key] = plain
		}
		return out, nil
	case []any:
		return plainSlice(val)
	case primitive.A:
		return plainSlice(val)
	case bson.Raw:
		doc := bson.M{}
		if err := bson.Unmarshal(val, &doc); err != nil {
			return nil, errors.Wrap(err, "unmarshalling raw document")
		}
		return plainMap(doc)
	case string, bool, int, int32, int64, float64, []byte, time.Time:
		return val, nil
	}

	rv := reflect.ValueOf(v)
	if isScalarType(rv.Type()) {
		return v, nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Elem().Kind() == reflect.Struct && !isScalarType(rv.Elem().Type()) {
			return plainStruct(v)
		}
		return Plainify(rv.Elem().Interface())
	case reflect.Struct:
		return plainStruct(v)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			plain, err := Plainify(iter.Value().Interface())
			if err != nil {
				return nil, errors.Wrapf(err, "key '%s'", iter.Key().String())
			}
			out[iter.Key().String()] = plain
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, nil
		}
		out := make([]any, rv.Len())
		for idx := 0; idx < rv.Len(); idx++ {
			plain, err := Plainify(rv.Index(idx).Interface())
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", idx)
			}
			out[idx] = plain
		}
		return out, nil
	}

	return v, nil
}

func plainMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, val := range m {
		plain, err := Plainify(val)
		if err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		out[key] = plain
	}

	return out, nil
}

func plainSlice(s []any) ([]any, error) {
	out := make([]any, len(s))
	for idx := range s {
		plain, err := Plainify(s[idx])
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", idx)
		}
		out[idx] = plain
	}

	return out, nil
}

func plainStruct(v any) (any, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "marshalling %T", v)
	}

	doc := bson.M{}
	if err = bson.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling %T", v)
	}

	return plainMap(doc)
}

func isScalarType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t == timeType || t.PkgPath() == primitivePkg
}
