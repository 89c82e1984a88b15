package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Cast converts a client supplied value to the field's declared type.
// Lists are cast element-wise. Values of object and mixed fields, and
// values that already have the right type, are returned unchanged.
func (f *Field) Cast(v any) (any, error) {
	if f == nil || v == nil {
		return v, nil
	}

	switch vals := v.(type) {
	case []any:
		out := make([]any, len(vals))
		for idx := range vals {
			cast, err := f.castScalar(vals[idx])
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", idx)
			}
			out[idx] = cast
		}
		return out, nil
	case primitive.A:
		return f.Cast([]any(vals))
	}

	return f.castScalar(v)
}

func (f *Field) castScalar(v any) (any, error) {
	switch f.Type {
	case TypeNumber:
		return castNumber(v)
	case TypeBoolean:
		if s, ok := v.(string); ok {
			b, err := strconv.ParseBool(s)
			return b, errors.Wrapf(err, "'%s' is not a boolean", s)
		}
	case TypeDate:
		return castDate(v)
	case TypeObjectID:
		if s, ok := v.(string); ok {
			oid, err := primitive.ObjectIDFromHex(s)
			if err != nil {
				return nil, errors.Errorf("'%s' is not an object id", s)
			}
			return oid, nil
		}
	}

	return v, nil
}

func castNumber(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}

	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int32(i), nil
		}
		return i, nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("'%s' is not a number", s)
	}

	return fl, nil
}

func castDate(v any) (any, error) {
	switch val := v.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, nil
			}
		}
		return nil, errors.Errorf("'%s' is not a date", val)
	case float64:
		return time.UnixMilli(int64(val)).UTC(), nil
	case int64:
		return time.UnixMilli(val).UTC(), nil
	case int32:
		return time.UnixMilli(int64(val)).UTC(), nil
	case int:
		return time.UnixMilli(int64(val)).UTC(), nil
	}

	return v, nil
}

// CastDocument casts the values of a write body to the declared types of
// the model's schema. Keys that are not declared are copied unchanged. The
// input document is not modified.
func (r *Registry) CastDocument(model string, doc map[string]any) (map[string]any, error) {
	s, ok := r.Get(model)
	if !ok {
		return nil, errors.Errorf("model '%s' is not registered", model)
	}

	return castFields(s.Fields, doc)
}

func castFields(fields map[string]*Field, doc map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for key, val := range doc {
		field, ok := fields[key]
		if !ok {
			out[key] = val
			continue
		}

		cast, err := castValue(field, val)
		if err != nil {
			return nil, errors.Wrapf(err, "casting field '%s'", key)
		}
		out[key] = cast
	}

	return out, nil
}

func castValue(field *Field, val any) (any, error) {
	if len(field.Fields) == 0 {
		return field.Cast(val)
	}

	switch sub := val.(type) {
	case map[string]any:
		return castFields(field.Fields, sub)
	case []any:
		out := make([]any, len(sub))
		for idx := range sub {
			elem, ok := sub[idx].(map[string]any)
			if !ok {
				out[idx] = sub[idx]
				continue
			}
			cast, err := castFields(field.Fields, elem)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", idx)
			}
			out[idx] = cast
		}
		return out, nil
	}

	return val, nil
}
