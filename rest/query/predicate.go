package query

import (
	"strings"

	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// String operand prefixes, longest first so that ">=" wins over ">".
var stringOperators = []struct {
	prefix   string
	operator string
}{
	{prefix: ">=", operator: "$gte"},
	{prefix: "<=", operator: "$lte"},
	{prefix: "!=", operator: "$ne"},
	{prefix: ">", operator: "$gt"},
	{prefix: "<", operator: "$lt"},
}

const (
	regexPrefix = "~"
	// equalsPrefix is recognized but not translated: values starting with
	// it are matched literally.
	equalsPrefix = "="
)

// logicalOperators take a list of predicates evaluated against the same
// document.
var logicalOperators = map[string]bool{
	"$and": true,
	"$or":  true,
	"$nor": true,
}

// castOperators take a single operand of the field's type; listOperators
// take a list of them.
var (
	castOperators = map[string]bool{"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true}
	listOperators = map[string]bool{"$in": true, "$nin": true, "$all": true}
)

// translateDocument rewrites a parsed predicate document: string operands
// carrying an operator prefix become operator documents, literal arrays on
// declared scalar fields become $in predicates, and operands are cast to
// the declared field types.
func (t *Translator) translateDocument(model, prefix string, doc bson.D) (bson.M, error) {
	out := make(bson.M, len(doc))
	for _, e := range doc {
		if strings.HasPrefix(e.Key, "$") {
			val, err := t.translateOperator(model, prefix, e.Key, e.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "operator '%s'", e.Key)
			}
			out[e.Key] = val
			continue
		}

		path := joinPath(prefix, e.Key)
		val, err := t.translateField(model, path, e.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "field '%s'", path)
		}
		out[e.Key] = val
	}

	return out, nil
}

func (t *Translator) translateOperator(model, path, operator string, operand any) (any, error) {
	switch {
	case logicalOperators[operator]:
		list, ok := operand.(bson.A)
		if !ok {
			return nil, errors.Errorf("'%s' requires a list of predicates", operator)
		}
		out := make(bson.A, 0, len(list))
		for idx, elem := range list {
			sub, ok := elem.(bson.D)
			if !ok {
				return nil, errors.Errorf("element %d of '%s' is not a document", idx, operator)
			}
			translated, err := t.translateDocument(model, path, sub)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", idx)
			}
			out = append(out, translated)
		}
		return out, nil
	case path != "" && castOperators[operator]:
		return t.cast(model, path, operand)
	case path != "" && listOperators[operator]:
		if _, ok := operand.(bson.A); !ok {
			return nil, errors.Errorf("'%s' requires a list", operator)
		}
		return t.cast(model, path, operand)
	case operator == "$elemMatch":
		if sub, ok := operand.(bson.D); ok {
			return t.translateDocument(model, path, sub)
		}
	}

	return literal(operand), nil
}

func (t *Translator) translateField(model, path string, val any) (any, error) {
	switch v := val.(type) {
	case string:
		return t.translateString(model, path, v)
	case bson.A:
		info, declared := t.resolve(model, path)
		if declared && info.Field != nil && !info.Field.Array {
			operand, err := t.cast(model, path, v)
			if err != nil {
				return nil, err
			}
			return bson.M{"$in": operand}, nil
		}
		return literal(v), nil
	case bson.D:
		return t.translateDocument(model, path, v)
	default:
		return t.cast(model, path, v)
	}
}

func (t *Translator) translateString(model, path, val string) (any, error) {
	if strings.HasPrefix(val, regexPrefix) {
		if t.opts.DisableRegex {
			return nil, errors.New("regular expressions are disabled")
		}
		return primitive.Regex{Pattern: strings.TrimPrefix(val, regexPrefix), Options: "i"}, nil
	}
	if strings.HasPrefix(val, equalsPrefix) {
		return val, nil
	}

	for _, op := range stringOperators {
		if !strings.HasPrefix(val, op.prefix) {
			continue
		}
		operand, err := t.cast(model, path, strings.TrimPrefix(val, op.prefix))
		if err != nil {
			return nil, err
		}
		return bson.M{op.operator: operand}, nil
	}

	return t.cast(model, path, val)
}

// cast converts an operand to the declared type of the field at path.
// Operands of undeclared fields are returned unchanged.
func (t *Translator) cast(model, path string, operand any) (any, error) {
	info, ok := t.resolve(model, path)
	if !ok || info.Field == nil {
		return literal(operand), nil
	}

	return info.Field.Cast(literal(operand))
}

func (t *Translator) resolve(model, path string) (schema.PathInfo, bool) {
	if t.schemas == nil || path == "" {
		return schema.PathInfo{}, false
	}
	return t.schemas.ResolvePath(model, path)
}

// literal converts parsed documents to bson.M and lists to []any, leaving
// scalars unchanged.
func literal(val any) any {
	switch v := val.(type) {
	case bson.D:
		out := make(bson.M, len(v))
		for _, e := range v {
			out[e.Key] = literal(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for idx := range v {
			out[idx] = literal(v[idx])
		}
		return out
	default:
		return val
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
