package data

import (
	"bytes"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matchDocument reports whether a document satisfies a filter. It
// evaluates the part of the query language produced by the translator:
// equality, comparison, list, regex, element and logical operators over
// dotted paths that may cross arrays.
func matchDocument(doc map[string]any, filter any) (bool, error) {
	cond, ok := asDocument(filter)
	if !ok {
		return false, errors.Errorf("filter of type %T is not a document", filter)
	}

	for key, val := range cond {
		var (
			matched bool
			err     error
		)
		switch key {
		case "$and", "$or", "$nor":
			matched, err = matchLogical(doc, key, val)
		default:
			if strings.HasPrefix(key, "$") {
				return false, errors.Errorf("unsupported top level operator '%s'", key)
			}
			matched, err = matchField(valuesAt(doc, key), val)
		}
		if err != nil {
			return false, errors.Wrapf(err, "evaluating '%s'", key)
		}
		if !matched {
			return false, nil
		}
	}

	return true, nil
}

func matchLogical(doc map[string]any, operator string, operand any) (bool, error) {
	list, ok := asList(operand)
	if !ok {
		return false, errors.Errorf("'%s' requires a list", operator)
	}

	for _, sub := range list {
		matched, err := matchDocument(doc, sub)
		if err != nil {
			return false, err
		}
		switch {
		case operator == "$and" && !matched:
			return false, nil
		case operator == "$or" && matched:
			return true, nil
		case operator == "$nor" && matched:
			return false, nil
		}
	}

	return operator != "$or", nil
}

// matchField evaluates the condition on a field against the values found
// at its path.
func matchField(values []any, cond any) (bool, error) {
	if ops, ok := operatorDocument(cond); ok {
		for operator, operand := range ops {
			matched, err := matchOperator(values, operator, operand)
			if err != nil {
				return false, errors.Wrapf(err, "operator '%s'", operator)
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	}

	return matchEquals(values, cond), nil
}

func matchOperator(values []any, operator string, operand any) (bool, error) {
	switch operator {
	case "$eq":
		return matchEquals(values, operand), nil
	case "$ne":
		return !matchEquals(values, operand), nil
	case "$gt", "$gte", "$lt", "$lte":
		for _, val := range candidates(values) {
			cmp, ok := compareValues(val, operand)
			if !ok {
				continue
			}
			if (operator == "$gt" && cmp > 0) || (operator == "$gte" && cmp >= 0) ||
				(operator == "$lt" && cmp < 0) || (operator == "$lte" && cmp <= 0) {
				return true, nil
			}
		}
		return false, nil
	case "$in", "$nin":
		list, ok := asList(operand)
		if !ok {
			return false, errors.Errorf("'%s' requires a list", operator)
		}
		found := false
		for _, elem := range list {
			if matchEquals(values, elem) {
				found = true
				break
			}
		}
		return found == (operator == "$in"), nil
	case "$all":
		list, ok := asList(operand)
		if !ok {
			return false, errors.New("'$all' requires a list")
		}
		for _, elem := range list {
			if !matchEquals(values, elem) {
				return false, nil
			}
		}
		return len(list) > 0, nil
	case "$exists":
		want, _ := operand.(bool)
		return (len(values) > 0) == want, nil
	case "$size":
		size, ok := toFloat(operand)
		if !ok {
			return false, errors.New("'$size' requires a number")
		}
		for _, val := range values {
			if list, ok := asList(val); ok && float64(len(list)) == size {
				return true, nil
			}
		}
		return false, nil
	case "$regex":
		pattern, ok := operand.(string)
		if !ok {
			regex, ok := operand.(primitive.Regex)
			if !ok {
				return false, errors.New("'$regex' requires a pattern")
			}
			return matchEquals(values, regex), nil
		}
		return matchEquals(values, primitive.Regex{Pattern: pattern}), nil
	case "$not":
		matched, err := matchField(values, operand)
		return !matched, err
	case "$elemMatch":
		for _, val := range values {
			list, ok := asList(val)
			if !ok {
				continue
			}
			for _, elem := range list {
				matched, err := matchElement(elem, operand)
				if err != nil {
					return false, err
				}
				if matched {
					return true, nil
				}
			}
		}
		return false, nil
	}

	return false, errors.Errorf("unsupported operator '%s'", operator)
}

// matchElement evaluates an $elemMatch condition, which is either a
// document filter or an operator document on a scalar element.
func matchElement(elem any, cond any) (bool, error) {
	if ops, ok := operatorDocument(cond); ok {
		return matchField([]any{elem}, ops)
	}
	doc, ok := elem.(map[string]any)
	if !ok {
		return false, nil
	}
	return matchDocument(doc, cond)
}

func matchEquals(values []any, operand any) bool {
	if operand == nil && len(values) == 0 {
		return true
	}
	for _, val := range candidates(values) {
		if valuesEqual(val, operand) {
			return true
		}
	}
	for _, val := range values {
		if valuesEqual(val, operand) {
			return true
		}
	}
	return false
}

// valuesAt returns the values found at a dotted path. A path crossing an
// array yields the values found in each element.
func valuesAt(node any, path string) []any {
	return resolveValues(node, strings.Split(path, "."))
}

func resolveValues(node any, segments []string) []any {
	if len(segments) == 0 {
		return []any{node}
	}

	switch v := node.(type) {
	case map[string]any:
		child, ok := v[segments[0]]
		if !ok {
			return nil
		}
		return resolveValues(child, segments[1:])
	case []any:
		var out []any
		for _, elem := range v {
			out = append(out, resolveValues(elem, segments)...)
		}
		return out
	}

	return nil
}

// candidates flattens the array values found at a path into their
// elements, since a condition on an array field matches any element.
func candidates(values []any) []any {
	out := make([]any, 0, len(values))
	for _, val := range values {
		if list, ok := val.([]any); ok {
			out = append(out, list...)
			continue
		}
		out = append(out, val)
	}
	return out
}

func operatorDocument(cond any) (map[string]any, bool) {
	doc, ok := asDocument(cond)
	if !ok || len(doc) == 0 {
		return nil, false
	}
	for key := range doc {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return doc, true
}

func asDocument(v any) (map[string]any, bool) {
	switch doc := v.(type) {
	case map[string]any:
		return doc, true
	case bson.M:
		return doc, true
	case bson.D:
		out := make(map[string]any, len(doc))
		for _, e := range doc {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case bson.A:
		return list, true
	}
	return nil, false
}

func valuesEqual(val, operand any) bool {
	if regex, ok := operand.(primitive.Regex); ok {
		s, ok := val.(string)
		if !ok {
			return false
		}
		re, err := compileRegex(regex)
		return err == nil && re.MatchString(s)
	}
	if cmp, ok := compareValues(val, operand); ok {
		return cmp == 0
	}
	if doc, ok := asDocument(operand); ok {
		operand = doc
	}
	if list, ok := asList(operand); ok {
		operand = list
	}
	return reflect.DeepEqual(val, operand)
}

func compileRegex(regex primitive.Regex) (*regexp.Regexp, error) {
	flags := ""
	for _, opt := range regex.Options {
		if strings.ContainsRune("imsU", opt) {
			flags += string(opt)
		}
	}
	if flags != "" {
		return regexp.Compile("(?" + flags + ")" + regex.Pattern)
	}
	return regexp.Compile(regex.Pattern)
}

// compareValues orders two values of comparable types. The second return
// value is false when the types cannot be compared.
func compareValues(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if x, ok := toTime(a); ok {
		y, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x[:], y[:]), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

// sortDocuments orders documents by the sort keys, "-" marking descending
// keys. Missing values sort first.
func sortDocuments(docs []map[string]any, keys []string) {
	if len(keys) == 0 {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			field := strings.TrimPrefix(key, "-")
			desc := field != key

			cmp := compareMissing(firstValue(docs[i], field), firstValue(docs[j], field))
			if cmp == 0 {
				continue
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func firstValue(doc map[string]any, path string) any {
	values := candidates(valuesAt(doc, path))
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func compareMissing(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	cmp, _ := compareValues(a, b)
	return cmp
}

// setPath sets the value at a dotted path, creating intermediate
// documents as needed.
func setPath(doc map[string]any, path string, val any) {
	head, tail, nested := strings.Cut(path, ".")
	if !nested {
		doc[head] = val
		return
	}

	child, ok := doc[head].(map[string]any)
	if !ok {
		child = map[string]any{}
		doc[head] = child
	}
	setPath(child, tail, val)
}
