package query

import (
	"strconv"
	"strings"

	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"go.mongodb.org/mongo-driver/bson"
)

// Options configures a Translator.
type Options struct {
	// MaxLimit clamps the number of documents a find plan returns. Zero
	// disables the clamp.
	MaxLimit int
	// DisableRegex rejects the "~" operator.
	DisableRegex bool
}

// Translator turns raw request parameters into a query plan.
type Translator struct {
	schemas schema.Reflector
	opts    Options
}

// NewTranslator returns a translator resolving field types with the
// reflector.
func NewTranslator(schemas schema.Reflector, opts Options) *Translator {
	return &Translator{
		schemas: schemas,
		opts:    opts,
	}
}

// OptionsFromSettings returns translator options from the query section of
// the service settings.
func OptionsFromSettings(conf mongorest.QueryConfig) Options {
	return Options{
		MaxLimit:     conf.MaxLimit,
		DisableRegex: conf.DisableRegex,
	}
}

type step struct {
	name  string
	apply func(*Translator, string, db.Q, Params) (db.Q, error)
}

// steps is the fixed evaluation order of the parameters. Later steps read
// what earlier ones built: populate rewrites the projection built by select,
// and projection is merged over the result.
var steps = []step{
	{name: mongorest.QueryParam, apply: (*Translator).applyPredicate},
	{name: "pagination", apply: (*Translator).applyPagination},
	{name: mongorest.SortParam, apply: (*Translator).applySort},
	{name: mongorest.SelectParam, apply: (*Translator).applySelect},
	{name: mongorest.PopulateParam, apply: (*Translator).applyPopulate},
	{name: mongorest.ProjectionParam, apply: (*Translator).applyProjection},
	{name: mongorest.DistinctParam, apply: (*Translator).applyDistinct},
}

// Build decorates the base plan, which is already scoped by the caller,
// with the request parameters. The base filter is narrowed, never
// replaced. Malformed parameters produce a *ParseError.
func (t *Translator) Build(model string, base db.Q, params Params) (db.Q, error) {
	q := base
	for _, s := range steps {
		var err error
		if q, err = s.apply(t, model, q, params); err != nil {
			return base, err
		}
	}

	grip.Debug(message.Fields{
		"message":    "translated query",
		"model":      model,
		"operation":  q.Operation(),
		"filter":     q.GetFilter(),
		"projection": q.GetProjection().String(),
		"sort":       q.GetSort(),
		"skip":       q.GetSkip(),
		"limit":      q.GetLimit(),
		"populate":   len(q.GetPopulate()),
	})

	return q, nil
}

func (t *Translator) applyPredicate(model string, q db.Q, params Params) (db.Q, error) {
	if params.Query == "" {
		return q, nil
	}

	doc, err := parseDocument(params.Query)
	if err != nil {
		return q, newParseError(mongorest.QueryParam, err)
	}
	predicate, err := t.translateDocument(model, "", doc)
	if err != nil {
		return q, newParseError(mongorest.QueryParam, err)
	}

	return q.Where(predicate), nil
}

func (t *Translator) applyPagination(_ string, q db.Q, params Params) (db.Q, error) {
	skip, err := parseCount(params.Skip)
	if err != nil {
		return q, newParseError(mongorest.SkipParam, err)
	}
	if skip > 0 {
		q = q.Skip(skip)
	}

	requested, err := parseCount(params.Limit)
	if err != nil {
		return q, newParseError(mongorest.LimitParam, err)
	}
	if q.Operation() == db.OpCount {
		return q, nil
	}

	return q.Limit(t.effectiveLimit(requested)), nil
}

// effectiveLimit clamps the requested limit: a missing, zero, or too large
// request gets the configured maximum.
func (t *Translator) effectiveLimit(requested int) int {
	maxLimit := t.opts.MaxLimit
	if maxLimit <= 0 {
		return requested
	}
	if requested == 0 || requested > maxLimit {
		return maxLimit
	}
	return requested
}

func parseCount(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func (t *Translator) applySort(_ string, q db.Q, params Params) (db.Q, error) {
	if params.Sort == "" {
		return q, nil
	}

	return q.Sort(parseSort(params.Sort)), nil
}

// parseSort reads a JSON sort document, falling back to a field list when
// the value is not JSON.
func parseSort(raw string) []string {
	doc, err := parseDocument(raw)
	if err != nil {
		return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	}

	keys := make([]string, 0, len(doc))
	for _, e := range doc {
		if descending(e.Value) {
			keys = append(keys, "-"+e.Key)
		} else {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func descending(v any) bool {
	switch val := v.(type) {
	case int32:
		return val < 0
	case int64:
		return val < 0
	case float64:
		return val < 0
	case string:
		switch strings.ToLower(val) {
		case "-1", "desc", "descending":
			return true
		}
	}
	return false
}

func (t *Translator) applyDistinct(_ string, q db.Q, params Params) (db.Q, error) {
	if params.Distinct == "" {
		return q, nil
	}

	return q.Distinct(params.Distinct).Skip(0).Limit(0), nil
}

// parseDocument parses a JSON object, accepting extended JSON such as
// {"$oid": "..."} and {"$date": "..."}, preserving key order.
func parseDocument(raw string) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(raw), false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseValue parses any JSON value.
func parseValue(raw string) (any, error) {
	var wrapper struct {
		Value any `bson:"v"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+raw+`}`), false, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Value, nil
}
