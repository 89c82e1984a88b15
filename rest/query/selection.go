package query

import (
	"strings"

	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

func (t *Translator) applySelect(_ string, q db.Q, params Params) (db.Q, error) {
	if params.Select == "" {
		return q, nil
	}

	projection, err := parseSelect(params.Select)
	if err != nil {
		return q, newParseError(mongorest.SelectParam, err)
	}

	return q.Project(projection), nil
}

// parseSelect reads a select value: either a JSON projection document or a
// field list where a leading "-" excludes a field.
func parseSelect(raw string) (db.Projection, error) {
	if !isJSON(raw) {
		return db.SelectProjection(raw), nil
	}

	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	var out db.Projection
	for _, e := range doc {
		out = out.Set(e.Key, literal(e.Value))
	}
	return out, nil
}

// applyPopulate adds the populate directives and moves dotted select
// entries addressing populated documents into the directives' own selects.
//
// With the root projection rewritten this way, a dotted-only select keeps
// every root field, an inclusive root select also includes the populated
// path, and an exclusion of the populated path itself is dropped so the
// join field is always returned.
func (t *Translator) applyPopulate(_ string, q db.Q, params Params) (db.Q, error) {
	if params.Populate == "" {
		return q, nil
	}

	directives, err := parsePopulate(params.Populate)
	if err != nil {
		return q, newParseError(mongorest.PopulateParam, err)
	}

	root := q.GetProjection()
	for idx := range directives {
		d := &directives[idx]
		prefix := d.Path + "."

		var moved []string
		for _, key := range root.Keys() {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			val, _ := root.Get(key)
			sub := strings.TrimPrefix(key, prefix)
			if db.Included(val) {
				moved = append(moved, sub)
			} else {
				moved = append(moved, "-"+sub)
			}
			root = root.Delete(key)
		}
		if len(moved) > 0 {
			d.Select = joinSelect(d.Select, moved)
		}

		switch {
		case len(root) == 0:
			root = nil
		case root.Inclusive():
			root = root.Set(d.Path, 1)
		default:
			if val, ok := root.Get(d.Path); ok && !db.Included(val) {
				root = root.Delete(d.Path)
			}
		}
	}

	return q.Project(root).Populate(directives...), nil
}

func joinSelect(existing string, fields []string) string {
	if existing != "" {
		fields = append([]string{existing}, fields...)
	}
	return strings.Join(fields, ",")
}

// parsePopulate reads a populate value: a field list, a JSON directive
// object, or a JSON list of directive objects and field lists. Paths
// populated twice keep their first directive.
func parsePopulate(raw string) ([]db.Populate, error) {
	var entries []any
	if isJSON(raw) {
		val, err := parseValue(raw)
		if err != nil {
			return nil, err
		}
		if list, ok := val.(bson.A); ok {
			entries = list
		} else {
			entries = []any{val}
		}
	} else {
		entries = []any{raw}
	}

	var out []db.Populate
	seen := map[string]bool{}
	add := func(p db.Populate) {
		if seen[p.Path] {
			return
		}
		seen[p.Path] = true
		out = append(out, p)
	}

	for idx, entry := range entries {
		switch v := entry.(type) {
		case string:
			for _, path := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
				add(db.Populate{Path: path})
			}
		case bson.D:
			p, err := decodeDirective(v)
			if err != nil {
				return nil, errors.Wrapf(err, "directive %d", idx)
			}
			add(p)
		default:
			return nil, errors.Errorf("directive %d is neither a path list nor an object", idx)
		}
	}

	return out, nil
}

// decodeDirective decodes one populate object. A select given as a
// projection document is rendered in the select grammar, and a sort option
// follows the sort parameter's grammar.
func decodeDirective(doc bson.D) (db.Populate, error) {
	raw := make(map[string]any, len(doc))
	for _, e := range doc {
		switch v := e.Value.(type) {
		case bson.D:
			switch e.Key {
			case "select":
				var projection db.Projection
				for _, f := range v {
					projection = projection.Set(f.Key, literal(f.Value))
				}
				raw[e.Key] = projection.String()
				continue
			case "options":
				raw[e.Key] = directiveOptions(v)
				continue
			}
		}
		raw[e.Key] = literal(e.Value)
	}

	var p db.Populate
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &p,
	})
	if err != nil {
		return p, errors.Wrap(err, "making directive decoder")
	}
	if err = decoder.Decode(raw); err != nil {
		return p, errors.Wrap(err, "decoding directive")
	}
	if p.Path == "" {
		return p, errors.New("directive has no path")
	}

	return p, nil
}

func directiveOptions(opts bson.D) map[string]any {
	out := make(map[string]any, len(opts))
	for _, e := range opts {
		if e.Key != "sort" {
			out[e.Key] = literal(e.Value)
			continue
		}

		switch sort := e.Value.(type) {
		case string:
			out[e.Key] = parseSort(sort)
		case bson.D:
			keys := make([]string, 0, len(sort))
			for _, f := range sort {
				if descending(f.Value) {
					keys = append(keys, "-"+f.Key)
				} else {
					keys = append(keys, f.Key)
				}
			}
			out[e.Key] = keys
		default:
			out[e.Key] = literal(e.Value)
		}
	}
	return out
}

func (t *Translator) applyProjection(model string, q db.Q, params Params) (db.Q, error) {
	if params.Projection == "" {
		return q, nil
	}

	doc, err := parseDocument(params.Projection)
	if err != nil {
		return q, newParseError(mongorest.ProjectionParam, err)
	}

	root := q.GetProjection()
	for _, e := range doc {
		val, err := t.translateField(model, e.Key, e.Value)
		if err != nil {
			return q, newParseError(mongorest.ProjectionParam, errors.Wrapf(err, "field '%s'", e.Key))
		}
		root = root.Set(e.Key, val)
	}

	return q.Project(root), nil
}
