package data

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/db/cache"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// fetchFunc loads the documents of a model matching a find plan, without
// resolving the plan's own populate directives.
type fetchFunc func(ctx context.Context, model string, q db.Q) ([]map[string]any, error)

type populator struct {
	schemas schema.Reflector
	fetch   fetchFunc
}

// resolvePopulate replaces the references at each directive's path with
// the referenced documents, in place.
func (p *populator) resolvePopulate(ctx context.Context, model string, docs []map[string]any, directives []db.Populate) error {
	for _, d := range directives {
		if err := p.resolveDirective(ctx, model, docs, d); err != nil {
			return errors.Wrapf(err, "populating '%s' of '%s'", d.Path, model)
		}
	}

	return nil
}

func (p *populator) resolveDirective(ctx context.Context, model string, docs []map[string]any, d db.Populate) error {
	target := d.Model
	if target == "" {
		target = p.referencedModel(model, d.Path)
	}
	if target == "" {
		grip.Debug(message.Fields{
			"message": "skipping populate of a path that is not a reference",
			"model":   model,
			"path":    d.Path,
		})
		return nil
	}

	segments := strings.Split(d.Path, ".")
	var ids []any
	seen := map[string]bool{}
	for _, doc := range docs {
		collectReferences(doc, segments, func(id any) {
			if key := idKey(id); !seen[key] {
				seen[key] = true
				ids = append(ids, id)
			}
		})
	}
	if len(ids) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "populate", trace.WithAttributes(
		attribute.String(modelAttribute, target),
		attribute.String(populateAttribute, d.Path),
	))
	defer span.End()

	found, err := p.fetchReferenced(ctx, target, ids, d)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int(resultsAttribute, len(found)))

	byID := make(map[string]map[string]any, len(found))
	rank := make(map[string]int, len(found))
	for idx, doc := range found {
		key := idKey(doc[schema.IDField])
		byID[key] = doc
		rank[key] = idx
	}

	// The _id is always fetched to match documents to references and
	// removed afterwards if the directive excluded it.
	var reshape db.Projection
	if val, ok := db.SelectProjection(d.Select).Get(schema.IDField); ok && !db.Included(val) {
		reshape = reshape.Set(schema.IDField, 0)
	}
	lookup := func(id any) (map[string]any, bool) {
		doc, ok := byID[idKey(id)]
		if !ok {
			return nil, false
		}
		return reshape.Apply(doc), true
	}

	for _, doc := range docs {
		substituteReferences(doc, segments, func(val any) any {
			list, ok := val.([]any)
			if !ok {
				if populated, ok := lookup(val); ok {
					return populated
				}
				return nil
			}

			type ranked struct {
				doc  map[string]any
				rank int
			}
			var out []ranked
			for _, id := range list {
				if populated, ok := lookup(id); ok {
					out = append(out, ranked{doc: populated, rank: rank[idKey(id)]})
				}
			}
			if len(d.Options.Sort) > 0 {
				sort.SliceStable(out, func(i, j int) bool { return out[i].rank < out[j].rank })
			}
			if d.Options.Limit > 0 && len(out) > d.Options.Limit {
				out = out[:d.Options.Limit]
			}

			populated := make([]any, 0, len(out))
			for _, r := range out {
				populated = append(populated, r.doc)
			}
			return populated
		})
	}

	return nil
}

func (p *populator) referencedModel(model, path string) string {
	if p.schemas == nil {
		return ""
	}
	info, ok := p.schemas.ResolvePath(model, path)
	if !ok || info.Kind != schema.PathReference {
		return ""
	}
	return info.Ref
}

// fetchReferenced loads the referenced documents. Without a match or sort,
// documents are read through the request's document cache.
func (p *populator) fetchReferenced(ctx context.Context, target string, ids []any, d db.Populate) ([]map[string]any, error) {
	projection := db.SelectProjection(d.Select).Delete(schema.IDField)
	if len(projection) == 0 {
		projection = nil
	}
	cacheable := len(d.Match) == 0 && len(d.Options.Sort) == 0
	namespace := fmt.Sprintf("%s[%s]", target, projection.String())

	var (
		out     []map[string]any
		missing []any
	)
	for _, id := range ids {
		if cacheable {
			if cached, ok := cache.GetFromCache(ctx, namespace, idKey(id)); ok {
				if doc, ok := cached.(map[string]any); ok {
					out = append(out, doc)
					continue
				}
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	q := db.Query(bson.M{schema.IDField: bson.M{"$in": missing}}).
		Where(d.Match).
		Project(projection).
		Sort(d.Options.Sort)
	fetched, err := p.fetch(ctx, target, q)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching referenced '%s' documents", target)
	}

	if cacheable {
		for _, doc := range fetched {
			cache.SetInCache(ctx, namespace, idKey(doc[schema.IDField]), doc)
		}
	}

	return append(out, fetched...), nil
}

// collectReferences visits the values found at the path, crossing arrays.
// Documents found at the end of the path are already populated and are
// not visited.
func collectReferences(node any, segments []string, visit func(any)) {
	switch v := node.(type) {
	case []any:
		for _, elem := range v {
			collectReferences(elem, segments, visit)
		}
	case map[string]any:
		if len(segments) == 0 {
			return
		}
		if child, ok := v[segments[0]]; ok {
			collectReferences(child, segments[1:], visit)
		}
	case nil:
	default:
		if len(segments) == 0 {
			visit(v)
		}
	}
}

// substituteReferences replaces the value at the end of the path, crossing
// arrays on the way to it.
func substituteReferences(node any, segments []string, replace func(any) any) {
	switch v := node.(type) {
	case []any:
		for _, elem := range v {
			substituteReferences(elem, segments, replace)
		}
	case map[string]any:
		if len(segments) == 0 {
			return
		}
		child, ok := v[segments[0]]
		if !ok {
			return
		}
		if len(segments) == 1 {
			v[segments[0]] = replace(child)
			return
		}
		substituteReferences(child, segments[1:], replace)
	}
}

func idKey(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprintf("%T:%v", id, id)
}
