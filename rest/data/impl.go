package data

import (
	"context"

	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DBConnector runs plans against the collections of the environment's
// database, naming collections after the registered schemas.
type DBConnector struct {
	Schemas *schema.Registry
}

// NewDBConnector returns a connector resolving model collections with the
// schema registry.
func NewDBConnector(schemas *schema.Registry) *DBConnector {
	return &DBConnector{Schemas: schemas}
}

func (c *DBConnector) FindDocuments(ctx context.Context, model string, q db.Q) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "find", trace.WithAttributes(
		attribute.String(modelAttribute, model),
		attribute.String(operationAttribute, string(q.Operation())),
		attribute.Int(populateAttribute, len(q.GetPopulate())),
	))
	defer span.End()

	docs, err := c.find(ctx, model, q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int(resultsAttribute, len(docs)))

	p := &populator{schemas: c.Schemas, fetch: c.find}
	if err = p.resolvePopulate(ctx, model, docs, q.GetPopulate()); err != nil {
		return nil, err
	}

	return docs, nil
}

func (c *DBConnector) FindDocument(ctx context.Context, model string, q db.Q) (map[string]any, error) {
	coll, err := c.collection(model)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	if err = db.FindOneQ(ctx, coll, q, &raw); err != nil {
		return nil, errors.Wrapf(err, "finding '%s' document", model)
	}
	docs, err := plainDocuments([]bson.M{raw})
	if err != nil {
		return nil, err
	}

	p := &populator{schemas: c.Schemas, fetch: c.find}
	if err = p.resolvePopulate(ctx, model, docs, q.GetPopulate()); err != nil {
		return nil, err
	}

	return docs[0], nil
}

func (c *DBConnector) CountDocuments(ctx context.Context, model string, q db.Q) (int, error) {
	coll, err := c.collection(model)
	if err != nil {
		return 0, err
	}

	return db.CountQ(ctx, coll, q)
}

func (c *DBConnector) DistinctValues(ctx context.Context, model string, q db.Q) ([]any, error) {
	coll, err := c.collection(model)
	if err != nil {
		return nil, err
	}

	return db.DistinctQ(ctx, coll, q)
}

func (c *DBConnector) CreateDocument(ctx context.Context, model string, doc map[string]any) (any, error) {
	coll, err := c.collection(model)
	if err != nil {
		return nil, err
	}

	if id, ok := doc[schema.IDField]; !ok || id == nil {
		doc = db.Projection(nil).Apply(doc)
		doc[schema.IDField] = primitive.NewObjectID()
	}

	return db.Insert(ctx, coll, doc)
}

func (c *DBConnector) UpdateDocument(ctx context.Context, model string, filter bson.M, set map[string]any) error {
	coll, err := c.collection(model)
	if err != nil {
		return err
	}

	return db.UpdateOne(ctx, coll, filter, bson.M{"$set": set})
}

func (c *DBConnector) DeleteDocument(ctx context.Context, model string, filter bson.M) error {
	coll, err := c.collection(model)
	if err != nil {
		return err
	}

	return db.RemoveOne(ctx, coll, filter)
}

func (c *DBConnector) DeleteDocuments(ctx context.Context, model string, filter bson.M) (int, error) {
	coll, err := c.collection(model)
	if err != nil {
		return 0, err
	}

	return db.RemoveAll(ctx, coll, filter)
}

func (c *DBConnector) find(ctx context.Context, model string, q db.Q) ([]map[string]any, error) {
	coll, err := c.collection(model)
	if err != nil {
		return nil, err
	}

	var raw []bson.M
	if err = db.FindAllQ(ctx, coll, q, &raw); err != nil {
		return nil, errors.Wrapf(err, "finding '%s' documents", model)
	}

	return plainDocuments(raw)
}

func (c *DBConnector) collection(model string) (string, error) {
	if c.Schemas == nil {
		return "", errors.New("no schemas are registered")
	}
	s, ok := c.Schemas.Get(model)
	if !ok {
		return "", errors.Errorf("model '%s' is not registered", model)
	}

	return s.Collection, nil
}

// plainDocuments converts decoded documents, whose nested values may be
// BSON documents and arrays, to plain maps and slices.
func plainDocuments(raw []bson.M) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(raw))
	for _, doc := range raw {
		plain, err := access.Plainify(doc)
		if err != nil {
			return nil, errors.Wrap(err, "normalizing document")
		}
		m, ok := plain.(map[string]any)
		if !ok {
			return nil, errors.Errorf("document decoded as %T", plain)
		}
		out = append(out, m)
	}

	return out, nil
}
