package data

import (
	"context"
	"sync"

	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MockConnector evaluates plans against documents held in memory, keyed
// by model name.
type MockConnector struct {
	Schemas   schema.Reflector
	Documents map[string][]map[string]any

	mu sync.RWMutex
}

// NewMockConnector returns an empty in-memory connector.
func NewMockConnector(schemas schema.Reflector) *MockConnector {
	return &MockConnector{
		Schemas:   schemas,
		Documents: map[string][]map[string]any{},
	}
}

func (c *MockConnector) FindDocuments(ctx context.Context, model string, q db.Q) ([]map[string]any, error) {
	docs, err := c.find(ctx, model, q)
	if err != nil {
		return nil, err
	}

	p := &populator{schemas: c.Schemas, fetch: c.find}
	if err = p.resolvePopulate(ctx, model, docs, q.GetPopulate()); err != nil {
		return nil, err
	}

	return docs, nil
}

func (c *MockConnector) FindDocument(ctx context.Context, model string, q db.Q) (map[string]any, error) {
	docs, err := c.FindDocuments(ctx, model, q.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.WithStack(mongo.ErrNoDocuments)
	}

	return docs[0], nil
}

func (c *MockConnector) CountDocuments(ctx context.Context, model string, q db.Q) (int, error) {
	docs, err := c.matching(model, q.GetFilter())
	return len(docs), err
}

func (c *MockConnector) DistinctValues(ctx context.Context, model string, q db.Q) ([]any, error) {
	if q.GetDistinct() == "" {
		return nil, errors.New("distinct query has no field")
	}

	docs, err := c.matching(model, q.GetFilter())
	if err != nil {
		return nil, err
	}

	out := []any{}
	for _, doc := range docs {
		for _, val := range candidates(valuesAt(doc, q.GetDistinct())) {
			if !matchEquals(out, val) {
				out = append(out, val)
			}
		}
	}

	return out, nil
}

func (c *MockConnector) CreateDocument(ctx context.Context, model string, doc map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := db.Projection(nil).Apply(doc)
	id, ok := stored[schema.IDField]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		stored[schema.IDField] = id
	}
	for _, existing := range c.Documents[model] {
		if valuesEqual(existing[schema.IDField], id) {
			return nil, errors.Errorf("E11000 duplicate key error collection: %s index: _id_ dup key: %v", model, id)
		}
	}

	if c.Documents == nil {
		c.Documents = map[string][]map[string]any{}
	}
	c.Documents[model] = append(c.Documents[model], stored)

	return id, nil
}

func (c *MockConnector) UpdateDocument(ctx context.Context, model string, filter bson.M, set map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range c.Documents[model] {
		matched, err := matchDocument(doc, filter)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}
		for path, val := range db.Projection(nil).Apply(set) {
			setPath(doc, path, val)
		}
		return nil
	}

	return errors.WithStack(mongo.ErrNoDocuments)
}

func (c *MockConnector) DeleteDocument(ctx context.Context, model string, filter bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := c.Documents[model]
	for idx, doc := range docs {
		matched, err := matchDocument(doc, filter)
		if err != nil {
			return err
		}
		if matched {
			c.Documents[model] = append(docs[:idx:idx], docs[idx+1:]...)
			return nil
		}
	}

	return errors.WithStack(mongo.ErrNoDocuments)
}

func (c *MockConnector) DeleteDocuments(ctx context.Context, model string, filter bson.M) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var kept []map[string]any
	removed := 0
	for _, doc := range c.Documents[model] {
		matched, err := matchDocument(doc, filter)
		if err != nil {
			return 0, err
		}
		if matched {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	c.Documents[model] = kept

	return removed, nil
}

// find evaluates a find plan without resolving its populate directives.
// Returned documents are copies.
func (c *MockConnector) find(_ context.Context, model string, q db.Q) ([]map[string]any, error) {
	docs, err := c.matching(model, q.GetFilter())
	if err != nil {
		return nil, err
	}

	sortDocuments(docs, q.GetSort())
	if skip := q.GetSkip(); skip > 0 {
		if skip >= len(docs) {
			docs = nil
		} else {
			docs = docs[skip:]
		}
	}
	if limit := q.GetLimit(); limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	projection := q.GetProjection()
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, projection.Apply(doc))
	}

	return out, nil
}

// matching returns copies of the model's documents matching the filter.
func (c *MockConnector) matching(model string, filter bson.M) ([]map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []map[string]any
	for _, doc := range c.Documents[model] {
		matched, err := matchDocument(doc, filter)
		if err != nil {
			return nil, errors.Wrapf(err, "matching '%s' documents", model)
		}
		if matched {
			out = append(out, db.Projection(nil).Apply(doc))
		}
	}

	return out, nil
}
