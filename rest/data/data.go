package data

import (
	"context"

	"github.com/evergreen-ci/mongorest/db"
	"go.mongodb.org/mongo-driver/bson"
)

// Connector reads and writes the documents of registered models.
type Connector interface {
	// FindDocuments returns the documents matching a find plan, with its
	// populate directives resolved.
	FindDocuments(ctx context.Context, model string, q db.Q) ([]map[string]any, error)
	// FindDocument returns the first document matching the plan. It
	// returns an error satisfying db.ResultsNotFound from anser when
	// nothing matches.
	FindDocument(ctx context.Context, model string, q db.Q) (map[string]any, error)
	CountDocuments(ctx context.Context, model string, q db.Q) (int, error)
	DistinctValues(ctx context.Context, model string, q db.Q) ([]any, error)

	// CreateDocument inserts a document and returns its _id, generating an
	// object id when the document has none.
	CreateDocument(ctx context.Context, model string, doc map[string]any) (any, error)
	// UpdateDocument sets the given fields on the first document matching
	// the filter.
	UpdateDocument(ctx context.Context, model string, filter bson.M, set map[string]any) error
	DeleteDocument(ctx context.Context, model string, filter bson.M) error
	DeleteDocuments(ctx context.Context, model string, filter bson.M) (int, error)
}
