package db

import (
	"context"
	"fmt"
	"time"

	"github.com/evergreen-ci/mongorest"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	packageName = fmt.Sprintf("%s%s", mongorest.PackageName, "/db")
	tracer      = otel.GetTracerProvider().Tracer(packageName)
	meter       = otel.GetMeterProvider().Meter(packageName)

	queryCounter, _  = meter.Int64Counter(queryCountInstrument, metric.WithUnit("{query}"))
	queryDuration, _ = meter.Float64Histogram(queryDurationInstrument, metric.WithUnit("s"))
)

const (
	collectionAttribute = "mongorest.db.collection"
	operationAttribute  = "mongorest.db.operation"
	filterAttribute     = "mongorest.db.filter"

	queryCountInstrument    = "mongorest.db.queries"
	queryDurationInstrument = "mongorest.db.query_duration"
)

func collection(name string) (*mongo.Collection, error) {
	env := mongorest.GetEnvironment()
	if env == nil {
		return nil, errors.New("undefined environment")
	}
	database := env.DB()
	if database == nil {
		return nil, errors.New("database is not configured")
	}

	return database.Collection(name), nil
}

// startSpan starts a span for a database call, bounding the context by the
// plan's max time or the configured query timeout.
func startSpan(ctx context.Context, coll string, op Operation, q Q) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, string(op), trace.WithAttributes(
		attribute.String(collectionAttribute, coll),
		attribute.String(operationAttribute, string(op)),
		attribute.String(filterAttribute, fmt.Sprint(q.filter)),
	))

	start := time.Now()
	attrs := metric.WithAttributes(
		attribute.String(collectionAttribute, coll),
		attribute.String(operationAttribute, string(op)),
	)
	finish := func() {
		queryCounter.Add(ctx, 1, attrs)
		queryDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}

	timeout := q.maxTime
	if timeout == 0 {
		if env := mongorest.GetEnvironment(); env != nil && env.Settings() != nil {
			timeout = env.Settings().Database.QueryTimeout
		}
	}
	if timeout <= 0 {
		return ctx, finish
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		finish()
	}
}

// FindAllQ runs a Q query against the given collection, applying the results to "out."
func FindAllQ(ctx context.Context, coll string, q Q, out any) error {
	ctx, end := startSpan(ctx, coll, OpFind, q)
	defer end()

	c, err := collection(coll)
	if err != nil {
		return err
	}

	cursor, err := c.Find(ctx, filterOrEmpty(q.filter), q.FindOptions())
	if err != nil {
		return errors.Wrapf(err, "finding documents in '%s'", coll)
	}

	return errors.Wrapf(cursor.All(ctx, out), "decoding documents from '%s'", coll)
}

// FindOneQ runs a Q query against the given collection, applying the result
// to "out". Only reads one document from the DB.
func FindOneQ(ctx context.Context, coll string, q Q, out any) error {
	ctx, end := startSpan(ctx, coll, OpFind, q)
	defer end()

	c, err := collection(coll)
	if err != nil {
		return err
	}

	return errors.WithStack(c.FindOne(ctx, filterOrEmpty(q.filter), q.FindOneOptions()).Decode(out))
}

// CountQ runs a Q count query against the given collection. Pagination is
// not applied to counts.
func CountQ(ctx context.Context, coll string, q Q) (int, error) {
	ctx, end := startSpan(ctx, coll, OpCount, q)
	defer end()

	c, err := collection(coll)
	if err != nil {
		return 0, err
	}

	n, err := c.CountDocuments(ctx, filterOrEmpty(q.filter))
	return int(n), errors.Wrapf(err, "counting documents in '%s'", coll)
}

// DistinctQ returns the distinct values of the plan's distinct field among
// the documents matching its filter.
func DistinctQ(ctx context.Context, coll string, q Q) ([]any, error) {
	if q.distinct == "" {
		return nil, errors.New("distinct query has no field")
	}

	ctx, end := startSpan(ctx, coll, OpDistinct, q)
	defer end()

	c, err := collection(coll)
	if err != nil {
		return nil, err
	}

	out, err := c.Distinct(ctx, q.distinct, filterOrEmpty(q.filter))
	return out, errors.Wrapf(err, "finding distinct values of '%s' in '%s'", q.distinct, coll)
}

// Insert inserts the specified item into the specified collection and
// returns its id.
func Insert(ctx context.Context, coll string, item any) (any, error) {
	c, err := collection(coll)
	if err != nil {
		return nil, err
	}

	res, err := c.InsertOne(ctx, item)
	if err != nil {
		return nil, errors.Wrapf(err, "inserting document into '%s'", coll)
	}

	return res.InsertedID, nil
}

// UpdateOne updates one matching document in the collection. It returns
// mongo.ErrNoDocuments when nothing matches.
func UpdateOne(ctx context.Context, coll string, query bson.M, update any) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}

	res, err := c.UpdateOne(ctx, query, update)
	if err != nil {
		return errors.Wrapf(err, "updating document in '%s'", coll)
	}
	if res.MatchedCount == 0 {
		return errors.WithStack(mongo.ErrNoDocuments)
	}

	return nil
}

// RemoveOne removes one matching document from the collection. It returns
// mongo.ErrNoDocuments when nothing matches.
func RemoveOne(ctx context.Context, coll string, query bson.M) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}

	res, err := c.DeleteOne(ctx, query)
	if err != nil {
		return errors.Wrapf(err, "deleting document from '%s'", coll)
	}
	if res.DeletedCount == 0 {
		return errors.WithStack(mongo.ErrNoDocuments)
	}

	return nil
}

// RemoveAll removes all items matching the query from the specified
// collection and returns how many were removed.
func RemoveAll(ctx context.Context, coll string, query bson.M) (int, error) {
	c, err := collection(coll)
	if err != nil {
		return 0, err
	}

	res, err := c.DeleteMany(ctx, filterOrEmpty(query))
	if err != nil {
		return 0, errors.Wrapf(err, "deleting documents from '%s'", coll)
	}

	grip.Debug(message.Fields{
		"message":    "removed documents",
		"collection": coll,
		"count":      res.DeletedCount,
	})

	return int(res.DeletedCount), nil
}

func filterOrEmpty(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
