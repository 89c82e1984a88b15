package db

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Operation is the kind of read a query plan performs.
type Operation string

const (
	OpFind     Operation = "find"
	OpCount    Operation = "count"
	OpDistinct Operation = "distinct"
)

// Q holds the plan of a read query against one collection. Q is a value:
// every builder method returns a modified copy and leaves the receiver,
// including its maps and slices, untouched.
type Q struct {
	op         Operation
	filter     bson.M
	projection Projection
	sort       []string
	skip       int
	limit      int
	populate   []Populate
	distinct   string
	maxTime    time.Duration
}

// Query creates a find plan with the given filter.
func Query(filter bson.M) Q {
	return Q{
		op:     OpFind,
		filter: copyFilter(filter),
	}
}

// Filter replaces the filter of the plan.
func (q Q) Filter(filter bson.M) Q {
	q.filter = copyFilter(filter)
	return q
}

// Where narrows the plan's filter with an additional condition. An existing
// filter is never replaced: both are required to match.
func (q Q) Where(cond bson.M) Q {
	switch {
	case len(cond) == 0:
		return q
	case len(q.filter) == 0:
		q.filter = copyFilter(cond)
	default:
		q.filter = bson.M{"$and": bson.A{copyFilter(q.filter), copyFilter(cond)}}
	}

	return q
}

func (q Q) Project(projection Projection) Q {
	q.projection = projection.copy()
	return q
}

func (q Q) Sort(sort []string) Q {
	q.sort = append([]string(nil), sort...)
	return q
}

func (q Q) Skip(skip int) Q {
	q.skip = skip
	return q
}

func (q Q) Limit(limit int) Q {
	q.limit = limit
	return q
}

// Populate replaces the populate directives of the plan.
func (q Q) Populate(directives ...Populate) Q {
	q.populate = copyPopulate(directives)
	return q
}

// Distinct switches the plan to return the distinct values of a field.
func (q Q) Distinct(field string) Q {
	q.op = OpDistinct
	q.distinct = field
	return q
}

// Count switches the plan to count matching documents.
func (q Q) Count() Q {
	q.op = OpCount
	return q
}

func (q Q) MaxTime(duration time.Duration) Q {
	q.maxTime = duration
	return q
}

// Operation returns the kind of read the plan performs.
func (q Q) Operation() Operation {
	if q.op == "" {
		return OpFind
	}
	return q.op
}

func (q Q) GetFilter() bson.M         { return copyFilter(q.filter) }
func (q Q) GetProjection() Projection { return q.projection.copy() }
func (q Q) GetSort() []string         { return append([]string(nil), q.sort...) }
func (q Q) GetSkip() int              { return q.skip }
func (q Q) GetLimit() int             { return q.limit }
func (q Q) GetPopulate() []Populate   { return copyPopulate(q.populate) }
func (q Q) GetDistinct() string       { return q.distinct }
func (q Q) GetMaxTime() time.Duration { return q.maxTime }

// FindOptions converts the plan to driver find options.
func (q Q) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(q.projection) > 0 {
		opts.SetProjection(bson.D(q.projection))
	}
	if len(q.sort) > 0 {
		opts.SetSort(SortDocument(q.sort))
	}
	if q.skip > 0 {
		opts.SetSkip(int64(q.skip))
	}
	if q.limit > 0 {
		opts.SetLimit(int64(q.limit))
	}
	if q.maxTime > 0 {
		opts.SetMaxTime(q.maxTime)
	}

	return opts
}

// FindOneOptions converts the plan to driver find one options.
func (q Q) FindOneOptions() *options.FindOneOptions {
	opts := options.FindOne()
	if len(q.projection) > 0 {
		opts.SetProjection(bson.D(q.projection))
	}
	if len(q.sort) > 0 {
		opts.SetSort(SortDocument(q.sort))
	}
	if q.skip > 0 {
		opts.SetSkip(int64(q.skip))
	}
	if q.maxTime > 0 {
		opts.SetMaxTime(q.maxTime)
	}

	return opts
}

// SortDocument converts sort keys, where a leading "-" means descending,
// to a sort document.
func SortDocument(keys []string) bson.D {
	out := bson.D{}
	for _, key := range keys {
		if key == "" || key == "-" {
			continue
		}
		if strings.HasPrefix(key, "-") {
			out = append(out, bson.E{Key: key[1:], Value: -1})
			continue
		}
		out = append(out, bson.E{Key: strings.TrimPrefix(key, "+"), Value: 1})
	}

	return out
}

// Populate is a request to replace the reference ids at a path with the
// documents they reference.
type Populate struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
	// Select is a field list in the select grammar ("a,-b") applied to the
	// referenced documents.
	Select  string          `mapstructure:"select" json:"select,omitempty" yaml:"select,omitempty"`
	Match   bson.M          `mapstructure:"match" json:"match,omitempty" yaml:"match,omitempty"`
	Options PopulateOptions `mapstructure:"options" json:"options,omitempty" yaml:"options,omitempty"`
	// Model overrides the referenced model declared in the schema.
	Model string `mapstructure:"model" json:"model,omitempty" yaml:"model,omitempty"`
}

// PopulateOptions shape the list of referenced documents at a path.
type PopulateOptions struct {
	Sort  []string `mapstructure:"sort" json:"sort,omitempty" yaml:"sort,omitempty"`
	Limit int      `mapstructure:"limit" json:"limit,omitempty" yaml:"limit,omitempty"`
}

// PopulatePath returns the populated path.
func (p Populate) PopulatePath() string { return p.Path }

// PopulateModel returns the model overriding the schema reference, if any.
func (p Populate) PopulateModel() string { return p.Model }

func (p Populate) copy() Populate {
	p.Match = copyFilter(p.Match)
	p.Options.Sort = append([]string(nil), p.Options.Sort...)
	return p
}

func copyPopulate(directives []Populate) []Populate {
	if directives == nil {
		return nil
	}

	out := make([]Populate, 0, len(directives))
	for _, p := range directives {
		out = append(out, p.copy())
	}
	return out
}

// copyFilter copies the top level of a filter document. Nested values are
// shared; filters are never modified in place.
func copyFilter(filter bson.M) bson.M {
	if filter == nil {
		return nil
	}

	out := make(bson.M, len(filter))
	for k, v := range filter {
		out[k] = v
	}
	return out
}
