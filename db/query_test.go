package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestQueryIsImmutable(t *testing.T) {
	base := Query(bson.M{"tenant": "a"}).
		Project(Projection{{Key: "name", Value: 1}}).
		Sort([]string{"name"}).
		Populate(Populate{Path: "customer", Match: bson.M{"active": true}})

	narrowed := base.Where(bson.M{"age": bson.M{"$gte": 24}}).
		Project(base.GetProjection().Set("age", 1)).
		Sort([]string{"-age"}).
		Skip(5).
		Limit(10)

	assert.Equal(t, bson.M{"tenant": "a"}, base.GetFilter())
	assert.Equal(t, Projection{{Key: "name", Value: 1}}, base.GetProjection())
	assert.Equal(t, []string{"name"}, base.GetSort())
	assert.Zero(t, base.GetSkip())
	assert.Zero(t, base.GetLimit())

	assert.Equal(t, bson.M{"$and": bson.A{bson.M{"tenant": "a"}, bson.M{"age": bson.M{"$gte": 24}}}}, narrowed.GetFilter())
	assert.Equal(t, Projection{{Key: "name", Value: 1}, {Key: "age", Value: 1}}, narrowed.GetProjection())
	assert.Equal(t, []string{"-age"}, narrowed.GetSort())
	assert.Equal(t, 5, narrowed.GetSkip())
	assert.Equal(t, 10, narrowed.GetLimit())

	directives := narrowed.GetPopulate()
	require.Len(t, directives, 1)
	directives[0].Match["active"] = false
	assert.Equal(t, true, base.GetPopulate()[0].Match["active"])
}

func TestWhere(t *testing.T) {
	t.Run("EmptyCondition", func(t *testing.T) {
		q := Query(bson.M{"a": 1}).Where(nil)
		assert.Equal(t, bson.M{"a": 1}, q.GetFilter())
	})
	t.Run("EmptyFilter", func(t *testing.T) {
		q := Query(nil).Where(bson.M{"a": 1})
		assert.Equal(t, bson.M{"a": 1}, q.GetFilter())
	})
}

func TestOperation(t *testing.T) {
	assert.Equal(t, OpFind, Q{}.Operation())
	assert.Equal(t, OpCount, Query(nil).Count().Operation())

	q := Query(nil).Distinct("name")
	assert.Equal(t, OpDistinct, q.Operation())
	assert.Equal(t, "name", q.GetDistinct())
}

func TestFindOptions(t *testing.T) {
	opts := Query(nil).
		Project(SelectProjection("name,-_id")).
		Sort([]string{"-age", "name"}).
		Skip(2).
		Limit(3).
		MaxTime(time.Second).
		FindOptions()

	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 0}}, opts.Projection)
	assert.Equal(t, bson.D{{Key: "age", Value: -1}, {Key: "name", Value: 1}}, opts.Sort)
	require.NotNil(t, opts.Skip)
	assert.EqualValues(t, 2, *opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.EqualValues(t, 3, *opts.Limit)
	require.NotNil(t, opts.MaxTime)
	assert.Equal(t, time.Second, *opts.MaxTime)

	empty := Query(nil).FindOptions()
	assert.Nil(t, empty.Projection)
	assert.Nil(t, empty.Limit)
	assert.Nil(t, empty.Skip)
}

func TestSortDocument(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}}, SortDocument([]string{"+a", "", "-", "-b"}))
}

func TestPopulatePath(t *testing.T) {
	assert.Equal(t, "customer", Populate{Path: "customer"}.PopulatePath())
	assert.Equal(t, "Customer", Populate{Path: "buyer", Model: "Customer"}.PopulateModel())
}
