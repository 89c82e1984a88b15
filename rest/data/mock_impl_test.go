package data

import (
	"context"
	"testing"

	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/schema"
	adb "github.com/mongodb/anser/db"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockConnectorSuite struct {
	ctx  context.Context
	conn *MockConnector

	suite.Suite
}

func TestMockConnectorSuite(t *testing.T) {
	suite.Run(t, new(MockConnectorSuite))
}

func (s *MockConnectorSuite) SetupTest() {
	s.ctx = context.Background()

	schemas := schema.NewRegistry()
	customer, err := schema.FromDefinition("Customer", "customers", schema.TypeString, map[string]schema.Definition{
		"name": {Type: schema.TypeString},
		"age":  {Type: schema.TypeNumber},
		"favorites": {Fields: map[string]schema.Definition{
			"animal": {Type: schema.TypeString},
		}},
		"purchases": {Array: true, Fields: map[string]schema.Definition{
			"item":   {Ref: "Product"},
			"number": {Type: schema.TypeNumber},
		}},
		"returns": {Ref: "Invoice", Array: true},
	})
	s.Require().NoError(err)
	invoice, err := schema.FromDefinition("Invoice", "invoices", schema.TypeString, map[string]schema.Definition{
		"customer": {Ref: "Customer"},
		"amount":   {Type: schema.TypeNumber},
	})
	s.Require().NoError(err)
	product, err := schema.FromDefinition("Product", "products", schema.TypeString, map[string]schema.Definition{
		"name":  {Type: schema.TypeString},
		"price": {Type: schema.TypeNumber},
	})
	s.Require().NoError(err)
	for _, sch := range []*schema.Schema{customer, invoice, product} {
		s.Require().NoError(schemas.Register(sch))
	}

	s.conn = NewMockConnector(schemas)
	s.conn.Documents["Customer"] = []map[string]any{
		{
			"_id":       "c1",
			"name":      "Bob",
			"age":       int32(30),
			"favorites": map[string]any{"animal": "cat"},
			"purchases": []any{
				map[string]any{"item": "p1", "number": int32(2)},
				map[string]any{"item": "p2", "number": int32(1)},
			},
			"returns": []any{"i1", "i2"},
		},
		{
			"_id":  "c2",
			"name": "John",
			"age":  int32(24),
			"purchases": []any{
				map[string]any{"item": "p2", "number": int32(5)},
			},
			"returns": []any{},
		},
		{
			"_id":  "c3",
			"name": "Jane",
			"age":  int32(19),
		},
	}
	s.conn.Documents["Invoice"] = []map[string]any{
		{"_id": "i1", "customer": "c1", "amount": int32(10)},
		{"_id": "i2", "customer": "c1", "amount": int32(20)},
		{"_id": "i3", "customer": "c9", "amount": int32(30)},
	}
	s.conn.Documents["Product"] = []map[string]any{
		{"_id": "p1", "name": "Apple", "price": 1.5},
		{"_id": "p2", "name": "Pear", "price": 2.5},
	}
}

func ids(docs []map[string]any) []any {
	out := make([]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc["_id"])
	}
	return out
}

func (s *MockConnectorSuite) TestFindFilterSortAndPaginate() {
	q := db.Query(bson.M{"age": bson.M{"$gte": int32(24)}}).Sort([]string{"-age"})
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Equal([]any{"c1", "c2"}, ids(docs))

	docs, err = s.conn.FindDocuments(s.ctx, "Customer", db.Query(nil).Sort([]string{"name"}).Skip(1).Limit(1))
	s.Require().NoError(err)
	s.Equal([]any{"c3"}, ids(docs))

	docs, err = s.conn.FindDocuments(s.ctx, "Customer", db.Query(nil).Skip(5))
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *MockConnectorSuite) TestFindProjection() {
	q := db.Query(bson.M{"_id": "c1"}).Project(db.SelectProjection("name,favorites.animal"))
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(map[string]any{
		"_id":       "c1",
		"name":      "Bob",
		"favorites": map[string]any{"animal": "cat"},
	}, docs[0])
}

func (s *MockConnectorSuite) TestResultsAreCopies() {
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", db.Query(bson.M{"_id": "c1"}))
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	docs[0]["name"] = "changed"
	docs[0]["favorites"].(map[string]any)["animal"] = "changed"

	s.Equal("Bob", s.conn.Documents["Customer"][0]["name"])
	s.Equal("cat", s.conn.Documents["Customer"][0]["favorites"].(map[string]any)["animal"])
}

func (s *MockConnectorSuite) TestFindDocument() {
	doc, err := s.conn.FindDocument(s.ctx, "Customer", db.Query(bson.M{"name": "Jane"}))
	s.Require().NoError(err)
	s.Equal("c3", doc["_id"])

	_, err = s.conn.FindDocument(s.ctx, "Customer", db.Query(bson.M{"name": "Nobody"}))
	s.Require().Error(err)
	s.True(adb.ResultsNotFound(err))
}

func (s *MockConnectorSuite) TestPopulateArrayOfReferences() {
	q := db.Query(bson.M{"_id": "c1"}).Populate(db.Populate{Path: "returns"})
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal([]any{
		map[string]any{"_id": "i1", "customer": "c1", "amount": int32(10)},
		map[string]any{"_id": "i2", "customer": "c1", "amount": int32(20)},
	}, docs[0]["returns"])
}

func (s *MockConnectorSuite) TestPopulateNestedReferenceWithSelect() {
	q := db.Query(bson.M{"_id": "c1"}).Populate(db.Populate{Path: "purchases.item", Select: "name"})
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal([]any{
		map[string]any{"item": map[string]any{"_id": "p1", "name": "Apple"}, "number": int32(2)},
		map[string]any{"item": map[string]any{"_id": "p2", "name": "Pear"}, "number": int32(1)},
	}, docs[0]["purchases"])
}

func (s *MockConnectorSuite) TestPopulateSharedReferencesAreIndependent() {
	q := db.Query(nil).Sort([]string{"_id"}).Populate(db.Populate{Path: "purchases.item"})
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 3)

	first := docs[0]["purchases"].([]any)[1].(map[string]any)["item"].(map[string]any)
	second := docs[1]["purchases"].([]any)[0].(map[string]any)["item"].(map[string]any)
	s.Equal("p2", first["_id"])
	s.Equal("p2", second["_id"])
	first["name"] = "changed"
	s.Equal("Pear", second["name"])
}

func (s *MockConnectorSuite) TestPopulateMatchDropsArrayElements() {
	q := db.Query(bson.M{"_id": "c1"}).Populate(db.Populate{
		Path:  "returns",
		Match: bson.M{"amount": bson.M{"$gt": int32(15)}},
	})
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal([]any{"i2"}, ids(toDocuments(docs[0]["returns"])))
}

func (s *MockConnectorSuite) TestPopulateSortAndLimit() {
	q := db.Query(bson.M{"_id": "c1"}).Populate(db.Populate{
		Path:    "returns",
		Options: db.PopulateOptions{Sort: []string{"-amount"}, Limit: 1},
	})
	docs, err := s.conn.FindDocuments(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal([]any{"i2"}, ids(toDocuments(docs[0]["returns"])))
}

func (s *MockConnectorSuite) TestPopulateMissingSingleReference() {
	q := db.Query(nil).Sort([]string{"_id"}).Populate(db.Populate{Path: "customer", Select: "name"})
	docs, err := s.conn.FindDocuments(s.ctx, "Invoice", q)
	s.Require().NoError(err)
	s.Require().Len(docs, 3)
	s.Equal(map[string]any{"_id": "c1", "name": "Bob"}, docs[0]["customer"])
	s.Nil(docs[2]["customer"])
}

func (s *MockConnectorSuite) TestPopulateExcludedID() {
	q := db.Query(bson.M{"_id": "i1"}).Populate(db.Populate{Path: "customer", Select: "name,-_id"})
	doc, err := s.conn.FindDocument(s.ctx, "Invoice", q)
	s.Require().NoError(err)
	s.Equal(map[string]any{"name": "Bob"}, doc["customer"])
}

func (s *MockConnectorSuite) TestPopulateNonReferenceIsSkipped() {
	q := db.Query(bson.M{"_id": "c1"}).Populate(db.Populate{Path: "name"}, db.Populate{Path: "missing.path"})
	doc, err := s.conn.FindDocument(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Equal("Bob", doc["name"])
}

func (s *MockConnectorSuite) TestPopulateExplicitModel() {
	s.conn.Documents["Customer"][2]["favorite"] = "p1"
	q := db.Query(bson.M{"_id": "c3"}).Populate(db.Populate{Path: "favorite", Model: "Product", Select: "name"})
	doc, err := s.conn.FindDocument(s.ctx, "Customer", q)
	s.Require().NoError(err)
	s.Equal(map[string]any{"_id": "p1", "name": "Apple"}, doc["favorite"])
}

func (s *MockConnectorSuite) TestCountAndDistinct() {
	n, err := s.conn.CountDocuments(s.ctx, "Customer", db.Query(bson.M{"age": bson.M{"$lt": int32(25)}}).Count())
	s.Require().NoError(err)
	s.Equal(2, n)

	vals, err := s.conn.DistinctValues(s.ctx, "Customer", db.Query(nil).Distinct("purchases.item"))
	s.Require().NoError(err)
	s.Equal([]any{"p1", "p2"}, vals)

	_, err = s.conn.DistinctValues(s.ctx, "Customer", db.Query(nil))
	s.Error(err)
}

func (s *MockConnectorSuite) TestCreateDocument() {
	id, err := s.conn.CreateDocument(s.ctx, "Product", map[string]any{"name": "Plum"})
	s.Require().NoError(err)
	s.IsType(primitive.ObjectID{}, id)
	s.Len(s.conn.Documents["Product"], 3)

	id, err = s.conn.CreateDocument(s.ctx, "Product", map[string]any{"_id": "p9", "name": "Fig"})
	s.Require().NoError(err)
	s.Equal("p9", id)

	_, err = s.conn.CreateDocument(s.ctx, "Product", map[string]any{"_id": "p1"})
	s.Require().Error(err)
	s.True(db.IsDuplicateKey(err))
}

func (s *MockConnectorSuite) TestUpdateDocument() {
	err := s.conn.UpdateDocument(s.ctx, "Customer", bson.M{"_id": "c3"}, map[string]any{
		"name":             "Janet",
		"favorites.animal": "dog",
	})
	s.Require().NoError(err)

	doc, err := s.conn.FindDocument(s.ctx, "Customer", db.Query(bson.M{"_id": "c3"}))
	s.Require().NoError(err)
	s.Equal("Janet", doc["name"])
	s.Equal(map[string]any{"animal": "dog"}, doc["favorites"])

	err = s.conn.UpdateDocument(s.ctx, "Customer", bson.M{"_id": "c9"}, map[string]any{"name": "x"})
	s.True(adb.ResultsNotFound(err))
}

func (s *MockConnectorSuite) TestDeleteDocuments() {
	s.Require().NoError(s.conn.DeleteDocument(s.ctx, "Invoice", bson.M{"_id": "i3"}))
	s.True(adb.ResultsNotFound(s.conn.DeleteDocument(s.ctx, "Invoice", bson.M{"_id": "i3"})))

	n, err := s.conn.DeleteDocuments(s.ctx, "Invoice", bson.M{"customer": "c1"})
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Empty(s.conn.Documents["Invoice"])
}

func toDocuments(val any) []map[string]any {
	var out []map[string]any
	for _, elem := range val.([]any) {
		out = append(out, elem.(map[string]any))
	}
	return out
}
