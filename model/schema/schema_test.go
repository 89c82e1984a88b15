package schema

import (
	"testing"
	"time"

	"github.com/mongodb/anser/bsonutil"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type favorites struct {
	Animal string `bson:"animal"`
	Color  string `bson:"color"`
}

type purchase struct {
	Item   primitive.ObjectID `bson:"item" ref:"Product"`
	Number int                `bson:"number"`
}

type customer struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Name      string               `bson:"name"`
	Age       int                  `bson:"age,omitempty"`
	Favorites favorites            `bson:"favorites"`
	Purchases []purchase           `bson:"purchases"`
	Tags      []string             `bson:"tags"`
	Joined    time.Time            `bson:"joined"`
	Secret    string               `bson:"-"`
	Returns   []primitive.ObjectID `bson:"returns" ref:"Invoice"`
}

var (
	customerNameKey      = bsonutil.MustHaveTag(customer{}, "Name")
	customerFavoritesKey = bsonutil.MustHaveTag(customer{}, "Favorites")
	favoritesAnimalKey   = bsonutil.MustHaveTag(favorites{}, "Animal")
	customerPurchasesKey = bsonutil.MustHaveTag(customer{}, "Purchases")
	purchaseItemKey      = bsonutil.MustHaveTag(purchase{}, "Item")
)

func TestFromStruct(t *testing.T) {
	Convey("With a schema built from a struct", t, func() {
		s, err := FromStruct("Customer", "customers", &customer{})
		So(err, ShouldBeNil)
		So(s.Collection, ShouldEqual, "customers")

		Convey("scalar fields should use their bson keys and types", func() {
			info, ok := s.Resolve(customerNameKey)
			So(ok, ShouldBeTrue)
			So(info.Kind, ShouldEqual, PathScalar)
			So(info.Type, ShouldEqual, TypeString)

			info, ok = s.Resolve("age")
			So(ok, ShouldBeTrue)
			So(info.Type, ShouldEqual, TypeNumber)

			info, ok = s.Resolve("joined")
			So(ok, ShouldBeTrue)
			So(info.Type, ShouldEqual, TypeDate)
		})

		Convey("ignored fields should not be declared", func() {
			_, ok := s.Resolve("secret")
			So(ok, ShouldBeFalse)
		})

		Convey("nested documents should resolve through dotted paths", func() {
			info, ok := s.Resolve(bsonutil.GetDottedKeyName(customerFavoritesKey, favoritesAnimalKey))
			So(ok, ShouldBeTrue)
			So(info.Kind, ShouldEqual, PathScalar)
			So(info.IsArray, ShouldBeFalse)
		})

		Convey("references inside arrays of sub-documents should resolve", func() {
			info, ok := s.Resolve(bsonutil.GetDottedKeyName(customerPurchasesKey, purchaseItemKey))
			So(ok, ShouldBeTrue)
			So(info.Kind, ShouldEqual, PathReference)
			So(info.Ref, ShouldEqual, "Product")
			So(info.IsArray, ShouldBeTrue)
		})

		Convey("arrays of references should be references", func() {
			info, ok := s.Resolve("returns")
			So(ok, ShouldBeTrue)
			So(info.Kind, ShouldEqual, PathReference)
			So(info.Ref, ShouldEqual, "Invoice")
			So(info.IsArray, ShouldBeTrue)
		})

		Convey("arrays of scalars should be arrays", func() {
			info, ok := s.Resolve("tags")
			So(ok, ShouldBeTrue)
			So(info.Kind, ShouldEqual, PathArray)
		})

		Convey("numeric segments should index into arrays", func() {
			info, ok := s.Resolve("purchases.0.item")
			So(ok, ShouldBeTrue)
			So(info.Ref, ShouldEqual, "Product")
		})

		Convey("unknown paths should not resolve", func() {
			_, ok := s.Resolve("favorites.food")
			So(ok, ShouldBeFalse)
			_, ok = s.Resolve("name.first")
			So(ok, ShouldBeFalse)
			_, ok = s.Resolve("")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Building a schema from a non-struct should fail", t, func() {
		_, err := FromStruct("Customer", "customers", "nope")
		So(err, ShouldNotBeNil)
		_, err = FromStruct("", "customers", customer{})
		So(err, ShouldNotBeNil)
	})
}

func TestFromDefinition(t *testing.T) {
	Convey("With a schema built from definitions", t, func() {
		s, err := FromDefinition("Invoice", "invoices", "", map[string]Definition{
			"customer": {Ref: "Customer"},
			"amount":   {Type: TypeNumber},
			"receipt":  {Type: TypeString},
			"products": {Ref: "Product", Array: true},
			"lines": {
				Array: true,
				Fields: map[string]Definition{
					"sku": {Type: TypeString},
				},
			},
		})
		So(err, ShouldBeNil)

		Convey("an objectid _id should be declared implicitly", func() {
			info, ok := s.Resolve(IDField)
			So(ok, ShouldBeTrue)
			So(info.Type, ShouldEqual, TypeObjectID)
		})

		Convey("references should default to objectid", func() {
			info, ok := s.Resolve("customer")
			So(ok, ShouldBeTrue)
			So(info.Kind, ShouldEqual, PathReference)
			So(info.Type, ShouldEqual, TypeObjectID)
		})

		Convey("nested definitions should default to objects", func() {
			info, ok := s.Resolve("lines")
			So(ok, ShouldBeTrue)
			So(info.Type, ShouldEqual, TypeObject)
			So(info.Kind, ShouldEqual, PathArray)

			info, ok = s.Resolve("lines.sku")
			So(ok, ShouldBeTrue)
			So(info.IsArray, ShouldBeTrue)
		})
	})

	Convey("Invalid definitions should be rejected", t, func() {
		_, err := FromDefinition("Invoice", "invoices", "", map[string]Definition{
			"amount": {Type: "money"},
		})
		So(err, ShouldNotBeNil)

		_, err = FromDefinition("Invoice", "invoices", "", map[string]Definition{
			"customer": {Ref: "Customer", Fields: map[string]Definition{"name": {}}},
		})
		So(err, ShouldNotBeNil)

		_, err = FromDefinition("Invoice", "invoices", "uuid", nil)
		So(err, ShouldNotBeNil)
	})
}

func TestRegistry(t *testing.T) {
	Convey("With a registry of two models", t, func() {
		r := NewRegistry()
		c, err := FromStruct("Customer", "customers", customer{})
		So(err, ShouldBeNil)
		So(r.Register(c), ShouldBeNil)

		p, err := FromDefinition("Product", "products", "", map[string]Definition{"name": {Type: TypeString}})
		So(err, ShouldBeNil)
		So(r.Register(p), ShouldBeNil)

		Convey("models should be listed in order", func() {
			So(r.Models(), ShouldResemble, []string{"Customer", "Product"})
		})

		Convey("paths should resolve per model", func() {
			So(r.HasPath("Customer", "name"), ShouldBeTrue)
			So(r.HasPath("Product", "name"), ShouldBeTrue)
			So(r.HasPath("Product", "age"), ShouldBeFalse)
			So(r.HasPath("Vendor", "name"), ShouldBeFalse)
		})

		Convey("missing reference targets should be reported", func() {
			err := r.CheckReferences()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Invoice")
		})

		Convey("invalid schemas should not register", func() {
			So(r.Register(nil), ShouldNotBeNil)
			So(r.Register(&Schema{}), ShouldNotBeNil)
		})
	})
}
