// Package schema declares the internet-store collections, their indexes and
// the reference documents seeded on first run.
package schema

import "go.mongodb.org/mongo-driver/bson"

// Collection names.
const (
	Users     = "users"
	Products  = "products"
	Orders    = "orders"
	Addresses = "addresses"
	Carts     = "carts"
)

// Collections lists every collection the store expects to exist.
var Collections = []string{Users, Products, Orders, Addresses, Carts}

// CountedCollections are the collections whose document counts are reported
// after a run.
var CountedCollections = []string{Users, Products, Orders, Addresses}

// IndexRef names an index on a collection.
type IndexRef struct {
	Collection string
	Name       string
	Label      string
}

// LegacyIndexes are left over from an earlier products schema and are dropped
// before the current indexes are created.
var LegacyIndexes = []IndexRef{
	{Collection: Products, Name: "name_text_description_text", Label: "old text index"},
	{Collection: Products, Name: "name_1_description_1", Label: "old compound index"},
}

// IndexSpec describes one index to create.
type IndexSpec struct {
	Collection string
	Name       string
	Label      string
	Keys       bson.D
	Unique     bool
	// Weights applies to text indexes only.
	Weights bson.D
}

// Indexes is the full index set, in creation order.
var Indexes = []IndexSpec{
	{
		Collection: Users,
		Name:       "email_unique",
		Label:      "users email index",
		Keys:       bson.D{{Key: "email", Value: 1}},
		Unique:     true,
	},
	{
		Collection: Products,
		Name:       "product_text_search",
		Label:      "products text search index",
		Keys:       bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
		Weights:    bson.D{{Key: "name", Value: 10}, {Key: "description", Value: 5}},
	},
	{
		Collection: Products,
		Name:       "category_index",
		Label:      "products category index",
		Keys:       bson.D{{Key: "category", Value: 1}},
	},
	{
		Collection: Products,
		Name:       "price_index",
		Label:      "products price index",
		Keys:       bson.D{{Key: "price", Value: 1}},
	},
	{
		Collection: Products,
		Name:       "active_index",
		Label:      "products active status index",
		Keys:       bson.D{{Key: "active", Value: 1}},
	},
	{
		Collection: Orders,
		Name:       "user_orders_index",
		Label:      "orders user index",
		Keys:       bson.D{{Key: "userId", Value: 1}},
	},
	{
		Collection: Orders,
		Name:       "order_status_index",
		Label:      "orders status index",
		Keys:       bson.D{{Key: "status", Value: 1}},
	},
	{
		Collection: Orders,
		Name:       "order_date_index",
		Label:      "orders date index",
		Keys:       bson.D{{Key: "createdAt", Value: -1}},
	},
	{
		Collection: Addresses,
		Name:       "user_addresses_index",
		Label:      "addresses user index",
		Keys:       bson.D{{Key: "userId", Value: 1}},
	},
}
