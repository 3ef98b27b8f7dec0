package schema

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminUser returns the administrative account seeded when no user with
// email exists. passwordHash is stored as given.
func AdminUser(email, passwordHash string, now time.Time) User {
	return User{
		Email:      email,
		Password:   passwordHash,
		FirstName:  "Admin",
		LastName:   "User",
		Roles:      []string{RoleAdmin, RoleUser},
		AddressIDs: []primitive.ObjectID{},
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

type catalogEntry struct {
	name, description, price string
	stock                    int
	category                 string
	images                   []string
	rating                   string
	reviews                  int
}

var catalog = []catalogEntry{
	{
		name:        "Smartphone",
		description: "Latest smartphone with advanced features",
		price:       "699.99",
		stock:       50,
		category:    "Electronics",
		images:      []string{"phone1.jpg", "phone2.jpg"},
		rating:      "4.5",
		reviews:     120,
	},
	{
		name:        "Laptop",
		description: "High-performance laptop for work and gaming",
		price:       "1299.99",
		stock:       25,
		category:    "Electronics",
		images:      []string{"laptop1.jpg", "laptop2.jpg"},
		rating:      "4.8",
		reviews:     85,
	},
	{
		name:        "Programming Book",
		description: "Comprehensive guide to programming",
		price:       "39.99",
		stock:       100,
		category:    "Books",
		images:      []string{"book1.jpg"},
		rating:      "4.2",
		reviews:     45,
	},
	{
		name:        "Wireless Headphones",
		description: "Noise-cancelling wireless headphones",
		price:       "199.99",
		stock:       75,
		category:    "Electronics",
		images:      []string{"headphones1.jpg"},
		rating:      "4.6",
		reviews:     200,
	},
	{
		name:        "T-Shirt",
		description: "Cotton t-shirt in various colors",
		price:       "19.99",
		stock:       150,
		category:    "Clothing",
		images:      []string{"tshirt1.jpg"},
		rating:      "4.3",
		reviews:     89,
	},
}

// SampleProducts returns the catalog seeded into an empty products collection.
func SampleProducts(now time.Time) []Product {
	products := make([]Product, 0, len(catalog))
	for _, e := range catalog {
		products = append(products, Product{
			Name:          e.name,
			Description:   e.description,
			Price:         mustDecimal(e.price),
			StockQuantity: e.stock,
			Category:      e.category,
			Images:        append([]string(nil), e.images...),
			Rating:        mustDecimal(e.rating),
			ReviewCount:   e.reviews,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return products
}

func mustDecimal(s string) primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		panic(fmt.Sprintf("schema: invalid decimal literal %q: %v", s, err))
	}
	return d
}
