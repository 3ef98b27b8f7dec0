package schema

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role tags stored on User.Roles.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// User is a store account. Email is unique (see the email_unique index).
type User struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Email      string               `bson:"email" json:"email"`
	Password   string               `bson:"password" json:"-"`
	FirstName  string               `bson:"firstName" json:"firstName"`
	LastName   string               `bson:"lastName" json:"lastName"`
	Roles      []string             `bson:"roles" json:"roles"`
	AddressIDs []primitive.ObjectID `bson:"addressIds" json:"addressIds"`
	Enabled    bool                 `bson:"enabled" json:"enabled"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Product is a catalog entry. Price and Rating are exact decimals.
type Product struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string               `bson:"name" json:"name"`
	Description   string               `bson:"description" json:"description"`
	Price         primitive.Decimal128 `bson:"price" json:"price"`
	StockQuantity int                  `bson:"stockQuantity" json:"stockQuantity"`
	Category      string               `bson:"category" json:"category"`
	Images        []string             `bson:"images" json:"images"`
	Rating        primitive.Decimal128 `bson:"rating" json:"rating"`
	ReviewCount   int                  `bson:"reviewCount" json:"reviewCount"`
	Active        bool                 `bson:"active" json:"active"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}
