package fixtures

import (
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/david1995/datasync-queue-go/syncqueue"
)

// Profile holds auxiliary customer data reachable through a relation.
type Profile struct {
	DisplayName string `datasync:"displayName"`
	AvatarURL   string `datasync:"avatarUrl"`
}

// Order is a domain entity referenced by Customer through a lazy collection.
type Order struct {
	syncqueue.EntityModel
	CustomerID string `datasync:"customerId"`
	TotalCents int64  `datasync:"totalCents"`
}

// LazyOrders is a lazily materialized order collection handle.
type LazyOrders struct {
	Loaded bool
	Orders []Order
}

// Materialized reports whether the collection has been loaded.
func (l LazyOrders) Materialized() bool {
	return l.Loaded
}

// Value returns the loaded orders, or nil when not materialized.
func (l LazyOrders) Value() any {
	if !l.Loaded {
		return nil
	}

	return l.Orders
}

// UnmarshalJSON rehydrates the handle from the unwrapped encoding of its
// orders, marking the collection as materialized.
func (l *LazyOrders) UnmarshalJSON(data []byte) error {
	var orders []Order
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &orders); err != nil {
		return err
	}

	l.Loaded = true
	l.Orders = orders

	return nil
}

// Customer is the primary fixture entity. LocalNotes must never appear in a
// transmitted encoding; Profile and Orders are lazily materialized relations.
type Customer struct {
	syncqueue.EntityModel
	Name       string     `datasync:"name"`
	Email      string     `datasync:"email"`
	LocalNotes string     `datasync:"-"`
	Profile    *Profile   `datasync:"profile,relation"`
	Orders     LazyOrders `datasync:"orders,relation"`
}

// BuildCustomer creates a Customer with unmaterialized relations.
func BuildCustomer(id uuid.UUID, name string, email string) Customer {
	return Customer{
		EntityModel: syncqueue.EntityModel{ID: id.String()},
		Name:        name,
		Email:       email,
	}
}

// Ensure the fixture types satisfy the core interfaces.
var _ syncqueue.Entity = Customer{}
var _ syncqueue.LazyRef = LazyOrders{}
