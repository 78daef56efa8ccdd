package fixtures

import (
	"reflect"
	"time"

	"github.com/david1995/datasync-queue-go/syncqueue"
)

// LazyCustomer is a hand-built stand-in for the subtype a proxy generator
// would synthesize from Customer to intercept member access.
//
// It reproduces the defects such generators exhibit: the Name member's casing
// is altered and its wire-name tag is gone, the exclusion marker on
// LocalNotes is lost, and two interception-plumbing members exist that have
// no counterpart on Customer. The resolver must correct all of this.
type LazyCustomer struct {
	ID         string     `datasync:"id"`
	UpdatedAt  *time.Time `datasync:"updatedAt"`
	Version    *string    `datasync:"version"`
	Deleted    bool       `datasync:"deleted"`
	NAME       string
	Email      string   `datasync:"email"`
	LocalNotes string
	Profile    *Profile   `datasync:"profile,relation"`
	Orders     LazyOrders `datasync:"orders,relation"`

	InterceptorState map[string]any
	LoaderHandle     string
}

// EntityID returns the immutable identity of the proxied entity.
func (p LazyCustomer) EntityID() syncqueue.EntityIDString {
	return p.ID
}

// ProxyOf wraps a Customer in its generated-proxy stand-in, the way a lazy
// loader would hand out intercepted instances instead of the declared type.
func ProxyOf(customer Customer) LazyCustomer {
	return LazyCustomer{
		ID:         customer.ID,
		UpdatedAt:  customer.UpdatedAt,
		Version:    customer.Version,
		Deleted:    customer.Deleted,
		NAME:       customer.Name,
		Email:      customer.Email,
		LocalNotes: customer.LocalNotes,
		Profile:    customer.Profile,
		Orders:     customer.Orders,

		InterceptorState: map[string]any{"loaded": false},
		LoaderHandle:     "lazy-loader",
	}
}

// NewTypeRegistry returns a registry pre-populated with the generated proxy
// types of the fixture domain.
func NewTypeRegistry() *syncqueue.TypeRegistry {
	registry := syncqueue.NewTypeRegistry()
	registry.Register(reflect.TypeOf(LazyCustomer{}), reflect.TypeOf(Customer{}))

	return registry
}

// NewFilteredSerializer wires a descriptor cache, the fixture type registry,
// and a proxy-unwrapping resolver into a ready-to-use serializer.
func NewFilteredSerializer() (*syncqueue.FilteredSerializer, *syncqueue.TypeRegistry, error) {
	registry := NewTypeRegistry()

	resolver, err := syncqueue.NewProxyUnwrappingResolver(syncqueue.NewDescriptorCache(), registry)
	if err != nil {
		return nil, nil, err
	}

	serializer, err := syncqueue.NewFilteredSerializer(resolver)
	if err != nil {
		return nil, nil, err
	}

	return serializer, registry, nil
}

var _ syncqueue.Entity = LazyCustomer{}
