// Package syncqueue provides core abstractions and types for client-side
// data synchronization with proxy-transparent serialization.
//
// This package defines the fundamental types used across the different queue
// engine implementations: shape descriptors, the proxy-unwrapping resolver,
// the filtered serializer, and pending operations.
//
// Entities are plain structs; per-member markers are expressed with the
// `datasync` struct tag:
//   - `datasync:"-"` marks a member as excluded from any transmitted encoding
//   - `datasync:",relation"` marks a member as a (possibly lazily loaded)
//     relation to another entity
//   - `datasync:"wireName"` overrides the member name used on the wire
//
// When the runtime type of an entity is a generated proxy (a synthesized
// subtype used for access interception), the resolver maps it back to the
// declared original type before any type-driven decision is made, so the
// encoding of a proxy instance is indistinguishable from the encoding of the
// original.
//
// Common usage pattern:
//
//	cache := syncqueue.NewDescriptorCache()
//	registry := syncqueue.NewTypeRegistry()
//	registry.Register(reflect.TypeOf(LazyCustomer{}), reflect.TypeOf(Customer{}))
//
//	resolver, err := syncqueue.NewProxyUnwrappingResolver(cache, registry)
//	if err != nil {
//		// handle error
//	}
//
//	serializer, err := syncqueue.NewFilteredSerializer(resolver)
//	if err != nil {
//		// handle error
//	}
//
//	encoded, err := serializer.Encode(customer)
package syncqueue
