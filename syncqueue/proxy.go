package syncqueue

import (
	"reflect"
	"sync"
)

// ProxyRegistry is the narrow capability exposed by the proxy-generation
// mechanism: whether a type is a dynamically generated subtype created for
// interception purposes, and if so, what its original declared type is.
type ProxyRegistry interface {
	IsProxy(entityType reflect.Type) bool
	OriginalType(entityType reflect.Type) (reflect.Type, bool)
}

// TypeRegistry is an explicit proxy-to-original lookup table maintained by
// the proxy-generation collaborator. It also indexes original types by name
// so decoded payloads can be mapped back onto domain instances.
//
// All methods are safe for concurrent use.
type TypeRegistry struct {
	mu        sync.RWMutex
	originals map[reflect.Type]reflect.Type
	byName    map[string]reflect.Type
}

// NewTypeRegistry creates an empty TypeRegistry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		originals: make(map[reflect.Type]reflect.Type),
		byName:    make(map[string]reflect.Type),
	}
}

// Register records proxyType as a generated proxy of originalType.
// Pointer indirections on either type are stripped.
func (r *TypeRegistry) Register(proxyType reflect.Type, originalType reflect.Type) {
	proxyType = indirectType(proxyType)
	originalType = indirectType(originalType)

	if proxyType == nil || originalType == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.originals[proxyType] = originalType
	r.byName[originalType.Name()] = originalType
}

// IsProxy reports whether the given type was registered as a generated proxy.
func (r *TypeRegistry) IsProxy(entityType reflect.Type) bool {
	entityType = indirectType(entityType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, found := r.originals[entityType]

	return found
}

// OriginalType returns the original declared type for a registered proxy.
func (r *TypeRegistry) OriginalType(entityType reflect.Type) (reflect.Type, bool) {
	entityType = indirectType(entityType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	originalType, found := r.originals[entityType]

	return originalType, found
}

// OriginalTypeNamed returns the original type registered under the given name.
func (r *TypeRegistry) OriginalTypeNamed(typeName string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	originalType, found := r.byName[typeName]

	return originalType, found
}
