package syncqueue

import (
	"errors"
	"reflect"
)

const (
	logMsgProxyResolutionFailed = "falling back to candidate descriptor, original type for proxy not found"
	logAttrProxyType            = "proxy_type"
	logAttrError                = "error"
)

var ErrNilDescriptorCache = errors.New("descriptor cache must not be nil")
var ErrNilProxyRegistry = errors.New("proxy registry must not be nil")
var ErrNilDelegateResolver = errors.New("delegate resolver must not be nil")

// Resolver produces the ShapeDescriptor that drives serialization of a
// runtime type.
type Resolver interface {
	Resolve(entityType reflect.Type) ShapeDescriptor
}

// CacheResolver resolves descriptors straight from a DescriptorCache, without
// any proxy awareness. It is the default delegate of ProxyUnwrappingResolver.
type CacheResolver struct {
	cache *DescriptorCache
}

// NewCacheResolver creates a CacheResolver on top of the given cache.
func NewCacheResolver(cache *DescriptorCache) *CacheResolver {
	return &CacheResolver{cache: cache}
}

// Resolve returns the memoized descriptor for the given type.
func (r *CacheResolver) Resolve(entityType reflect.Type) ShapeDescriptor {
	return r.cache.Describe(entityType)
}

// ProxyUnwrappingResolver corrects descriptors for generated proxy types.
//
// A candidate descriptor obtained from the delegate is trusted as-is for
// regular types. For a type the registry identifies as a proxy, the
// descriptor is recomputed from the proxy's original type: members the proxy
// mechanism introduced (interception plumbing) are discarded, and exclusion
// markers declared on the original are re-applied even when the proxy's copy
// of the member lost them. The corrected descriptor reports the original
// type's name, so proxy identity never leaks into an encoding.
type ProxyUnwrappingResolver struct {
	delegate Resolver
	cache    *DescriptorCache
	registry ProxyRegistry
	logger   Logger
}

// ResolverOption defines a functional option for configuring ProxyUnwrappingResolver.
type ResolverOption func(*ProxyUnwrappingResolver) error

// WithDelegate sets the underlying resolver that produces candidate
// descriptors. By default candidates come from the descriptor cache directly.
func WithDelegate(delegate Resolver) ResolverOption {
	return func(r *ProxyUnwrappingResolver) error {
		if delegate == nil {
			return ErrNilDelegateResolver
		}

		r.delegate = delegate

		return nil
	}
}

// WithResolverLogger sets the logger used to report non-fatal resolution
// fallbacks at warn level.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *ProxyUnwrappingResolver) error {
		r.logger = logger
		return nil
	}
}

// NewProxyUnwrappingResolver creates a ProxyUnwrappingResolver with optional
// configuration.
func NewProxyUnwrappingResolver(
	cache *DescriptorCache,
	registry ProxyRegistry,
	options ...ResolverOption,
) (*ProxyUnwrappingResolver, error) {

	if cache == nil {
		return nil, ErrNilDescriptorCache
	}

	if registry == nil {
		return nil, ErrNilProxyRegistry
	}

	resolver := &ProxyUnwrappingResolver{
		delegate: NewCacheResolver(cache),
		cache:    cache,
		registry: registry,
	}

	for _, option := range options {
		if err := option(resolver); err != nil {
			return nil, err
		}
	}

	return resolver, nil
}

// Resolve returns the descriptor to use for serializing the given runtime
// type. It never fails: when the registry flags a type as a proxy but cannot
// name its original type, the candidate descriptor is returned unchanged and
// the condition is logged.
func (r *ProxyUnwrappingResolver) Resolve(entityType reflect.Type) ShapeDescriptor {
	candidate := r.delegate.Resolve(entityType)

	entityType = indirectType(entityType)
	if entityType == nil || !r.registry.IsProxy(entityType) {
		return candidate
	}

	originalType, found := r.registry.OriginalType(entityType)
	if !found || indirectType(originalType) == nil {
		if r.logger != nil {
			r.logger.Warn(logMsgProxyResolutionFailed,
				logAttrError, ErrProxyResolution.Error(),
				logAttrProxyType, entityType.Name())
		}

		return candidate
	}

	return unwrapCandidate(candidate, r.cache.Describe(originalType))
}

// unwrapCandidate rebuilds the candidate descriptor against the original
// type's real member set.
//
// A candidate member whose name has no counterpart on the original
// (case-insensitive match) is proxy-introduced plumbing and is dropped, never
// flagged as an error. A candidate member that does correspond to a real
// member takes over the original's name and flags: proxy-generated copies may
// fail to carry exclusion markers that exist on the original, virtual member,
// and that defect is corrected here. Re-applying a marker the copy already
// carried is a no-op. Only the index path stays the candidate's, since values
// are read from the proxy instance.
func unwrapCandidate(candidate ShapeDescriptor, original ShapeDescriptor) ShapeDescriptor {
	corrected := ShapeDescriptor{
		TypeName: original.TypeName,
		Members:  make([]Member, 0, len(original.Members)),
	}

	for _, member := range original.Members {
		counterpart, found := candidate.MemberNamed(member.Name)
		if !found {
			continue
		}

		member.Index = counterpart.Index
		corrected.Members = append(corrected.Members, member)
	}

	return corrected
}
