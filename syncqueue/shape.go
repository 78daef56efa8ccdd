package syncqueue

import (
	"reflect"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

const memberTagName = "datasync"
const memberTagExcluded = "-"
const memberTagOptRelation = "relation"

// Member describes one serializable member of a domain type.
//
// Name is the member name used on the wire, Index is the reflect field index
// path acting as the value accessor on an instance of the described type.
type Member struct {
	Name     string
	Index    []int
	Excluded bool
	Relation bool
}

// ShapeDescriptor is the resolved description of which members of a type are
// serializable and how. Members are ordered by declaration order.
//
// Invariant: for any two types where one is a proxy of the other, the resolved
// ShapeDescriptor used for serialization is identical in member set and
// exclusion flags - proxy identity is invisible to the encoding.
type ShapeDescriptor struct {
	TypeName string
	Members  []Member
}

// MemberNamed returns the member whose name matches case-insensitively.
// Case-insensitive matching is required because some proxy mechanisms alter
// member casing.
func (d ShapeDescriptor) MemberNamed(name string) (Member, bool) {
	for _, member := range d.Members {
		if strings.EqualFold(member.Name, name) {
			return member, true
		}
	}

	return Member{}, false
}

// DescriptorCache produces and memoizes ShapeDescriptors per type for the
// process lifetime. Describing a type is a pure function of its declared
// members and their tags, so entries never expire.
//
// The cache supports concurrent lookups; writes happen only on a miss.
type DescriptorCache struct {
	descriptors *gocache.Cache
}

// NewDescriptorCache creates an empty DescriptorCache.
func NewDescriptorCache() *DescriptorCache {
	return &DescriptorCache{
		descriptors: gocache.New(gocache.NoExpiration, 0),
	}
}

// Describe returns the ShapeDescriptor for the given type.
// It never fails; an unknown or non-struct type yields an empty descriptor.
func (c *DescriptorCache) Describe(entityType reflect.Type) ShapeDescriptor {
	entityType = indirectType(entityType)
	if entityType == nil {
		return ShapeDescriptor{}
	}

	key := typeKey(entityType)

	if cached, found := c.descriptors.Get(key); found {
		return cached.(ShapeDescriptor)
	}

	descriptor := describeType(entityType)
	c.descriptors.SetDefault(key, descriptor)

	return descriptor
}

func describeType(entityType reflect.Type) ShapeDescriptor {
	descriptor := ShapeDescriptor{TypeName: entityType.Name()}

	if entityType.Kind() != reflect.Struct {
		return descriptor
	}

	for _, field := range reflect.VisibleFields(entityType) {
		if field.Anonymous || field.PkgPath != "" {
			continue
		}

		descriptor.Members = append(descriptor.Members, memberFromField(field))
	}

	return descriptor
}

func memberFromField(field reflect.StructField) Member {
	member := Member{
		Name:  field.Name,
		Index: field.Index,
	}

	tagValue, hasTag := field.Tag.Lookup(memberTagName)
	if !hasTag {
		return member
	}

	name, options, _ := strings.Cut(tagValue, ",")

	switch name {
	case memberTagExcluded:
		member.Excluded = true
	case "":
		// keep the field name on the wire
	default:
		member.Name = name
	}

	for options != "" {
		var option string
		option, options, _ = strings.Cut(options, ",")

		if option == memberTagOptRelation {
			member.Relation = true
		}
	}

	return member
}

// typeKey builds a cache key that is unique per declared type.
func typeKey(entityType reflect.Type) string {
	if entityType.Name() == "" {
		return entityType.String()
	}

	return entityType.PkgPath() + "." + entityType.Name()
}

// indirectType strips pointer indirections from a type.
func indirectType(entityType reflect.Type) reflect.Type {
	for entityType != nil && entityType.Kind() == reflect.Pointer {
		entityType = entityType.Elem()
	}

	return entityType
}
