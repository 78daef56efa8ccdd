package syncqueue

import (
	"errors"
	"reflect"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var ErrNilResolver = errors.New("resolver must not be nil")
var ErrNilDecodeTarget = errors.New("decode target must be a non-nil pointer")
var ErrUnknownEntityType = errors.New("no original type registered for entity type name")

var timeType = reflect.TypeOf(time.Time{})

// EncodedEntity is the self-describing result of a filtered encode: a keyed
// JSON payload plus the identity of the *original* domain type, never a
// synthetic proxy name.
//
// While its properties are exported, it should only be constructed with the
// supplied factory method BuildEncodedEntity.
type EncodedEntity struct {
	EntityType  EntityTypeString
	PayloadJSON []byte
}

// BuildEncodedEntity is a factory method for EncodedEntity.
//
// Returns an error if entityType is empty or payloadJSON is not valid JSON.
func BuildEncodedEntity(entityType EntityTypeString, payloadJSON []byte) (EncodedEntity, error) {
	if entityType == "" {
		return EncodedEntity{}, ErrEmptyEntityType
	}

	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return EncodedEntity{}, ErrInvalidPayloadJSON
	}

	return EncodedEntity{
		EntityType:  entityType,
		PayloadJSON: payloadJSON,
	}, nil
}

// TypeNamer is the lookup capability needed to map an encoded type-identity
// tag back to a domain type. *TypeRegistry implements it.
type TypeNamer interface {
	OriginalTypeNamed(typeName string) (reflect.Type, bool)
}

// FilteredSerializer renders entity graphs to a transmissible JSON encoding,
// consulting a Resolver for every type encountered so that generated proxies
// encode exactly like their original types.
//
// Members are written in descriptor order, which makes encodes of the same
// state byte-identical. Excluded members are never written. An absent or
// unmaterialized relation is simply omitted rather than failing the encode.
// The source object is never mutated.
type FilteredSerializer struct {
	resolver Resolver
	json     jsoniter.API
}

// NewFilteredSerializer creates a FilteredSerializer using the given resolver.
func NewFilteredSerializer(resolver Resolver) (*FilteredSerializer, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}

	return &FilteredSerializer{
		resolver: resolver,
		json:     jsoniter.ConfigCompatibleWithStandardLibrary,
	}, nil
}

// Encode renders the entity to an EncodedEntity tagged with the original
// domain type's name.
func (s *FilteredSerializer) Encode(entity any) (EncodedEntity, error) {
	if entity == nil {
		return EncodedEntity{}, ErrNilEntity
	}

	descriptor := s.resolver.Resolve(reflect.TypeOf(entity))

	value := indirectValue(reflect.ValueOf(entity))
	if !value.IsValid() || value.Kind() != reflect.Struct {
		return EncodedEntity{}, errors.Join(ErrEncodingFailed, ErrNilEntity)
	}

	stream := s.json.BorrowStream(nil)
	defer s.json.ReturnStream(stream)

	if err := s.encodeStruct(stream, value, descriptor); err != nil {
		return EncodedEntity{}, err
	}

	payloadJSON := make([]byte, len(stream.Buffer()))
	copy(payloadJSON, stream.Buffer())

	return BuildEncodedEntity(descriptor.TypeName, payloadJSON)
}

// Decode maps an encoded payload back onto the given target, which must be a
// non-nil pointer to the intended domain type.
//
// Decoding mirrors Encode: the target type's resolved descriptor drives the
// mapping, so members are matched by their wire name and excluded members are
// never touched. Relation members carry their unwrapped encoding on the wire;
// a lazy handle rehydrates itself through json.Unmarshaler, plain relations
// are decoded through their own descriptors.
func (s *FilteredSerializer) Decode(encoded EncodedEntity, target any) error {
	return s.DecodePayload(encoded.PayloadJSON, target)
}

// DecodePayload decodes a bare JSON payload without the type-identity tag.
// It follows the same descriptor-driven mapping as Decode.
func (s *FilteredSerializer) DecodePayload(payloadJSON []byte, target any) error {
	if target == nil {
		return ErrNilDecodeTarget
	}

	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Pointer || targetValue.IsNil() {
		return ErrNilDecodeTarget
	}

	structValue := allocIndirect(targetValue)
	if structValue.Kind() != reflect.Struct || structValue.Type() == timeType {
		if err := s.json.Unmarshal(payloadJSON, target); err != nil {
			return errors.Join(ErrDecodingFailed, err)
		}

		return nil
	}

	descriptor := s.resolver.Resolve(structValue.Type())
	if err := s.decodeStruct(payloadJSON, structValue, descriptor); err != nil {
		return errors.Join(ErrDecodingFailed, err)
	}

	return nil
}

// DecodeNew reconstructs a fresh instance of the domain type named by the
// encoding's type-identity tag, looked up through the given TypeNamer.
// The returned value is a pointer to the reconstructed entity.
func (s *FilteredSerializer) DecodeNew(encoded EncodedEntity, types TypeNamer) (any, error) {
	originalType, found := types.OriginalTypeNamed(encoded.EntityType)
	if !found {
		return nil, errors.Join(ErrDecodingFailed, ErrUnknownEntityType)
	}

	target := reflect.New(originalType).Interface()

	if err := s.Decode(encoded, target); err != nil {
		return nil, err
	}

	return target, nil
}

func (s *FilteredSerializer) encodeStruct(
	stream *jsoniter.Stream,
	value reflect.Value,
	descriptor ShapeDescriptor,
) error {

	stream.WriteObjectStart()
	needsSeparator := false

	for _, member := range descriptor.Members {
		if member.Excluded {
			continue
		}

		memberValue, present := memberValueOf(value, member)
		if !present {
			continue
		}

		if needsSeparator {
			stream.WriteMore()
		}
		needsSeparator = true

		stream.WriteObjectField(member.Name)

		if err := s.encodeValue(stream, memberValue); err != nil {
			return err
		}
	}

	stream.WriteObjectEnd()

	if stream.Error != nil {
		return errors.Join(ErrEncodingFailed, stream.Error)
	}

	return nil
}

func (s *FilteredSerializer) encodeValue(stream *jsoniter.Stream, value reflect.Value) error {
	value = indirectValue(value)
	if !value.IsValid() {
		stream.WriteNil()
		return nil
	}

	switch value.Kind() {
	case reflect.Struct:
		if value.Type() == timeType {
			break
		}

		return s.encodeStruct(stream, value, s.resolver.Resolve(value.Type()))

	case reflect.Slice, reflect.Array:
		if value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.Uint8 {
			break // byte slices keep their default base64 encoding
		}

		stream.WriteArrayStart()

		for i := 0; i < value.Len(); i++ {
			if i > 0 {
				stream.WriteMore()
			}

			if err := s.encodeValue(stream, value.Index(i)); err != nil {
				return err
			}
		}

		stream.WriteArrayEnd()

		return nil
	}

	stream.WriteVal(value.Interface())

	if stream.Error != nil {
		return errors.Join(ErrEncodingFailed, stream.Error)
	}

	return nil
}

// decodeStruct maps the payload's keyed members onto the struct value, driven
// by the descriptor. Members absent from the payload or encoded as null keep
// their current value, matching how Encode omits absent members.
func (s *FilteredSerializer) decodeStruct(
	payloadJSON []byte,
	value reflect.Value,
	descriptor ShapeDescriptor,
) error {

	members := map[string]jsoniter.RawMessage{}
	if err := s.json.Unmarshal(payloadJSON, &members); err != nil {
		return err
	}

	for _, member := range descriptor.Members {
		if member.Excluded {
			continue
		}

		raw, present := rawMemberNamed(members, member.Name)
		if !present || isJSONNull(raw) {
			continue
		}

		field, fieldErr := value.FieldByIndexErr(member.Index)
		if fieldErr != nil || !field.IsValid() || !field.CanSet() {
			continue
		}

		if err := s.decodeValue(raw, field, member.Relation); err != nil {
			return err
		}
	}

	return nil
}

func (s *FilteredSerializer) decodeValue(
	raw jsoniter.RawMessage,
	field reflect.Value,
	relation bool,
) error {

	// A lazy relation handle was encoded in its unwrapped form, so it cannot
	// be decoded structurally. The handle rehydrates itself instead; handle
	// types that support decoding implement json.Unmarshaler.
	if relation {
		if _, isLazy := field.Addr().Interface().(LazyRef); isLazy {
			return s.json.Unmarshal(raw, field.Addr().Interface())
		}
	}

	target := allocIndirect(field)

	switch {
	case target.Kind() == reflect.Struct && target.Type() != timeType:
		return s.decodeStruct(raw, target, s.resolver.Resolve(target.Type()))

	case target.Kind() == reflect.Slice && isStructSlice(target.Type()):
		return s.decodeSlice(raw, target)
	}

	return s.json.Unmarshal(raw, target.Addr().Interface())
}

// decodeSlice decodes a slice of structs element by element so that nested
// members keep their descriptor-driven wire names.
func (s *FilteredSerializer) decodeSlice(raw jsoniter.RawMessage, target reflect.Value) error {
	elements := []jsoniter.RawMessage{}
	if err := s.json.Unmarshal(raw, &elements); err != nil {
		return err
	}

	slice := reflect.MakeSlice(target.Type(), len(elements), len(elements))

	for i, element := range elements {
		if isJSONNull(element) {
			continue
		}

		if err := s.decodeValue(element, slice.Index(i), false); err != nil {
			return err
		}
	}

	target.Set(slice)

	return nil
}

// rawMemberNamed looks up a payload member by wire name, falling back to a
// case-insensitive match the same way MemberNamed does.
func rawMemberNamed(members map[string]jsoniter.RawMessage, name string) (jsoniter.RawMessage, bool) {
	if raw, found := members[name]; found {
		return raw, true
	}

	for key, raw := range members {
		if strings.EqualFold(key, name) {
			return raw, true
		}
	}

	return nil, false
}

func isJSONNull(raw jsoniter.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// allocIndirect strips pointer indirections from a settable value, allocating
// nil pointers along the way.
func allocIndirect(value reflect.Value) reflect.Value {
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			value.Set(reflect.New(value.Type().Elem()))
		}

		value = value.Elem()
	}

	return value
}

// isStructSlice reports whether a slice type holds structs, directly or behind
// a pointer, that need descriptor-driven decoding.
func isStructSlice(sliceType reflect.Type) bool {
	elem := indirectType(sliceType.Elem())

	return elem.Kind() == reflect.Struct && elem != timeType
}

// memberValueOf reads a member value from an instance. A member that cannot
// be reached, an unmaterialized relation, or a nil value is reported as
// absent instead of failing the encode.
func memberValueOf(value reflect.Value, member Member) (reflect.Value, bool) {
	memberValue, err := value.FieldByIndexErr(member.Index)
	if err != nil || !memberValue.IsValid() {
		return reflect.Value{}, false
	}

	if member.Relation {
		return materializedRelation(memberValue)
	}

	if isNilValue(memberValue) {
		return reflect.Value{}, false
	}

	return memberValue, true
}

// materializedRelation unwraps a relation member. Lazy handles expose their
// loaded state through the LazyRef interface; plain relations count as
// materialized when they are non-nil.
func materializedRelation(memberValue reflect.Value) (reflect.Value, bool) {
	if memberValue.CanInterface() {
		if lazy, isLazy := memberValue.Interface().(LazyRef); isLazy {
			if !lazy.Materialized() {
				return reflect.Value{}, false
			}

			loaded := reflect.ValueOf(lazy.Value())
			if !loaded.IsValid() || isNilValue(loaded) {
				return reflect.Value{}, false
			}

			return loaded, true
		}
	}

	if isNilValue(memberValue) {
		return reflect.Value{}, false
	}

	return memberValue, true
}

func isNilValue(value reflect.Value) bool {
	switch value.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return value.IsNil()
	default:
		return false
	}
}

// indirectValue strips pointer and interface indirections from a value.
// A nil pointer or interface yields an invalid value.
func indirectValue(value reflect.Value) reflect.Value {
	for value.IsValid() &&
		(value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface) {

		if value.IsNil() {
			return reflect.Value{}
		}

		value = value.Elem()
	}

	return value
}
