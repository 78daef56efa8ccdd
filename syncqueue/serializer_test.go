package syncqueue_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david1995/datasync-queue-go/syncqueue"
	"github.com/david1995/datasync-queue-go/testutil/fixtures"
)

func Test_NewFilteredSerializer_RequiresResolver(t *testing.T) {
	_, err := syncqueue.NewFilteredSerializer(nil)
	assert.ErrorIs(t, err, syncqueue.ErrNilResolver)
}

func Test_BuildEncodedEntity_ErrorCases(t *testing.T) {
	_, err := syncqueue.BuildEncodedEntity("", []byte(`{}`))
	assert.ErrorIs(t, err, syncqueue.ErrEmptyEntityType)

	_, err = syncqueue.BuildEncodedEntity("Customer", []byte(`{"invalid": json}`))
	assert.ErrorIs(t, err, syncqueue.ErrInvalidPayloadJSON)
}

func Test_FilteredSerializer_Encode_OmitsExcludedMembers(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	customer.LocalNotes = "must never be transmitted"

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)

	assert.Equal(t, "Customer", encoded.EntityType)
	assert.NotContains(t, string(encoded.PayloadJSON), "must never be transmitted")
	assert.NotContains(t, string(encoded.PayloadJSON), "LocalNotes")
	assert.Contains(t, string(encoded.PayloadJSON), `"name":"Ada Lovelace"`)
	assert.Contains(t, string(encoded.PayloadJSON), `"email":"ada@example.com"`)
}

func Test_FilteredSerializer_Encode_ProxyMatchesOriginalByteForByte(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	customer.LocalNotes = "kept on this device"

	original, err := serializer.Encode(customer)
	require.NoError(t, err)

	proxied, err := serializer.Encode(fixtures.ProxyOf(customer))
	require.NoError(t, err)

	assert.Equal(t, original.EntityType, proxied.EntityType)
	assert.Equal(t, string(original.PayloadJSON), string(proxied.PayloadJSON))
}

func Test_FilteredSerializer_Encode_IsIdempotentForSameState(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")

	first, err := serializer.Encode(customer)
	require.NoError(t, err)

	second, err := serializer.Encode(customer)
	require.NoError(t, err)

	assert.Equal(t, first.PayloadJSON, second.PayloadJSON)
}

func Test_FilteredSerializer_Encode_OmitsUnmaterializedRelations(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	require.False(t, customer.Orders.Materialized())
	require.Nil(t, customer.Profile)

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)

	assert.NotContains(t, string(encoded.PayloadJSON), `"orders"`)
	assert.NotContains(t, string(encoded.PayloadJSON), `"profile"`)
}

func Test_FilteredSerializer_Encode_IncludesMaterializedRelations(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	customer.Profile = &fixtures.Profile{DisplayName: "Ada", AvatarURL: "https://example.com/ada.png"}
	customer.Orders = fixtures.LazyOrders{
		Loaded: true,
		Orders: []fixtures.Order{
			{
				EntityModel: syncqueue.EntityModel{ID: uuid.NewString()},
				CustomerID:  customer.ID,
				TotalCents:  4200,
			},
		},
	}

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)

	assert.Contains(t, string(encoded.PayloadJSON), `"profile":{"displayName":"Ada"`)
	assert.Contains(t, string(encoded.PayloadJSON), `"orders":[{`)
	assert.Contains(t, string(encoded.PayloadJSON), `"totalCents":4200`)
	assert.True(t, jsoniter.ConfigFastest.Valid(encoded.PayloadJSON))
}

func Test_FilteredSerializer_Encode_WritesTimestampsWhenSet(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	updatedAt := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	customer.UpdatedAt = &updatedAt

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)

	assert.Contains(t, string(encoded.PayloadJSON), `"updatedAt":"2026-03-14T09:26:53Z"`)
}

func Test_FilteredSerializer_Encode_ErrorCases(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	_, err = serializer.Encode(nil)
	assert.ErrorIs(t, err, syncqueue.ErrNilEntity)

	var nilCustomer *fixtures.Customer
	_, err = serializer.Encode(nilCustomer)
	assert.ErrorIs(t, err, syncqueue.ErrEncodingFailed)
}

func Test_FilteredSerializer_Decode_RoundTripsEntityState(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)

	var decoded fixtures.Customer
	require.NoError(t, serializer.Decode(encoded, &decoded))

	assert.Equal(t, customer.ID, decoded.ID)
	assert.Equal(t, customer.Name, decoded.Name)
	assert.Equal(t, customer.Email, decoded.Email)
	assert.Empty(t, decoded.LocalNotes, "excluded members are never transmitted")
}

func Test_FilteredSerializer_Decode_RehydratesMaterializedRelations(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	customer.Profile = &fixtures.Profile{DisplayName: "Ada", AvatarURL: "https://example.com/ada.png"}
	customer.Orders = fixtures.LazyOrders{
		Loaded: true,
		Orders: []fixtures.Order{
			{
				EntityModel: syncqueue.EntityModel{ID: uuid.NewString()},
				CustomerID:  customer.ID,
				TotalCents:  4200,
			},
		},
	}

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)
	require.Contains(t, string(encoded.PayloadJSON), `"orders":[{`)

	var decoded fixtures.Customer
	require.NoError(t, serializer.Decode(encoded, &decoded))

	require.NotNil(t, decoded.Profile)
	assert.Equal(t, "Ada", decoded.Profile.DisplayName)

	require.True(t, decoded.Orders.Materialized())
	require.Len(t, decoded.Orders.Orders, 1)
	assert.Equal(t, customer.Orders.Orders[0].ID, decoded.Orders.Orders[0].ID)
	assert.Equal(t, customer.ID, decoded.Orders.Orders[0].CustomerID)
	assert.Equal(t, int64(4200), decoded.Orders.Orders[0].TotalCents)
}

type labeledNote struct {
	syncqueue.EntityModel
	Title string `datasync:"note_title"`
	Body  string `datasync:"body"`
}

func Test_FilteredSerializer_Decode_MapsRenamedMembersBackToFields(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	note := labeledNote{
		EntityModel: syncqueue.EntityModel{ID: uuid.NewString()},
		Title:       "shopping list",
		Body:        "milk, bread",
	}

	encoded, err := serializer.Encode(note)
	require.NoError(t, err)
	require.Contains(t, string(encoded.PayloadJSON), `"note_title":"shopping list"`)

	var decoded labeledNote
	require.NoError(t, serializer.Decode(encoded, &decoded))

	assert.Equal(t, note.ID, decoded.ID)
	assert.Equal(t, "shopping list", decoded.Title)
	assert.Equal(t, "milk, bread", decoded.Body)
}

func Test_FilteredSerializer_DecodePayload_AcceptsBarePayload(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")

	encoded, err := serializer.Encode(customer)
	require.NoError(t, err)

	var decoded fixtures.Customer
	require.NoError(t, serializer.DecodePayload(encoded.PayloadJSON, &decoded))

	assert.Equal(t, customer.ID, decoded.ID)
	assert.Equal(t, customer.Name, decoded.Name)

	assert.ErrorIs(t, serializer.DecodePayload(encoded.PayloadJSON, nil), syncqueue.ErrNilDecodeTarget)
}

func Test_FilteredSerializer_Decode_ErrorCases(t *testing.T) {
	serializer, _, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	encoded, err := syncqueue.BuildEncodedEntity("Customer", []byte(`{"name":"Ada"}`))
	require.NoError(t, err)

	assert.ErrorIs(t, serializer.Decode(encoded, nil), syncqueue.ErrNilDecodeTarget)

	var nilTarget *fixtures.Customer
	assert.ErrorIs(t, serializer.Decode(encoded, nilTarget), syncqueue.ErrNilDecodeTarget)

	var notAPointer fixtures.Customer
	assert.ErrorIs(t, serializer.Decode(encoded, notAPointer), syncqueue.ErrNilDecodeTarget)
}

func Test_FilteredSerializer_DecodeNew_ReconstructsOriginalType(t *testing.T) {
	serializer, registry, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")

	// Encoding a proxy tags the payload with the original type's name,
	// so decoding yields a Customer, not a LazyCustomer.
	encoded, err := serializer.Encode(fixtures.ProxyOf(customer))
	require.NoError(t, err)

	decoded, err := serializer.DecodeNew(encoded, registry)
	require.NoError(t, err)

	reconstructed, isCustomer := decoded.(*fixtures.Customer)
	require.True(t, isCustomer)
	assert.Equal(t, customer.ID, reconstructed.ID)
	assert.Equal(t, customer.Name, reconstructed.Name)
}

func Test_FilteredSerializer_DecodeNew_UnknownTypeName(t *testing.T) {
	serializer, registry, err := fixtures.NewFilteredSerializer()
	require.NoError(t, err)

	encoded, err := syncqueue.BuildEncodedEntity("Unregistered", []byte(`{}`))
	require.NoError(t, err)

	_, err = serializer.DecodeNew(encoded, registry)
	assert.ErrorIs(t, err, syncqueue.ErrUnknownEntityType)
}
