package syncqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_BuildPendingOperation_ErrorCases(t *testing.T) {
	validTime := time.Now()
	validPayloadJSON := []byte(`{"id": "4711", "name": "test"}`)

	tests := []struct {
		name        string
		entityID    EntityIDString
		entityType  EntityTypeString
		kind        OperationKind
		payloadJSON []byte
		expectedErr error
	}{
		{
			name:        "empty entity id",
			entityID:    "",
			entityType:  "Customer",
			kind:        OperationKindCreate,
			payloadJSON: validPayloadJSON,
			expectedErr: ErrEmptyEntityID,
		},
		{
			name:        "empty entity type",
			entityID:    "4711",
			entityType:  "",
			kind:        OperationKindCreate,
			payloadJSON: validPayloadJSON,
			expectedErr: ErrEmptyEntityType,
		},
		{
			name:        "undefined operation kind",
			entityID:    "4711",
			entityType:  "Customer",
			kind:        OperationKind("upsert"),
			payloadJSON: validPayloadJSON,
			expectedErr: ErrInvalidOperationKind,
		},
		{
			name:        "invalid payload JSON",
			entityID:    "4711",
			entityType:  "Customer",
			kind:        OperationKindCreate,
			payloadJSON: []byte(`{"invalid": json}`),
			expectedErr: ErrInvalidPayloadJSON,
		},
		{
			name:        "empty payload JSON",
			entityID:    "4711",
			entityType:  "Customer",
			kind:        OperationKindCreate,
			payloadJSON: []byte(``),
			expectedErr: ErrInvalidPayloadJSON,
		},
		{
			name:        "nil payload JSON",
			entityID:    "4711",
			entityType:  "Customer",
			kind:        OperationKindCreate,
			payloadJSON: nil,
			expectedErr: ErrInvalidPayloadJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPendingOperation(tt.entityID, tt.entityType, tt.kind, tt.payloadJSON, validTime)
			assert.ErrorContains(t, err, tt.expectedErr.Error())
		})
	}
}

func Test_BuildPendingOperation_SetsBothTimestampsToQueuedAt(t *testing.T) {
	queuedAt := time.Now()

	op, err := BuildPendingOperation("4711", "Customer", OperationKindCreate, []byte(`{}`), queuedAt)

	require.NoError(t, err)
	assert.Equal(t, queuedAt, op.QueuedAt)
	assert.Equal(t, queuedAt, op.LastChangedAt)
}

func Test_MergeKinds(t *testing.T) {
	tests := []struct {
		name     string
		existing OperationKind
		incoming OperationKind
		expected OperationKind
	}{
		{"create then update keeps create", OperationKindCreate, OperationKindUpdate, OperationKindCreate},
		{"update then update keeps update", OperationKindUpdate, OperationKindUpdate, OperationKindUpdate},
		{"create then delete becomes delete", OperationKindCreate, OperationKindDelete, OperationKindDelete},
		{"update then delete becomes delete", OperationKindUpdate, OperationKindDelete, OperationKindDelete},
		{"delete then delete stays delete", OperationKindDelete, OperationKindDelete, OperationKindDelete},
		{"delete then create keeps delete", OperationKindDelete, OperationKindCreate, OperationKindDelete},
		{"delete then update keeps delete", OperationKindDelete, OperationKindUpdate, OperationKindDelete},
		{"update then create keeps update", OperationKindUpdate, OperationKindCreate, OperationKindUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MergeKinds(tt.existing, tt.incoming))
		})
	}
}

func Test_PendingOperation_Coalesce(t *testing.T) {
	queuedAt := time.Now().Add(-time.Minute)
	changedAt := time.Now()

	op, err := BuildPendingOperation("4711", "Customer", OperationKindCreate, []byte(`{"name": "old"}`), queuedAt)
	require.NoError(t, err)

	coalesced := op.Coalesce(OperationKindUpdate, []byte(`{"name": "new"}`), changedAt)

	assert.Equal(t, OperationKindCreate, coalesced.Kind, "existing kind must survive an incoming update")
	assert.Equal(t, []byte(`{"name": "new"}`), coalesced.PayloadJSON, "payload must be the fresh snapshot")
	assert.Equal(t, queuedAt, coalesced.QueuedAt, "first-write time must never move")
	assert.Equal(t, changedAt, coalesced.LastChangedAt)

	assert.Equal(t, []byte(`{"name": "old"}`), op.PayloadJSON, "coalescing must not mutate the receiver")
}

func Test_PendingOperation_Coalesce_DeleteUpgradesKind(t *testing.T) {
	queuedAt := time.Now()

	op, err := BuildPendingOperation("4711", "Customer", OperationKindUpdate, []byte(`{}`), queuedAt)
	require.NoError(t, err)

	coalesced := op.Coalesce(OperationKindDelete, []byte(`{"deleted":true}`), time.Now())

	assert.Equal(t, OperationKindDelete, coalesced.Kind)
}

func Test_OperationKind_IsValid(t *testing.T) {
	assert.True(t, OperationKindCreate.IsValid())
	assert.True(t, OperationKindUpdate.IsValid())
	assert.True(t, OperationKindDelete.IsValid())
	assert.False(t, OperationKind("").IsValid())
	assert.False(t, OperationKind("CREATE").IsValid())
}
