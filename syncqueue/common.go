package syncqueue

import (
	"errors"
)

var ErrNilEntity = errors.New("entity must not be nil")
var ErrNilSerializer = errors.New("serializer must not be nil")
var ErrEmptyEntityID = errors.New("entity id must not be empty")
var ErrEmptyEntityType = errors.New("entity type must not be empty")
var ErrInvalidPayloadJSON = errors.New("payload json is not valid")
var ErrInvalidOperationKind = errors.New("operation kind is not valid")

// ErrProxyResolution is reported when the original type for a suspected proxy
// cannot be determined. It is non-fatal: the resolver falls back to the
// candidate descriptor so unrelated serialization is not blocked.
var ErrProxyResolution = errors.New("original type for proxy could not be resolved")

// ErrEncodingFailed is returned when a member value cannot be rendered and the
// member is not a lazily materialized relation.
var ErrEncodingFailed = errors.New("encoding entity failed")

// ErrDecodingFailed is returned when an encoded payload cannot be mapped back
// onto a domain instance.
var ErrDecodingFailed = errors.New("decoding entity failed")

// ErrCoalescingConflict is returned when two writers raced on the same entity
// identity and the lookup-then-act unit could not complete. It is retryable.
var ErrCoalescingConflict = errors.New("coalescing conflict, concurrent write for the same entity")

// ErrNoPendingOperation is returned when an operation is expected for an
// entity identity but none is queued.
var ErrNoPendingOperation = errors.New("no pending operation for entity")

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyOperationsTableName = errors.New("empty operations table name supplied")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrRecordingWriteFailed = errors.New("recording write failed")
var ErrReadingQueueFailed = errors.New("reading pending operations failed")
var ErrScanningDBRowFailed = errors.New("scanning database row failed")
var ErrBuildingOperationFailed = errors.New("building pending operation failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
var ErrRemovingOperationFailed = errors.New("removing pending operation failed")

// EntityIDString is a type alias for string, representing an entity identity.
type EntityIDString = string

// EntityTypeString is a type alias for string, representing the name of an
// original domain type (never a generated proxy name).
type EntityTypeString = string
