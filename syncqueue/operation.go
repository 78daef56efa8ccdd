package syncqueue

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// OperationKind classifies a pending change-operation.
type OperationKind string

const (
	OperationKindCreate OperationKind = "create"
	OperationKindUpdate OperationKind = "update"
	OperationKindDelete OperationKind = "delete"
)

// IsValid reports whether the kind is one of the defined operation kinds.
func (k OperationKind) IsValid() bool {
	switch k {
	case OperationKindCreate, OperationKindUpdate, OperationKindDelete:
		return true
	default:
		return false
	}
}

// MergeKinds collapses the kind of an existing pending operation with the
// kind of a new write to the same entity:
//
//	merge(Create, Update) = Create
//	merge(Update, Update) = Update
//	merge(*, Delete)      = Delete
//
// Any other combination keeps the existing kind; an incoming Delete always
// wins. In particular a write after a pending Delete leaves the tombstone in
// place (creation is assumed to precede update for a given identity).
func MergeKinds(existing OperationKind, incoming OperationKind) OperationKind {
	if incoming == OperationKindDelete {
		return OperationKindDelete
	}

	return existing
}

// PendingOperations is an alias type for a slice of PendingOperation.
type PendingOperations = []PendingOperation

// PendingOperation is a DTO representing one not-yet-transmitted change for
// one entity. At most one PendingOperation exists per entity identity at any
// time prior to transmission; later writes coalesce into the existing one.
//
// While its properties are exported, it should only be constructed with the
// supplied factory method BuildPendingOperation.
type PendingOperation struct {
	EntityID      EntityIDString
	EntityType    EntityTypeString
	Kind          OperationKind
	PayloadJSON   []byte
	QueuedAt      time.Time
	LastChangedAt time.Time
}

// BuildPendingOperation is a factory method for PendingOperation.
//
// It populates the PendingOperation with the given scalar input.
// Returns an error if any identity field is empty, the kind is not defined,
// or payloadJSON is not valid JSON.
func BuildPendingOperation(
	entityID EntityIDString,
	entityType EntityTypeString,
	kind OperationKind,
	payloadJSON []byte,
	queuedAt time.Time,
) (PendingOperation, error) {

	if entityID == "" {
		return PendingOperation{}, ErrEmptyEntityID
	}

	if entityType == "" {
		return PendingOperation{}, ErrEmptyEntityType
	}

	if !kind.IsValid() {
		return PendingOperation{}, ErrInvalidOperationKind
	}

	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return PendingOperation{}, ErrInvalidPayloadJSON
	}

	return PendingOperation{
		EntityID:      entityID,
		EntityType:    entityType,
		Kind:          kind,
		PayloadJSON:   payloadJSON,
		QueuedAt:      queuedAt,
		LastChangedAt: queuedAt,
	}, nil
}

// Coalesce folds a new write into the existing pending operation: the kind is
// merged per MergeKinds and the payload is replaced with the fresh snapshot.
// The operation's identity and first-write time stay unchanged, which is what
// keeps transmission order FIFO by first write.
func (op PendingOperation) Coalesce(
	incoming OperationKind,
	payloadJSON []byte,
	changedAt time.Time,
) PendingOperation {

	op.Kind = MergeKinds(op.Kind, incoming)
	op.PayloadJSON = payloadJSON
	op.LastChangedAt = changedAt

	return op
}
