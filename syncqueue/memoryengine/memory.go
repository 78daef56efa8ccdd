package memoryengine

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/david1995/datasync-queue-go/syncqueue"
)

const (
	logMsgEncodeFailed       = "encoding entity failed, pending operation left unchanged"
	logMsgOperationInserted  = "pending operation inserted"
	logMsgOperationCoalesced = "pending operation coalesced"
	logMsgOperationRemoved   = "pending operation removed"
	logAttrError             = "error"
	logAttrEntityID          = "entity_id"
	logAttrEntityType        = "entity_type"
	logAttrKind              = "kind"
	metricRecordWrites       = "syncqueue_record_writes_total"
	metricQueueLength        = "syncqueue_pending_operations"
	labelOutcome             = "outcome"
	outcomeInserted          = "inserted"
	outcomeCoalesced         = "coalesced"
	lockStripeCount          = 64
)

// Serializer is the encoding capability the queue needs: rendering the
// current, filtered state of an entity. syncqueue.FilteredSerializer
// implements it.
type Serializer interface {
	Encode(entity any) (syncqueue.EncodedEntity, error)
}

// Queue is an in-memory append/coalesce log of pending change-operations
// keyed by entity identity. It guarantees at most one pending operation per
// entity at any time.
type Queue struct {
	serializer Serializer
	logger     syncqueue.Logger
	metrics    syncqueue.MetricsCollector

	stripes [lockStripeCount]sync.Mutex

	mu         sync.RWMutex
	operations map[syncqueue.EntityIDString]syncqueue.PendingOperation
	fifo       []syncqueue.EntityIDString
}

// Option defines a functional option for configuring the Queue.
type Option func(*Queue) error

// WithLogger sets the logger for the Queue.
func WithLogger(logger syncqueue.Logger) Option {
	return func(q *Queue) error {
		q.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Queue.
func WithMetrics(collector syncqueue.MetricsCollector) Option {
	return func(q *Queue) error {
		q.metrics = collector
		return nil
	}
}

// NewQueue creates an empty Queue using the given serializer with optional
// configuration.
func NewQueue(serializer Serializer, options ...Option) (*Queue, error) {
	if serializer == nil {
		return nil, syncqueue.ErrNilSerializer
	}

	queue := &Queue{
		serializer: serializer,
		operations: make(map[syncqueue.EntityIDString]syncqueue.PendingOperation),
	}

	for _, option := range options {
		if err := option(queue); err != nil {
			return nil, err
		}
	}

	return queue, nil
}

// RecordWrite records a local write to the entity.
//
// When no operation is pending for the entity's identity, a new one is
// inserted with the given kind. When one is already pending, the write
// coalesces into it: the kind is merged per syncqueue.MergeKinds and the
// payload is replaced with the freshly serialized current entity state.
//
// The payload snapshot is taken before the queue is touched: if serialization
// fails, the error is returned and any pending operation keeps its prior
// state - a broken payload never replaces a good one.
func (q *Queue) RecordWrite(
	ctx context.Context,
	entity syncqueue.Entity,
	kind syncqueue.OperationKind,
) error {

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if entity == nil {
		return syncqueue.ErrNilEntity
	}

	entityID := entity.EntityID()
	if entityID == "" {
		return syncqueue.ErrEmptyEntityID
	}

	if !kind.IsValid() {
		return syncqueue.ErrInvalidOperationKind
	}

	encoded, encodeErr := q.serializer.Encode(entity)
	if encodeErr != nil {
		if q.logger != nil {
			q.logger.Error(logMsgEncodeFailed, logAttrError, encodeErr.Error(), logAttrEntityID, entityID)
		}

		return encodeErr
	}

	stripe := &q.stripes[stripeFor(entityID)]
	stripe.Lock()
	defer stripe.Unlock()

	q.mu.RLock()
	existing, isPending := q.operations[entityID]
	q.mu.RUnlock()

	if isPending {
		return q.coalesce(existing, kind, encoded)
	}

	return q.insert(entityID, kind, encoded)
}

func (q *Queue) insert(
	entityID syncqueue.EntityIDString,
	kind syncqueue.OperationKind,
	encoded syncqueue.EncodedEntity,
) error {

	operation, buildErr := syncqueue.BuildPendingOperation(
		entityID, encoded.EntityType, kind, encoded.PayloadJSON, time.Now())
	if buildErr != nil {
		return buildErr
	}

	q.mu.Lock()
	q.operations[entityID] = operation
	q.fifo = append(q.fifo, entityID)
	queueLength := len(q.operations)
	q.mu.Unlock()

	q.logOperation(logMsgOperationInserted, operation)
	q.recordOutcome(outcomeInserted, queueLength)

	return nil
}

func (q *Queue) coalesce(
	existing syncqueue.PendingOperation,
	kind syncqueue.OperationKind,
	encoded syncqueue.EncodedEntity,
) error {

	coalesced := existing.Coalesce(kind, encoded.PayloadJSON, time.Now())

	q.mu.Lock()
	q.operations[coalesced.EntityID] = coalesced
	queueLength := len(q.operations)
	q.mu.Unlock()

	q.logOperation(logMsgOperationCoalesced, coalesced)
	q.recordOutcome(outcomeCoalesced, queueLength)

	return nil
}

// Pending returns all pending operations in transmission order: FIFO by each
// entity's first untransmitted write.
func (q *Queue) Pending(ctx context.Context) (syncqueue.PendingOperations, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	operations := make(syncqueue.PendingOperations, 0, len(q.fifo))
	for _, entityID := range q.fifo {
		operations = append(operations, q.operations[entityID])
	}

	return operations, nil
}

// PendingFor returns the single pending operation for the given entity
// identity, or syncqueue.ErrNoPendingOperation when there is none.
func (q *Queue) PendingFor(
	ctx context.Context,
	entityID syncqueue.EntityIDString,
) (syncqueue.PendingOperation, error) {

	if ctxErr := ctx.Err(); ctxErr != nil {
		return syncqueue.PendingOperation{}, ctxErr
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	operation, isPending := q.operations[entityID]
	if !isPending {
		return syncqueue.PendingOperation{}, syncqueue.ErrNoPendingOperation
	}

	return operation, nil
}

// MarkTransmitted removes the pending operation for the given entity identity
// after the transport has delivered it. The next write to the entity starts a
// fresh operation.
func (q *Queue) MarkTransmitted(ctx context.Context, entityID syncqueue.EntityIDString) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	stripe := &q.stripes[stripeFor(entityID)]
	stripe.Lock()
	defer stripe.Unlock()

	q.mu.Lock()
	operation, isPending := q.operations[entityID]
	if !isPending {
		q.mu.Unlock()
		return syncqueue.ErrNoPendingOperation
	}

	delete(q.operations, entityID)

	for i, queuedID := range q.fifo {
		if queuedID == entityID {
			q.fifo = append(q.fifo[:i], q.fifo[i+1:]...)
			break
		}
	}

	queueLength := len(q.operations)
	q.mu.Unlock()

	q.logOperation(logMsgOperationRemoved, operation)
	q.recordQueueLength(queueLength)

	return nil
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.operations)
}

func (q *Queue) logOperation(msg string, operation syncqueue.PendingOperation) {
	if q.logger != nil {
		q.logger.Info(msg,
			logAttrEntityID, operation.EntityID,
			logAttrEntityType, operation.EntityType,
			logAttrKind, string(operation.Kind))
	}
}

func (q *Queue) recordOutcome(outcome string, queueLength int) {
	if q.metrics != nil {
		q.metrics.IncrementCounter(metricRecordWrites, map[string]string{labelOutcome: outcome})
	}

	q.recordQueueLength(queueLength)
}

func (q *Queue) recordQueueLength(queueLength int) {
	if q.metrics != nil {
		q.metrics.RecordValue(metricQueueLength, float64(queueLength), nil)
	}
}

func stripeFor(entityID syncqueue.EntityIDString) uint32 {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(entityID))

	return hash.Sum32() % lockStripeCount
}
