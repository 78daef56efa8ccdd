package postgresengine

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/david1995/datasync-queue-go/syncqueue"
	"github.com/david1995/datasync-queue-go/syncqueue/postgresengine/internal/adapters"
)

const (
	metricOperationDuration = "syncqueue_operation_duration_seconds"
	labelAction             = "action"
)

// Option defines a functional option for configuring the Queue.
type Option func(*Queue) error

// WithTableName sets the pending operations table name for the Queue.
func WithTableName(tableName string) Option {
	return func(q *Queue) error {
		if tableName == "" {
			return syncqueue.ErrEmptyOperationsTableName
		}

		q.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Queue.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Operation counts, durations, coalescing conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger syncqueue.Logger) Option {
	return func(q *Queue) error {
		q.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Queue.
// When configured, operational log messages carry the request context so
// logging backends can correlate them with active traces.
func WithContextualLogger(logger syncqueue.ContextualLogger) Option {
	return func(q *Queue) error {
		q.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Queue.
// The collector will receive operation durations and coalescing outcomes.
func WithMetrics(collector syncqueue.MetricsCollector) Option {
	return func(q *Queue) error {
		q.metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Queue.
// The collector will receive a span per queue operation, carrying the entity
// identity and outcome as attributes.
func WithTracing(collector syncqueue.TracingCollector) Option {
	return func(q *Queue) error {
		q.tracing = collector
		return nil
	}
}

// NewQueueFromPGXPool creates a new Queue using a pgx pool with optional configuration.
func NewQueueFromPGXPool(db *pgxpool.Pool, serializer Serializer, options ...Option) (Queue, error) {
	if db == nil {
		return Queue{}, syncqueue.ErrNilDatabaseConnection
	}

	return newQueue(adapters.NewPGXAdapter(db), serializer, options...)
}

// NewQueueFromSQLDB creates a new Queue using a sql.DB with optional configuration.
func NewQueueFromSQLDB(db *sql.DB, serializer Serializer, options ...Option) (Queue, error) {
	if db == nil {
		return Queue{}, syncqueue.ErrNilDatabaseConnection
	}

	return newQueue(adapters.NewSQLAdapter(db), serializer, options...)
}

// NewQueueFromSQLX creates a new Queue using a sqlx.DB with optional configuration.
func NewQueueFromSQLX(db *sqlx.DB, serializer Serializer, options ...Option) (Queue, error) {
	if db == nil {
		return Queue{}, syncqueue.ErrNilDatabaseConnection
	}

	return newQueue(adapters.NewSQLXAdapter(db), serializer, options...)
}

func newQueue(db adapters.DBAdapter, serializer Serializer, options ...Option) (Queue, error) {
	if serializer == nil {
		return Queue{}, syncqueue.ErrNilSerializer
	}

	queue := Queue{
		db:         db,
		serializer: serializer,
		tableName:  defaultOperationsTableName,
	}

	for _, option := range options {
		if err := option(&queue); err != nil {
			return Queue{}, err
		}
	}

	return queue, nil
}
