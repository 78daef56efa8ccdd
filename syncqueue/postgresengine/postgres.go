package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import

	"github.com/david1995/datasync-queue-go/syncqueue"
	"github.com/david1995/datasync-queue-go/syncqueue/postgresengine/internal/adapters"
)

const (
	defaultOperationsTableName   = "pending_operations"
	logMsgBuildQueryFailed       = "failed to build query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgBuildOperationFailed   = "failed to build pending operation from database row"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgEncodeFailed           = "encoding entity failed, pending operation left unchanged"
	logMsgCoalescingConflict     = "coalescing conflict detected"
	logMsgWriteRecorded          = "write recorded"
	logMsgOperationsRead         = "pending operations read"
	logMsgQueueLengthRead        = "queue length read"
	logMsgOperationRemoved       = "pending operation removed"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "operation queue: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrEntityID              = "entity_id"
	logAttrEntityType            = "entity_type"
	logAttrKind                  = "kind"
	logAttrOperationCount        = "operation_count"
	logAttrDurationMS            = "duration_ms"
	logActionRecordWrite         = "record write"
	logActionReadPending         = "read pending"
	logActionMarkTransmitted     = "mark transmitted"
	logActionQueueLength         = "queue length"
	spanNameRecordWrite          = "syncqueue.record_write"
	spanNameReadPending          = "syncqueue.read_pending"
	spanNameMarkTransmitted      = "syncqueue.mark_transmitted"
	spanNameQueueLength          = "syncqueue.queue_length"
	spanAttrEntityID             = "entity_id"
	spanAttrKind                 = "kind"
	spanAttrError                = "error"
	spanStatusSuccess            = "success"
	spanStatusError              = "error"
	colEntityID                  = "entity_id"
	colEntityType                = "entity_type"
	colKind                      = "kind"
	colPayload                   = "payload"
	colQueuedAt                  = "queued_at"
	colLastChangedAt             = "last_changed_at"
	dialectPostgres              = "postgres"
	kindMergeCaseTemplate        = "CASE WHEN excluded.%[1]s = ? THEN excluded.%[1]s ELSE %[2]s.%[1]s END"
	excludedColumnTemplate       = "excluded.%s"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

type sqlQueryString = string

// Serializer is the encoding capability the queue needs: rendering the
// current, filtered state of an entity. syncqueue.FilteredSerializer
// implements it.
type Serializer interface {
	Encode(entity any) (syncqueue.EncodedEntity, error)
}

// Queue is a PostgreSQL-backed append/coalesce log of pending
// change-operations keyed by entity identity. It leverages a database adapter
// and supports customizable logging, metrics, and table configuration.
type Queue struct {
	db               adapters.DBAdapter
	serializer       Serializer
	tableName        string
	logger           syncqueue.Logger
	contextualLogger syncqueue.ContextualLogger
	metrics          syncqueue.MetricsCollector
	tracing          syncqueue.TracingCollector
}

type queueRow struct {
	entityID      string
	entityType    string
	kind          string
	payload       []byte
	queuedAt      time.Time
	lastChangedAt time.Time
}

// RecordWrite records a local write to the entity.
//
// The entity's current state is serialized first; if that fails, the error is
// returned and any pending operation keeps its prior state. Otherwise a
// single upsert either inserts the first pending operation for the entity or
// coalesces into the existing one: the kind is merged (an incoming Delete
// wins, otherwise the existing kind is kept, so Create followed by Update
// stays Create) and the payload is replaced with the fresh snapshot. The row
// identity and queued_at never change, which keeps at most one operation per
// entity and preserves FIFO transmission order.
func (q Queue) RecordWrite(
	ctx context.Context,
	entity syncqueue.Entity,
	kind syncqueue.OperationKind,
) error {

	if entity == nil {
		return syncqueue.ErrNilEntity
	}

	if entity.EntityID() == "" {
		return syncqueue.ErrEmptyEntityID
	}

	if !kind.IsValid() {
		return syncqueue.ErrInvalidOperationKind
	}

	ctx, span := q.startTraceSpan(ctx, spanNameRecordWrite, map[string]string{
		spanAttrEntityID: entity.EntityID(),
		spanAttrKind:     string(kind),
	})

	encoded, encodeErr := q.serializer.Encode(entity)
	if encodeErr != nil {
		q.logError(ctx, logMsgEncodeFailed, encodeErr, logAttrEntityID, entity.EntityID())
		q.finishTraceSpanError(span, encodeErr)

		return encodeErr
	}

	sqlQuery, buildQueryErr := q.buildRecordWriteQuery(entity.EntityID(), encoded, kind)
	if buildQueryErr != nil {
		q.logError(ctx, logMsgBuildQueryFailed, buildQueryErr)
		q.finishTraceSpanError(span, buildQueryErr)

		return buildQueryErr
	}

	start := time.Now()
	result, execErr := q.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	q.logQueryWithDuration(sqlQuery, logActionRecordWrite, duration)

	if execErr != nil {
		if isRetryableConflict(execErr) {
			q.logOperation(ctx, logMsgCoalescingConflict, logAttrEntityID, entity.EntityID())
			q.finishTraceSpanError(span, execErr)

			return errors.Join(syncqueue.ErrCoalescingConflict, execErr)
		}

		q.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		q.finishTraceSpanError(span, execErr)

		return errors.Join(syncqueue.ErrRecordingWriteFailed, execErr)
	}

	if _, rowsAffectedErr := result.RowsAffected(); rowsAffectedErr != nil {
		q.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		q.finishTraceSpanError(span, rowsAffectedErr)

		return errors.Join(syncqueue.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	q.logOperation(
		ctx,
		logMsgWriteRecorded,
		logAttrEntityID, entity.EntityID(),
		logAttrEntityType, encoded.EntityType,
		logAttrKind, string(kind),
		logAttrDurationMS, q.durationToMilliseconds(duration))

	q.recordDuration(logActionRecordWrite, duration)
	q.finishTraceSpanSuccess(span)

	return nil
}

// Pending retrieves all pending operations in transmission order: FIFO by
// each entity's first untransmitted write.
func (q Queue) Pending(ctx context.Context) (syncqueue.PendingOperations, error) {
	return q.readOperations(ctx, q.buildPendingQuery(nil))
}

// PendingFor retrieves the single pending operation for the given entity
// identity, or syncqueue.ErrNoPendingOperation when there is none.
func (q Queue) PendingFor(
	ctx context.Context,
	entityID syncqueue.EntityIDString,
) (syncqueue.PendingOperation, error) {

	operations, err := q.readOperations(ctx, q.buildPendingQuery(&entityID))
	if err != nil {
		return syncqueue.PendingOperation{}, err
	}

	if len(operations) == 0 {
		return syncqueue.PendingOperation{}, syncqueue.ErrNoPendingOperation
	}

	return operations[0], nil
}

// MarkTransmitted removes the pending operation for the given entity identity
// after the transport has delivered it.
func (q Queue) MarkTransmitted(ctx context.Context, entityID syncqueue.EntityIDString) error {
	ctx, span := q.startTraceSpan(ctx, spanNameMarkTransmitted, map[string]string{
		spanAttrEntityID: entityID,
	})

	sqlQuery, buildQueryErr := q.buildMarkTransmittedQuery(entityID)
	if buildQueryErr != nil {
		q.logError(ctx, logMsgBuildQueryFailed, buildQueryErr)
		q.finishTraceSpanError(span, buildQueryErr)

		return buildQueryErr
	}

	start := time.Now()
	result, execErr := q.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	q.logQueryWithDuration(sqlQuery, logActionMarkTransmitted, duration)

	if execErr != nil {
		q.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		q.finishTraceSpanError(span, execErr)

		return errors.Join(syncqueue.ErrRemovingOperationFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		q.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		q.finishTraceSpanError(span, rowsAffectedErr)

		return errors.Join(syncqueue.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		q.finishTraceSpanError(span, syncqueue.ErrNoPendingOperation)
		return syncqueue.ErrNoPendingOperation
	}

	q.logOperation(ctx, logMsgOperationRemoved, logAttrEntityID, entityID)
	q.finishTraceSpanSuccess(span)

	return nil
}

// Len returns the number of pending operations.
func (q Queue) Len(ctx context.Context) (int, error) {
	ctx, span := q.startTraceSpan(ctx, spanNameQueueLength, nil)

	sqlQuery, buildQueryErr := q.buildLenQuery()
	if buildQueryErr != nil {
		q.logError(ctx, logMsgBuildQueryFailed, buildQueryErr)
		q.finishTraceSpanError(span, buildQueryErr)

		return 0, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := q.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	q.logQueryWithDuration(sqlQuery, logActionQueueLength, duration)

	if queryErr != nil {
		q.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		q.finishTraceSpanError(span, queryErr)

		return 0, errors.Join(syncqueue.ErrReadingQueueFailed, queryErr)
	}
	defer q.closeRows(rows)

	var count int
	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			q.logError(ctx, logMsgScanRowFailed, scanErr)
			q.finishTraceSpanError(span, scanErr)

			return 0, errors.Join(syncqueue.ErrScanningDBRowFailed, scanErr)
		}
	}

	q.logOperation(
		ctx,
		logMsgQueueLengthRead,
		logAttrOperationCount, count,
		logAttrDurationMS, q.durationToMilliseconds(duration))

	q.recordDuration(logActionQueueLength, duration)
	q.finishTraceSpanSuccess(span)

	return count, nil
}

// readOperations executes a select query and maps the rows to pending operations.
func (q Queue) readOperations(ctx context.Context, buildResult queryBuildResult) (
	syncqueue.PendingOperations,
	error,
) {

	ctx, span := q.startTraceSpan(ctx, spanNameReadPending, nil)

	if buildResult.err != nil {
		q.logError(ctx, logMsgBuildQueryFailed, buildResult.err)
		q.finishTraceSpanError(span, buildResult.err)

		return nil, buildResult.err
	}

	start := time.Now()
	rows, queryErr := q.db.Query(ctx, buildResult.sqlQuery)
	duration := time.Since(start)
	q.logQueryWithDuration(buildResult.sqlQuery, logActionReadPending, duration)

	if queryErr != nil {
		q.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, buildResult.sqlQuery)
		q.finishTraceSpanError(span, queryErr)

		return nil, errors.Join(syncqueue.ErrReadingQueueFailed, queryErr)
	}
	defer q.closeRows(rows)

	operations, scanErr := q.processQueryResults(ctx, rows)
	if scanErr != nil {
		q.finishTraceSpanError(span, scanErr)
		return nil, scanErr
	}

	q.logOperation(
		ctx,
		logMsgOperationsRead,
		logAttrOperationCount, len(operations),
		logAttrDurationMS, q.durationToMilliseconds(duration))

	q.recordDuration(logActionReadPending, duration)
	q.finishTraceSpanSuccess(span)

	return operations, nil
}

// processQueryResults converts database rows to pending operations.
func (q Queue) processQueryResults(ctx context.Context, rows adapters.DBRows) (syncqueue.PendingOperations, error) {
	row := queueRow{}
	operations := make(syncqueue.PendingOperations, 0)

	for rows.Next() {
		rowScanErr := rows.Scan(
			&row.entityID, &row.entityType, &row.kind, &row.payload, &row.queuedAt, &row.lastChangedAt)
		if rowScanErr != nil {
			q.logError(ctx, logMsgScanRowFailed, rowScanErr)
			return nil, errors.Join(syncqueue.ErrScanningDBRowFailed, rowScanErr)
		}

		operation, buildErr := syncqueue.BuildPendingOperation(
			row.entityID, row.entityType, syncqueue.OperationKind(row.kind), row.payload, row.queuedAt)
		if buildErr != nil {
			q.logError(ctx, logMsgBuildOperationFailed, buildErr, logAttrEntityID, row.entityID)
			return nil, errors.Join(syncqueue.ErrBuildingOperationFailed, buildErr)
		}

		operation.LastChangedAt = row.lastChangedAt
		operations = append(operations, operation)
	}

	return operations, nil
}

// closeRows safely closes database rows and logs any errors.
func (q Queue) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if q.logger != nil {
			q.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

type queryBuildResult struct {
	sqlQuery sqlQueryString
	err      error
}

func (q Queue) buildRecordWriteQuery(
	entityID syncqueue.EntityIDString,
	encoded syncqueue.EncodedEntity,
	kind syncqueue.OperationKind,
) (sqlQueryString, error) {

	now := time.Now()

	kindMergeExpr := goqu.L(
		fmt.Sprintf(kindMergeCaseTemplate, colKind, q.tableName),
		string(syncqueue.OperationKindDelete),
	)

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(q.tableName).
		Cols(colEntityID, colEntityType, colKind, colPayload, colQueuedAt, colLastChangedAt).
		Vals(goqu.Vals{
			entityID,
			encoded.EntityType,
			string(kind),
			string(encoded.PayloadJSON),
			now,
			now,
		}).
		OnConflict(goqu.DoUpdate(colEntityID, goqu.Record{
			colEntityType:    goqu.L(fmt.Sprintf(excludedColumnTemplate, colEntityType)),
			colKind:          kindMergeExpr,
			colPayload:       goqu.L(fmt.Sprintf(excludedColumnTemplate, colPayload)),
			colLastChangedAt: goqu.L(fmt.Sprintf(excludedColumnTemplate, colLastChangedAt)),
		}))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(syncqueue.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (q Queue) buildPendingQuery(entityID *syncqueue.EntityIDString) queryBuildResult {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(q.tableName).
		Select(colEntityID, colEntityType, colKind, colPayload, colQueuedAt, colLastChangedAt).
		Order(goqu.I(colQueuedAt).Asc(), goqu.I(colEntityID).Asc())

	if entityID != nil {
		selectStmt = selectStmt.Where(goqu.Ex{colEntityID: *entityID})
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return queryBuildResult{err: errors.Join(syncqueue.ErrBuildingQueryFailed, toSQLErr)}
	}

	return queryBuildResult{sqlQuery: sqlQuery}
}

func (q Queue) buildLenQuery() (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(q.tableName).
		Select(goqu.COUNT(colEntityID))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(syncqueue.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (q Queue) buildMarkTransmittedQuery(entityID syncqueue.EntityIDString) (sqlQueryString, error) {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(q.tableName).
		Where(goqu.Ex{colEntityID: entityID})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(syncqueue.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// isRetryableConflict reports whether the error carries a PostgreSQL SQL
// state that indicates a transient race between concurrent writers.
// Both pgconn.PgError and pq.Error expose SQLState.
func isRetryableConflict(err error) bool {
	var stateErr interface{ SQLState() string }
	if !errors.As(err, &stateErr) {
		return false
	}

	switch stateErr.SQLState() {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateUniqueViolation:
		return true
	default:
		return false
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (q Queue) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if q.logger != nil {
		q.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, q.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level. The contextual
// logger takes precedence when configured, so messages correlate with traces.
func (q Queue) logOperation(ctx context.Context, action string, args ...any) {
	if q.contextualLogger != nil {
		q.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if q.logger != nil {
		q.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level. The contextual logger
// takes precedence when configured.
func (q Queue) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if q.contextualLogger != nil {
		q.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if q.logger != nil {
		q.logger.Error(message, allArgs...)
	}
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
// Without a collector the context passes through and the span is nil, which
// the finish helpers treat as a no-op.
func (q Queue) startTraceSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, syncqueue.SpanContext) {

	if q.tracing == nil {
		return ctx, nil
	}

	return q.tracing.StartSpan(ctx, name, attrs)
}

func (q Queue) finishTraceSpanSuccess(span syncqueue.SpanContext) {
	if q.tracing != nil && span != nil {
		q.tracing.FinishSpan(span, spanStatusSuccess, nil)
	}
}

func (q Queue) finishTraceSpanError(span syncqueue.SpanContext, err error) {
	if q.tracing != nil && span != nil {
		q.tracing.FinishSpan(span, spanStatusError, map[string]string{spanAttrError: err.Error()})
	}
}

func (q Queue) recordDuration(action string, duration time.Duration) {
	if q.metrics != nil {
		q.metrics.RecordDuration(metricOperationDuration, duration, map[string]string{labelAction: action})
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (q Queue) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
