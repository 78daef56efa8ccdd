// Command demo shows the sync queue end to end: entities with datasync tags
// are serialized through the proxy-unwrapping resolver, queued with coalescing
// in the in-memory engine, and drained in FIFO order.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/david1995/datasync-queue-go/syncqueue"
	"github.com/david1995/datasync-queue-go/syncqueue/memoryengine"
	"github.com/david1995/datasync-queue-go/syncqueue/zerologadapter"
	"github.com/david1995/datasync-queue-go/testutil/fixtures"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	logger := zerologadapter.NewLogger(zl)

	serializer, _, err := fixtures.NewFilteredSerializer()
	if err != nil {
		return fmt.Errorf("failed to create serializer: %w", err)
	}

	queue, err := memoryengine.NewQueue(serializer, memoryengine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}

	customer := fixtures.BuildCustomer(uuid.New(), "Ada Lovelace", "ada@example.com")
	customer.LocalNotes = "only relevant on this device"

	// First write queues a Create operation.
	if err = queue.RecordWrite(ctx, customer, syncqueue.OperationKindCreate); err != nil {
		return fmt.Errorf("failed to record create: %w", err)
	}

	// A later write to the same entity coalesces into the existing operation,
	// refreshing the payload while keeping the Create kind.
	customer.Email = "ada.lovelace@example.com"
	if err = queue.RecordWrite(ctx, customer, syncqueue.OperationKindUpdate); err != nil {
		return fmt.Errorf("failed to record update: %w", err)
	}

	// A proxy wrapping the same entity serializes to the identical payload.
	proxy := fixtures.ProxyOf(customer)
	if err = queue.RecordWrite(ctx, proxy, syncqueue.OperationKindUpdate); err != nil {
		return fmt.Errorf("failed to record proxy write: %w", err)
	}

	pending, err := queue.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending operations: %w", err)
	}

	fmt.Printf("pending operations: %d\n", len(pending))
	for _, op := range pending {
		fmt.Printf("  %s %s (%s): %s\n", op.Kind, op.EntityID, op.EntityType, op.PayloadJSON)
	}

	for _, op := range pending {
		if err = queue.MarkTransmitted(ctx, op.EntityID); err != nil {
			return fmt.Errorf("failed to mark operation transmitted: %w", err)
		}
	}

	fmt.Printf("remaining after transmission: %d\n", queue.Len())

	return nil
}
