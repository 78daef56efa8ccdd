package syncqueue

import (
	"time"
)

// Entity is implemented by every domain record that can be queued for
// synchronization. The identity is immutable once assigned.
type Entity interface {
	EntityID() EntityIDString
}

// LazyRef is implemented by lazily loaded relation handles. An unmaterialized
// handle is encoded as absent rather than failing the whole encode.
//
// Handles are encoded in their unwrapped form, so a handle type that should
// survive decoding additionally implements json.Unmarshaler and rehydrates
// itself from that unwrapped encoding.
type LazyRef interface {
	Materialized() bool
	Value() any
}

// EntityModel carries the synchronization bookkeeping members shared by all
// domain entities. Concrete entities embed it.
//
//	type Customer struct {
//		syncqueue.EntityModel
//		Name string `datasync:"name"`
//	}
type EntityModel struct {
	ID        string     `datasync:"id"`
	UpdatedAt *time.Time `datasync:"updatedAt"`
	Version   *string    `datasync:"version"`
	Deleted   bool       `datasync:"deleted"`
}

// EntityID returns the immutable identity of the entity.
func (m EntityModel) EntityID() EntityIDString {
	return m.ID
}
