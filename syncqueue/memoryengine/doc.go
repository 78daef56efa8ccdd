// Package memoryengine provides an in-process implementation of the
// operation queue.
//
// Coalescing correctness relies on treating "look up the pending operation
// for an entity, then insert or update it" as one atomic unit. This engine
// enforces that with striped per-entity locks, so writes to different
// entities proceed in parallel while writes to the same entity serialize.
//
// The engine is the reference implementation of the queue semantics and the
// natural choice for unit tests and single-process applications; use the
// postgresengine package when pending operations must survive restarts.
package memoryengine
