// Package config provides database connection configuration helpers for
// integration tests of the PostgreSQL operation queue.
package config
