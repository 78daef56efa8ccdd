// Package fixtures provides a small sample domain for tests and examples: a
// customer entity with excluded and relational members, a hand-built stand-in
// for its generated lazy-loading proxy, and a pre-populated type registry.
package fixtures
