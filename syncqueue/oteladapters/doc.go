// Package oteladapters provides OpenTelemetry adapters for the syncqueue
// observability interfaces, for users who want plug-and-play observability
// without implementing the interfaces themselves.
package oteladapters
