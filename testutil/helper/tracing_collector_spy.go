package helper

import (
	"context"
	"sync"

	"github.com/david1995/datasync-queue-go/syncqueue"
)

// SpySpan is one captured tracing span with its lifecycle data.
type SpySpan struct {
	Name       string
	StartAttrs map[string]string
	Status     string
	FinalAttrs map[string]string
	Finished   bool
}

// SetStatus records a status update on the span.
func (s *SpySpan) SetStatus(status string) {
	s.Status = status
}

// AddAttribute records an attribute added after span start.
func (s *SpySpan) AddAttribute(key, value string) {
	if s.FinalAttrs == nil {
		s.FinalAttrs = make(map[string]string)
	}

	s.FinalAttrs[key] = value
}

// TracingCollectorSpy is a syncqueue.TracingCollector implementation that
// captures spans for inspection in tests. Safe for concurrent use.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpySpan
}

// NewTracingCollectorSpy creates an empty TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan captures a new span.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, syncqueue.SpanContext) {

	span := &SpySpan{
		Name:       name,
		StartAttrs: copyLabels(attrs),
	}

	s.mu.Lock()
	s.spans = append(s.spans, span)
	s.mu.Unlock()

	return ctx, span
}

// FinishSpan marks a captured span as finished with its final status.
func (s *TracingCollectorSpy) FinishSpan(spanCtx syncqueue.SpanContext, status string, attrs map[string]string) {
	span, isSpy := spanCtx.(*SpySpan)
	if !isSpy {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	span.Status = status
	span.Finished = true
	for key, value := range attrs {
		span.AddAttribute(key, value)
	}
}

// Spans returns the captured spans in start order.
func (s *TracingCollectorSpy) Spans() []*SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := make([]*SpySpan, len(s.spans))
	copy(spans, s.spans)

	return spans
}

// FinishedSpansNamed returns the finished spans with the given name.
func (s *TracingCollectorSpy) FinishedSpansNamed(name string) []*SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := make([]*SpySpan, 0)
	for _, span := range s.spans {
		if span.Finished && span.Name == name {
			spans = append(spans, span)
		}
	}

	return spans
}
