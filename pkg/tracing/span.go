// Package tracing records a tree of timed spans for one request and carries
// the current span in its context. A finished root span logs itself as one
// structured slog record.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed operation. Children started from a context holding the
// span are attached to it.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	attrs    []slog.Attr
	children []*Span
}

// Start begins a span named name. When ctx already holds a span the new one
// becomes its child and inherits its trace id; otherwise it is a root with
// the given trace id.
func Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the span held by ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// End records the duration. Calling End on a nil span is a no-op.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.Duration = time.Since(s.Start)
}

// Set attaches an attribute.
func (s *Span) Set(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Children returns the spans started under s.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// LogValue renders the span tree as nested groups.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make([]slog.Attr, 0, len(s.attrs)+len(s.children)+1)
	attrs = append(attrs, slog.Float64("ms", float64(s.Duration.Microseconds())/1000))
	attrs = append(attrs, s.attrs...)
	for _, c := range s.children {
		attrs = append(attrs, slog.Any(c.Name, c))
	}
	return slog.GroupValue(attrs...)
}

// Log writes the finished tree to logger at debug level.
func (s *Span) Log(ctx context.Context, logger *slog.Logger) {
	logger.DebugContext(ctx, "trace", "trace_id", s.TraceID, slog.Any(s.Name, s))
}
