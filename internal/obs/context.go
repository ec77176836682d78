package obs

import (
	"context"
	"sync"
)

type routePatternKey struct{}

type requestFieldsKey struct{}

// requestFields collects values discovered deep in a handler so the request
// logger, which wraps the handler, can still report them.
type requestFields struct {
	mu      sync.Mutex
	quoteID string
	lines   int
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

func withRequestFields(ctx context.Context) (context.Context, *requestFields) {
	f := &requestFields{}
	return context.WithValue(ctx, requestFieldsKey{}, f), f
}

// AnnotateQuote records the quote handled by the current request for the access log.
// It is a no-op outside a RequestLogger.
func AnnotateQuote(ctx context.Context, quoteID string, lines int) {
	if ctx == nil {
		return
	}
	f, ok := ctx.Value(requestFieldsKey{}).(*requestFields)
	if !ok {
		return
	}
	f.mu.Lock()
	f.quoteID = quoteID
	f.lines = lines
	f.mu.Unlock()
}

func (f *requestFields) snapshot() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteID, f.lines
}
