package services

import "context"

type scopeKey struct{}

// Scope identifies the queue item and pipeline step a context is working on.
// The workflow attaches it once per item and narrows Stage per step so log
// records and errors can be traced back to one import attempt.
type Scope struct {
	ItemID    int64
	URL       string
	Stage     string
	RequestID string
}

// WithItem starts a new scope for one processing attempt of an item.
func WithItem(ctx context.Context, id int64, url, requestID string) context.Context {
	return context.WithValue(ctx, scopeKey{}, Scope{ItemID: id, URL: url, RequestID: requestID})
}

// WithStage returns ctx with the step name replaced. Item fields already in
// scope are kept.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	scope, _ := ScopeFrom(ctx)
	scope.Stage = stage
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	scope, ok := ctx.Value(scopeKey{}).(Scope)
	return scope, ok
}
