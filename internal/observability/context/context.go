package context

import "context"

type requestIDKey struct{}
type branchCodeKey struct{}

// WithRequestID stores the request correlation id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithBranchCode stores the active branch code in the context.
func WithBranchCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, branchCodeKey{}, code)
}

// BranchCodeFromContext returns the branch code, or "".
func BranchCodeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	code, _ := ctx.Value(branchCodeKey{}).(string)
	return code
}
