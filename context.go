package userauth

import "context"

type requestInfoKey struct{}

// requestInfo is the caller metadata copied into audit events.
type requestInfo struct {
	clientIP  string
	userAgent string
}

func requestInfoFrom(ctx context.Context) requestInfo {
	if ctx == nil {
		return requestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info
}

// WithClientIP records the caller's address on ctx. Audit events emitted
// for operations run under ctx carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	info := requestInfoFrom(ctx)
	info.clientIP = ip
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// WithUserAgent records the HTTP User-Agent on ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	info := requestInfoFrom(ctx)
	info.userAgent = userAgent
	return context.WithValue(ctx, requestInfoKey{}, info)
}
