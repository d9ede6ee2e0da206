package authcore

import "context"

type clientIPContextKey struct{}
type clientIDContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Engine uses it
// for per-IP rate limiting and audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithClientID attaches a caller-supplied client identifier to ctx. It is
// recorded on the refresh token family minted by Login and echoed back in
// audit events; it carries no authorization weight.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey{}, clientID)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for audit
// logging.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func clientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	clientID, _ := ctx.Value(clientIDContextKey{}).(string)
	return clientID
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
