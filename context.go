package goLedger

import "context"

type contextKey uint8

const (
	contextKeyClientIP contextKey = iota
)

// WithClientIP attaches the caller's network address for audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKeyClientIP, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(contextKeyClientIP).(string)
	return ip
}
