package audit

import "context"

type ctxKey struct{}

// WithClientIP tags ctx with the address of the client that requested a check.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, if any.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}
