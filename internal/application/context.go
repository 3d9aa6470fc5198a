package application

import (
	"context"
	"strings"
)

type clientIPKey struct{}

// ContextWithClientIP attaches the caller's address so that audit entries
// written during the request can record it.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	ip = strings.TrimSpace(ip)
	if ctx == nil || ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by ContextWithClientIP.
func ClientIPFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	ip, ok := ctx.Value(clientIPKey{}).(string)
	return ip, ok && ip != ""
}

func clientIP(ctx context.Context, explicit string) *string {
	if ip := strings.TrimSpace(explicit); ip != "" {
		return &ip
	}
	if ip, ok := ClientIPFromContext(ctx); ok {
		return &ip
	}
	return nil
}
