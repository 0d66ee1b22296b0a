package middleware

import "context"

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxIsAdmin contextKey = "is_admin"
)

// WithUserID injects the authenticated user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithIsAdmin injects the token's admin flag into the context.
func WithIsAdmin(ctx context.Context, isAdmin bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIsAdmin, isAdmin)
}

// UserIDFromContext returns the authenticated user id, or "" when the request
// carried no valid token.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(ctxUserID).(string)
	return userID
}

// IsAdminFromContext reports whether the request's token carried the admin flag.
func IsAdminFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	isAdmin, _ := ctx.Value(ctxIsAdmin).(bool)
	return isAdmin
}
