package auth

import "context"

type sessionUserKey struct{}

func ContextWithSessionUser(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, sessionUserKey{}, userID)
}

func SessionUserFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(sessionUserKey{}).(int)
	return userID, ok
}

// CanAccessUser reports whether the request context may act on behalf of userID.
// Requests without a session user (session tokens not required) may access any user.
func CanAccessUser(ctx context.Context, userID int) bool {
	sessionUserID, ok := SessionUserFromContext(ctx)
	return !ok || sessionUserID == userID
}
