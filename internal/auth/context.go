// internal/auth/context.go
//
// Authenticated-user helper.
//
// Usage
// -----
//
//	// Attach the user after the bearer token has been verified.
//	ctx = auth.WithUser(ctx, "2f0c…")
//
//	// Downstream code retrieves the ID.
//	id, ok := auth.UserID(ctx)
//
// Notes
// -----
// • User ids are the identity provider's opaque subject strings.
// • Oxford commas, two spaces after periods.
package auth

import "context"

// userKey is unexported to avoid context-key collisions.
type userKey struct{}

// WithUser returns a new context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID extracts the user id from ctx.  It returns ("", false) when no
// user is set.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}
