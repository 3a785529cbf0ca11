// Package contextkeys holds the request-scoped values set by the auth middleware.
package contextkeys

import "context"

type contextKey string

const (
	// UserID is the signed-in staff member's ID.
	UserID contextKey = "staffID"
	// UserEmail is the signed-in staff member's email.
	UserEmail contextKey = "staffEmail"
	// UserRole is admin or support.
	UserRole contextKey = "staffRole"
)

// Staff returns the signed-in staff member's ID and role, or empty strings.
func Staff(ctx context.Context) (id, role string) {
	id, _ = ctx.Value(UserID).(string)
	role, _ = ctx.Value(UserRole).(string)
	return id, role
}
