package auth

import "context"

var _ Checker = (*SessionChecker)(nil)
var _ Checker = (*TestChecker)(nil)

// Checker resolves a login token to its session, or fails with
// ErrSessionNotFound / ErrSessionExpired.
type Checker interface {
	GetSession(ctx context.Context, token string) (Session, error)
}
