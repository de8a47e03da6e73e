package auth

import "context"

// ReplayGuard records proof identifiers and reports first use.
type ReplayGuard interface {
	MarkSeen(ctx context.Context, jti string) (bool, error)
}
