package ratelimit

import "context"

// RateLimiter bounds outbound throughput per transport.
type RateLimiter interface {
	Allow(ctx context.Context, transport string) (bool, error)
	Wait(ctx context.Context, transport string) error
}
