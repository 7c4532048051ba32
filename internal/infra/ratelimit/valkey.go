package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

const window = time.Minute

// ValkeyLimiter counts requests per key in fixed one-minute windows shared by
// every instance of the service.
type ValkeyLimiter struct {
	client valkey.Client
	prefix string
	limit  int64
	now    func() time.Time
}

// NewValkeyLimiter constructs a limiter allowing requestsPerMinute per key.
func NewValkeyLimiter(client valkey.Client, prefix string, requestsPerMinute int) *ValkeyLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &ValkeyLimiter{client: client, prefix: prefix, limit: int64(requestsPerMinute), now: time.Now}
}

// Allow increments the current window counter for key.
func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := l.windowKey(key)
	results := l.client.DoMulti(ctx,
		l.client.B().Incr().Key(windowKey).Build(),
		l.client.B().Expire().Key(windowKey).Seconds(int64(2*window/time.Second)).Build(),
	)
	count, err := results[0].AsInt64()
	if err != nil {
		return true, fmt.Errorf("valkey incr: %w", err)
	}
	if err := results[1].Error(); err != nil {
		return true, fmt.Errorf("valkey expire: %w", err)
	}
	return count <= l.limit, nil
}

func (l *ValkeyLimiter) windowKey(key string) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, l.now().Unix()/int64(window/time.Second))
}
