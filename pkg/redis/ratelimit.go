package redis

import (
	"context"
	"fmt"
	"time"
)

// Allow implements a fixed-window rate limit: limit requests per window
// per identity. INCR and EXPIRE run in one pipeline so the first request
// of a window always sets the expiry. Exceeding the budget is a
// rejection, not a delay.
func Allow(ctx context.Context, identity string, limit int, window time.Duration) (bool, error) {
	client := RedisClient()
	defer client.Close()

	key := fmt.Sprintf("ratelimit:%s:%d", identity, time.Now().Unix()/int64(window.Seconds()))

	pipe := client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() <= int64(limit), nil
}
