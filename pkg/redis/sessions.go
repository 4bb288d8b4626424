package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
)

const sessionTTL = 7 * 24 * time.Hour

// IssueSession mints an opaque bearer token mapped to the user id. Token
// issuance mechanics beyond this lookup table are out of scope here; the
// frontend treats the token as a black box.
func IssueSession(ctx context.Context, userID string) (string, error) {
	client := RedisClient()
	defer client.Close()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	key := fmt.Sprintf("session:%s", token)
	if err := client.Set(ctx, key, userID, sessionTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveSession returns the user id for a token, or redis.Nil when the
// token is unknown or expired.
func ResolveSession(ctx context.Context, token string) (string, error) {
	client := RedisClient()
	defer client.Close()

	return client.Get(ctx, fmt.Sprintf("session:%s", token)).Result()
}

func RevokeSession(ctx context.Context, token string) error {
	client := RedisClient()
	defer client.Close()

	return client.Del(ctx, fmt.Sprintf("session:%s", token)).Err()
}

// IsNil reports whether err is the redis key-missing sentinel, so callers
// outside this package don't import the client library for one check.
func IsNil(err error) bool {
	return err == redisclient.Nil
}
