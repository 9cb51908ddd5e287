package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/internal/database"
)

// RedisService backs the rate-limit middleware and mirrors the set of
// connected usernames. Both are best-effort conveniences: the chat
// protocol itself keeps all of its state in memory.
type RedisService struct {
	client *database.RedisClient
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{client: client}
}

// CheckRateLimit implements a fixed-window counter. The first request in
// a window creates the key with a TTL; the call reports whether the
// caller is still under the limit.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.GetClient().Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.GetClient().Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// SetOnline and SetOffline implement chat.OnlineStore.

func (r *RedisService) SetOnline(username string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := r.client.GetClient().Pipeline()
	pipe.SAdd(ctx, "online_users", username)
	pipe.Set(ctx, fmt.Sprintf("user:%s:status", username), "online", 5*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("failed to mark user online", "username", username, "error", err)
	}
}

func (r *RedisService) SetOffline(username string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := r.client.GetClient().Pipeline()
	pipe.SRem(ctx, "online_users", username)
	pipe.Set(ctx, fmt.Sprintf("user:%s:status", username), "offline", time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("failed to mark user offline", "username", username, "error", err)
	}
}

// GetOnlineUsers lists the usernames currently marked online.
func (r *RedisService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.GetClient().SMembers(ctx, "online_users").Result()
}
