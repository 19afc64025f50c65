package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"appointment-bot/internal/domain"
)

// redisAPI is the subset of *redis.Client used by RedisSessions.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisSessions stores each scratch record as a JSON string without expiry.
type RedisSessions struct {
	rdb    redisAPI
	prefix string
}

func NewRedisSessions(rdb redisAPI, prefix string) (*RedisSessions, error) {
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "appt:session"
	}
	return &RedisSessions{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisSessions) redisKey(key string) string {
	return r.prefix + ":" + key
}

func (r *RedisSessions) Get(ctx context.Context, key string) (domain.Conversation, bool, error) {
	return decodeSession(r.rdb.Get(ctx, r.redisKey(key)), "Get")
}

// Take removes the scratch record with GETDEL and returns it, so one caller wins.
func (r *RedisSessions) Take(ctx context.Context, key string) (domain.Conversation, bool, error) {
	return decodeSession(r.rdb.GetDel(ctx, r.redisKey(key)), "Take")
}

func decodeSession(cmd *redis.StringCmd, op string) (domain.Conversation, bool, error) {
	raw, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("repository: %s session: %w", op, err)
	}
	var conv domain.Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("repository: %s session decode: %w", op, err)
	}
	return conv, true, nil
}

func (r *RedisSessions) Put(ctx context.Context, conv domain.Conversation) error {
	if conv.Key == "" {
		return errors.New("repository: Put session: key is required")
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("repository: Put session encode: %w", err)
	}
	if err := r.rdb.Set(ctx, r.redisKey(conv.Key), raw, 0).Err(); err != nil {
		return fmt.Errorf("repository: Put session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("repository: Delete session: %w", err)
	}
	return nil
}
