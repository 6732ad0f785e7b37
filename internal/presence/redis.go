package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis tracks sockets cluster-wide with TTL keys so entries from a
// crashed node expire on their own.
// Keys:
//
//	<prefix>:socket:<socketID> -> userID (TTL)
//	<prefix>:user:<userID>     -> set of socketIDs (TTL)
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Registry = (*Redis)(nil)

func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) socketKey(socketID string) string {
	return fmt.Sprintf("%s:socket:%s", r.prefix, socketID)
}

func (r *Redis) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

func (r *Redis) Announce(ctx context.Context, socketID, userID string) error {
	if err := r.rdb.Set(ctx, r.socketKey(socketID), userID, r.ttl).Err(); err != nil {
		return err
	}
	if err := r.rdb.SAdd(ctx, r.userKey(userID), socketID).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, r.userKey(userID), r.ttl).Err()
}

func (r *Redis) Touch(ctx context.Context, socketID, userID string) error {
	if err := r.rdb.Expire(ctx, r.socketKey(socketID), r.ttl).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, r.userKey(userID), r.ttl).Err()
}

func (r *Redis) Retire(ctx context.Context, socketID, userID string) error {
	if err := r.rdb.Del(ctx, r.socketKey(socketID)).Err(); err != nil {
		return err
	}
	if err := r.rdb.SRem(ctx, r.userKey(userID), socketID).Err(); err != nil {
		return err
	}
	n, err := r.rdb.SCard(ctx, r.userKey(userID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.rdb.Del(ctx, r.userKey(userID)).Err()
	}
	return nil
}

func (r *Redis) CountOnline(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64
	match := r.prefix + ":socket:*"
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, 500).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func (r *Redis) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.rdb.SCard(ctx, r.userKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
