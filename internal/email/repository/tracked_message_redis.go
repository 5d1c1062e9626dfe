package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const trackedKeyPrefix = "finos:tracked:"

// redisTrackedMessageRepository keeps each user's ids in a Redis set
type redisTrackedMessageRepository struct {
	client redis.UniversalClient
}

// NewRedisTrackedMessageRepository creates a Redis-backed TrackedMessageRepository
func NewRedisTrackedMessageRepository(client redis.UniversalClient) TrackedMessageRepository {
	return &redisTrackedMessageRepository{client: client}
}

func trackedKey(owner string) string {
	return trackedKeyPrefix + owner
}

func (r *redisTrackedMessageRepository) Get(ctx context.Context, owner string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, trackedKey(owner)).Result()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Set replaces the set inside MULTI/EXEC so readers never see it half-written
func (r *redisTrackedMessageRepository) Set(ctx context.Context, owner string, ids []string) error {
	key := trackedKey(owner)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(ids) > 0 {
			members := make([]interface{}, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	return err
}
