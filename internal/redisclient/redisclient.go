package redisclient

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Connect builds a Redis client and verifies connectivity. An empty addr
// returns nil, which callers treat as "no ephemeral store available".
func Connect(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
