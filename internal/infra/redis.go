package infra

import (
	"context"
	"fmt"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// OpenRedis returns a client for url, or for an in-process server when url is empty
// so local runs keep session flags, settings and idempotency keys working. stop
// releases the client and, when embedded, the server.
func OpenRedis(ctx context.Context, url string) (client *redis.Client, embedded bool, stop func(), err error) {
	if url == "" {
		client, stop, err = newEmbeddedRedis()
		return client, true, stop, err
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, false, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client = redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, false, nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, false, func() { _ = client.Close() }, nil
}

func newEmbeddedRedis() (*redis.Client, func(), error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stop := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, stop, nil
}
