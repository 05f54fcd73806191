package store

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NewRedisClient はRedisクライアントを生成し、接続を確認して返す。
func NewRedisClient(addr, password string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
