// Package redis は共有の上流呼び出し予算に使う任意の Redis 接続を提供します。
package redis

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config は Redis の接続設定です。Host が空なら Redis は無効です。
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled はホストが設定されているかを返します。
func (c Config) Enabled() bool { return c.Host != "" }

// Addr は host:port を返します。ポート未指定時は 6379 を使います。
func (c Config) Addr() string {
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return net.JoinHostPort(c.Host, port)
}

// NewRedisClient は Redis に接続して疎通確認を行います。失敗した場合はクライアントを閉じてエラーを返します。
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	// 接続確認
	if err := Ping(ctx, rdb); err != nil {
		slog.Error("Redis connection failed", "address", cfg.Addr(), "error", err)
		_ = rdb.Close()
		return nil, err
	}

	slog.Info("Redis connection successful", "address", cfg.Addr())
	return rdb, nil
}

// Ping は短いタイムアウトで Redis への疎通を確認します。
func Ping(ctx context.Context, rdb redis.Cmdable) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
