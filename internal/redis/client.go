// Package redis wraps rueidis with the small surface the service
// needs: string get/set with TTL and JSON convenience helpers.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
)

// Client wraps a rueidis connection.
type Client struct {
	client rueidis.Client
}

// Config holds the connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewClient connects to Redis.
func NewClient(cfg Config) (*Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return &Client{client: client}, nil
}

// Set stores a value with a TTL.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(key).Value(value).Ex(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key. A cache miss returns ok=false, not an
// error.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	value, err := resp.ToString()
	if err != nil {
		return "", false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return value, true, nil
}

// SetJSON marshals value and stores it with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := sonic.MarshalString(value)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// GetJSON fetches and unmarshals the value for key into out.
func (c *Client) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := sonic.UnmarshalString(data, out); err != nil {
		return false, fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the connection.
func (c *Client) Close() {
	c.client.Close()
}
