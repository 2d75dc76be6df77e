package redisclient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
)

type Client struct {
	connAttempts int
	connTimeout  time.Duration

	addr     string
	password string
	db       int

	Redis *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		addr:         addr,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.addr,
		Password: c.password,
		DB:       c.db,
	})

	var err error
	for c.connAttempts > 0 {
		err = c.Redis.Ping(ctx).Err()
		if err == nil {
			break
		}

		log.Printf("Redis is trying to connect, attempts left: %d", c.connAttempts)

		time.Sleep(c.connTimeout)

		c.connAttempts--
	}

	if err != nil {
		return nil, fmt.Errorf("Redis - New - connAttempts == 0: %w", err)
	}

	return c, nil
}

func (c *Client) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}

	return nil
}
