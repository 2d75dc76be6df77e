package redisclient

import "time"

type Option func(*Client)

func ConnAttempts(attempts int) Option {
	return func(c *Client) {
		c.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.connTimeout = timeout
	}
}

func Password(password string) Option {
	return func(c *Client) {
		c.password = password
	}
}

func DB(db int) Option {
	return func(c *Client) {
		c.db = db
	}
}
