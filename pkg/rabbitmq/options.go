package rabbitmq

import "time"

type Option func(*Publisher)

func ConnAttempts(attempts int) Option {
	return func(p *Publisher) {
		p.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Publisher) {
		p.connTimeout = timeout
	}
}

func ExchangeKind(kind string) Option {
	return func(p *Publisher) {
		p.exchangeKind = kind
	}
}
