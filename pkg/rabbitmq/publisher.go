package rabbitmq

import (
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultExchangeKind = "topic"
)

type Publisher struct {
	connAttempts int
	connTimeout  time.Duration

	url          string
	exchangeKind string

	Exchange string
	Conn     *amqp.Connection
	Channel  *amqp.Channel
}

func New(url, exchange string, opts ...Option) (*Publisher, error) {
	p := &Publisher{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		url:          url,
		exchangeKind: _defaultExchangeKind,
		Exchange:     exchange,
	}

	for _, opt := range opts {
		opt(p)
	}

	var err error
	for p.connAttempts > 0 {
		err = p.connect()
		if err == nil {
			break
		}

		log.Printf("RabbitMQ is trying to connect, attempts left: %d", p.connAttempts)

		time.Sleep(p.connTimeout)

		p.connAttempts--
	}

	if err != nil {
		return nil, fmt.Errorf("RabbitMQ - New - connAttempts == 0: %w", err)
	}

	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("RabbitMQ - amqp.Dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("RabbitMQ - conn.Channel: %w", err)
	}

	err = ch.ExchangeDeclare(p.Exchange, p.exchangeKind, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("RabbitMQ - ch.ExchangeDeclare: %w", err)
	}

	p.Conn, p.Channel = conn, ch

	return nil
}

func (p *Publisher) Close() error {
	if p.Channel != nil {
		_ = p.Channel.Close()
	}
	if p.Conn != nil {
		return p.Conn.Close()
	}

	return nil
}
