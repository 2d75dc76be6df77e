package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

// ConnectorConsumer reads connector pushes with manual commits.
type ConnectorConsumer struct {
	*consumer.Consumer
}

func NewConnectorConsumer(consumer *consumer.Consumer) *ConnectorConsumer {
	return &ConnectorConsumer{consumer}
}

func (cc *ConnectorConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	msg, err := cc.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("ConnectorConsumer - ReadMessage - cc.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (cc *ConnectorConsumer) CommitMessage(ctx context.Context, msg kafka.Message) error {
	err := cc.Reader.CommitMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("ConnectorConsumer - CommitMessage - cc.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (cc *ConnectorConsumer) Close() error {
	err := cc.Consumer.Close()
	if err != nil {
		return fmt.Errorf("ConnectorConsumer - Close: %w", err)
	}

	return nil
}
