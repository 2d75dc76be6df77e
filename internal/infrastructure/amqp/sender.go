package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationPublisher routes each notification by "<channel>.<template>".
type NotificationPublisher struct {
	*rabbitmq.Publisher
}

func NewNotificationPublisher(p *rabbitmq.Publisher) *NotificationPublisher {
	return &NotificationPublisher{p}
}

func routingKey(n *entity.OutboxNotification) string {
	return n.Channel + "." + n.TemplateID
}

func (np *NotificationPublisher) Send(ctx context.Context, n *entity.OutboxNotification) error {
	b, err := json.Marshal(dto.NewNotificationMessage(n))
	if err != nil {
		return fmt.Errorf("NotificationPublisher - Send - json.Marshal: %w", err)
	}

	err = np.Channel.PublishWithContext(ctx, np.Exchange, routingKey(n), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Body:         b,
	})
	if err != nil {
		return fmt.Errorf("NotificationPublisher - Send - np.Channel.PublishWithContext: %w", err)
	}

	return nil
}

func (np *NotificationPublisher) Close() error {
	err := np.Publisher.Close()
	if err != nil {
		return fmt.Errorf("NotificationPublisher - Close: %w", err)
	}

	return nil
}
