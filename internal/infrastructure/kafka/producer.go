package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

// NotificationProducer publishes outbox rows keyed by tenant, so one tenant's
// notifications stay on one partition.
type NotificationProducer struct {
	*producer.Producer
	topic string
}

func NewNotificationProducer(producer *producer.Producer, topic string) *NotificationProducer {
	return &NotificationProducer{producer, topic}
}

func (np *NotificationProducer) Send(ctx context.Context, n *entity.OutboxNotification) error {
	b, err := json.Marshal(dto.NewNotificationMessage(n))
	if err != nil {
		return fmt.Errorf("NotificationProducer - Send - json.Marshal: %w", err)
	}

	err = np.Writer.WriteMessages(ctx, kafka.Message{
		Topic: np.topic,
		Key:   []byte(n.TenantID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "notification_id", Value: []byte(n.ID)},
			{Key: "template_id", Value: []byte(n.TemplateID)},
		},
	})
	if err != nil {
		return fmt.Errorf("NotificationProducer - Send - np.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (np *NotificationProducer) Close() error {
	err := np.Producer.Close()
	if err != nil {
		return fmt.Errorf("NotificationProducer - Close: %w", err)
	}

	return nil
}

// DispatchProducer publishes claimed events for the reasoning engine.
type DispatchProducer struct {
	*producer.Producer
	topic string
}

func NewDispatchProducer(producer *producer.Producer, topic string) *DispatchProducer {
	return &DispatchProducer{producer, topic}
}

func (dp *DispatchProducer) Dispatch(ctx context.Context, event *entity.Event) error {
	b, err := json.Marshal(dto.NewDispatchMessage(event))
	if err != nil {
		return fmt.Errorf("DispatchProducer - Dispatch - json.Marshal: %w", err)
	}

	err = dp.Writer.WriteMessages(ctx, kafka.Message{
		Topic: dp.topic,
		Key:   []byte(event.TenantID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("DispatchProducer - Dispatch - dp.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (dp *DispatchProducer) Close() error {
	err := dp.Producer.Close()
	if err != nil {
		return fmt.Errorf("DispatchProducer - Close: %w", err)
	}

	return nil
}
