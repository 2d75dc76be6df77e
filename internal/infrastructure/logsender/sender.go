// Package logsender is the development transport: notifications are written to the log.
package logsender

import (
	"context"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
)

type Sender struct {
	logger logger.Interface
}

func New(l logger.Interface) *Sender {
	return &Sender{logger: l}
}

func (s *Sender) Send(_ context.Context, n *entity.OutboxNotification) error {
	s.logger.Info("logsender - Send - %s to %s via %s (attempt %d)", n.TemplateID, n.To, n.Channel, n.Attempts)

	return nil
}

func (s *Sender) Dispatch(_ context.Context, e *entity.Event) error {
	s.logger.Info("logsender - Dispatch - event %s %s for tenant %s", e.ID, e.Type, e.TenantID)

	return nil
}

func (s *Sender) Close() error {
	return nil
}
