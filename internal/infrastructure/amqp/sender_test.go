package amqp

import (
	"testing"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestRoutingKey(t *testing.T) {
	n := &entity.OutboxNotification{Channel: entity.ChannelEmail, TemplateID: entity.TemplateApprovalRequest}

	assert.Equal(t, "email.proposal.approval_request", routingKey(n))
}
