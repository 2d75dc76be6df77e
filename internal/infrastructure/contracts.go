package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

type (
	// NotificationSender delivers one notification; an error leaves it for retry.
	NotificationSender interface {
		Send(ctx context.Context, n *entity.OutboxNotification) error
		Close() error
	}

	// NotificationMinter fills in what is never stored at rest, such as the
	// approver token, on a claimed row. It returns a copy and leaves n untouched.
	NotificationMinter interface {
		Mint(n *entity.OutboxNotification) (*entity.OutboxNotification, error)
	}

	// EventDispatcher hands claimed events to the reasoning engine.
	EventDispatcher interface {
		Dispatch(ctx context.Context, event *entity.Event) error
		Close() error
	}

	PayloadValidator interface {
		Validate(t entity.EventType, raw json.RawMessage) (entity.Payload, error)
	}

	ApprovalTokens interface {
		Issue(proposalID string, expiresAt time.Time) (string, error)
		ProposalID(raw string) (string, error)
		Hash(raw string) string
	}
)
