package entity

// ProcessingStatus tracks an Event through the AI dispatch queue.
type ProcessingStatus string

const (
	Pending    ProcessingStatus = "pending"
	Processing ProcessingStatus = "processing"
	Processed  ProcessingStatus = "processed"
	Failed     ProcessingStatus = "failed"
	Skipped    ProcessingStatus = "skipped"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case Pending, Processing, Processed, Failed, Skipped:
		return true
	}
	return false
}

// NotificationStatus tracks an OutboxNotification through the delivery queue.
// NotificationProcessing is the claim marker; attempts only counts deliveries.
type NotificationStatus string

const (
	NotificationPending    NotificationStatus = "pending"
	NotificationProcessing NotificationStatus = "processing"
	NotificationSent       NotificationStatus = "sent"
	NotificationFailed     NotificationStatus = "failed"
	NotificationCancelled  NotificationStatus = "cancelled"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationProcessing, NotificationSent, NotificationFailed, NotificationCancelled:
		return true
	}
	return false
}

func (s NotificationStatus) Terminal() bool {
	return s == NotificationSent || s == NotificationFailed || s == NotificationCancelled
}
