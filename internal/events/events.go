package events

import "context"

// StreamLedger is the channel every ledger-side event is published on.
const StreamLedger = "events:ledger"

// Event types
const (
	EventTransactionPosted = "transaction_posted"
	EventConfirmation      = "confirmation_changed"
	EventDispute           = "dispute_changed"
	EventCampaign          = "campaign_changed"
	EventActivity          = "activity"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
