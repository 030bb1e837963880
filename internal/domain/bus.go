package domain

import (
	"context"
)

// EventBus is the port for event-driven collaborators: the bank-confirmation
// feed in, commission events out. Backed by Go channels, NATS, or Kafka.
// Outbound publishes are best-effort; a failed publish never rolls back the
// state transition that produced it.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel", "nats" or "kafka"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds

	// Kafka settings
	KafkaBrokers []string
	KafkaGroupID string
}

// Standard topic names.
const (
	// Inbound: bank disbursement confirmations from the banking feed.
	TopicBankConfirmation = "commission.bank.confirmation"

	// Outbound: lifecycle events consumed by the notification dispatcher
	// and the surrounding CRM layer.
	TopicCommissionCreated    = "commission.created"
	TopicCommissionConfirmed  = "commission.confirmed"
	TopicCommissionCalculated = "commission.calculated"
	TopicPayoutInitiated      = "commission.payout.initiated"
	TopicPayoutCompleted      = "commission.payout.completed"
	TopicCommissionRejected   = "commission.rejected"
	TopicIncentiveComputed    = "commission.incentive.computed"
	TopicBonusGranted         = "commission.bonus.granted"
)

// BankConfirmationEvent is the payload on TopicBankConfirmation.
type BankConfirmationEvent struct {
	CommissionID string           `json:"commissionId"`
	Confirmation BankConfirmation `json:"confirmation"`
	Actor        string           `json:"actor,omitempty"`
}

// CommissionEvent is the payload published on outbound commission topics.
type CommissionEvent struct {
	CommissionID string `json:"commissionId"`
	LoanAuditID  string `json:"loanAuditId"`
	Status       Status `json:"status"`
	Actor        string `json:"actor,omitempty"`
	Detail       string `json:"detail,omitempty"`
}
