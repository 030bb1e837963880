package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/loanpulse/commission-engine/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var received []*domain.Message

	sub, err := b.Subscribe(ctx, domain.TopicCommissionCreated, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	payload, _ := json.Marshal(domain.CommissionEvent{
		CommissionID: "c-1",
		Status:       domain.StatusPending,
	})
	if err := b.Publish(ctx, domain.TopicCommissionCreated, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	msg := received[0]
	if msg.Topic != domain.TopicCommissionCreated {
		t.Errorf("topic = %q, want %q", msg.Topic, domain.TopicCommissionCreated)
	}
	var evt domain.CommissionEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if evt.CommissionID != "c-1" {
		t.Errorf("commissionId = %q, want c-1", evt.CommissionID)
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var count int

	_, err := b.Subscribe(ctx, domain.TopicPayoutCompleted, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(ctx, domain.TopicCommissionRejected, []byte(`{}`))
	b.Publish(ctx, domain.TopicPayoutCompleted, []byte(`{}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	// Give the other topic time to (incorrectly) arrive if isolation is broken.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("received %d messages, want 1", count)
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	counts := make(map[int]int)

	for i := 0; i < 3; i++ {
		i := i
		_, err := b.Subscribe(ctx, domain.TopicBankConfirmation, func(ctx context.Context, msg *domain.Message) error {
			mu.Lock()
			counts[i]++
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
	}

	if err := b.Publish(ctx, domain.TopicBankConfirmation, []byte(`{}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts[0] == 1 && counts[1] == 1 && counts[2] == 1
	})
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var count int

	sub, err := b.Subscribe(ctx, domain.TopicIncentiveComputed, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if sub.Topic() != domain.TopicIncentiveComputed {
		t.Errorf("Topic() = %q, want %q", sub.Topic(), domain.TopicIncentiveComputed)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	b.Publish(ctx, domain.TopicIncentiveComputed, []byte(`{}`))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("received %d messages after unsubscribe, want 0", count)
	}
}

func TestChannelBusClosed(t *testing.T) {
	b := NewChannelBus(10)
	b.Close()

	if err := b.Publish(context.Background(), domain.TopicCommissionCreated, []byte(`{}`)); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if _, err := b.Subscribe(context.Background(), domain.TopicCommissionCreated, nil); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := b.Ping(context.Background()); err == nil {
		t.Error("expected ping failure on closed bus")
	}
}

func TestNewUnsupportedBusType(t *testing.T) {
	if _, err := New(domain.EventBusConfig{Type: "rabbitmq"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}

func TestNewChannelBusFromConfig(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 16})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
