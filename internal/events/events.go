// Package events publishes charge lifecycle events after a unit of work
// commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Type string

const (
	ChargeCreated    Type = "charge.created"
	ChargePaid       Type = "charge.paid"
	ChargeCancelled  Type = "charge.cancelled"
	AccountDeposited Type = "account.deposited"
)

type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	ChargeID     int64     `json:"charge_id,omitempty"`
	OriginatorID int64     `json:"originator_id,omitempty"`
	RecipientID  int64     `json:"recipient_id,omitempty"`
	Amount       string    `json:"amount"`
	Method       string    `json:"method,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ForCharge builds an event describing c.
func ForCharge(t Type, c domain.Charge, at time.Time) Event {
	return Event{
		ID:           ulid.Make().String(),
		Type:         t,
		ChargeID:     c.ID,
		OriginatorID: c.OriginatorID,
		RecipientID:  c.RecipientID,
		Amount:       domain.FormatAmount(c.Amount),
		Method:       string(c.PaymentMethod),
		OccurredAt:   at,
	}
}

// ForDeposit builds an account.deposited event. The depositor is recorded
// as the recipient of the funds.
func ForDeposit(userID int64, amount decimal.Decimal, at time.Time) Event {
	return Event{
		ID:          ulid.Make().String(),
		Type:        AccountDeposited,
		RecipientID: userID,
		Amount:      domain.FormatAmount(amount),
		OccurredAt:  at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// KafkaPublisher writes events to a single topic, keyed by charge id so a
// charge's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		key := strconv.FormatInt(e.ChargeID, 10)
		if e.ChargeID == 0 {
			key = "account-" + strconv.FormatInt(e.RecipientID, 10)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(key),
			Value: value,
			Time:  e.OccurredAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, events...)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
