// Package ingest publishes lifecycle events to Kafka. Consumers are external
// collaborators: the points/leaderboard ledger (referral validation), the
// presence projector (driver pings) and analytics. Publishing is best-effort;
// a broker outage never blocks a trip or booking transition.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EventTripSubmitted    = "trip.submitted"
	EventTripTransitioned = "trip.transitioned"
	EventTripsExpired     = "trips.expired"
	EventBookingCreated   = "booking.created"
	EventBookingLaunched  = "booking.whatsapp_launched"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventReferralResolved = "referral.resolved"
)

type Event struct {
	Type     string    `json:"type"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

// Publish writes one event, keyed by entity id so per-entity ordering holds.
// Nil receivers are allowed so callers don't need to guard on "kafka
// configured at all".
func (p *Producer) Publish(evType, entityID string, payload any) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(Event{Type: evType, EntityID: entityID, At: time.Now().UTC(), Payload: payload})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(entityID), Value: b})
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// PresencePing is the message shape on the driver-presence topic, consumed by
// cmd/presence into the Redis projection.
type PresencePing struct {
	DriverID string    `json:"driver_id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	At       time.Time `json:"at"`
}
