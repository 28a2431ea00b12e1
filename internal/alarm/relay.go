// Package alarm relays detector status transitions to an MQTT broker so
// remote listeners can react to alarms without polling the detector.
package alarm

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/detector"
	"github.com/HerbHall/mdpanel/internal/refresh"
)

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Publisher sends one message.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
	Close() error
}

// StatusTopic is where detector status is published under base.
func StatusTopic(base string) string { return base + "/status" }

// AvailabilityTopic is where detector reachability is published under base.
func AvailabilityTopic(base string) string { return base + "/availability" }

// Relay publishes retained status and availability messages when they
// change. It is not safe for concurrent use.
type Relay struct {
	pub     Publisher
	topic   string
	logger  *zap.Logger
	marshal func(v any) ([]byte, error)

	lastStatus *detector.Status
	lastOnline *bool
}

// NewRelay creates a Relay publishing under topic.
func NewRelay(pub Publisher, topic string, logger *zap.Logger) *Relay {
	return &Relay{pub: pub, topic: topic, logger: logger, marshal: json.Marshal}
}

// Observe publishes whatever changed in o. A failed publish is retried on
// the next outcome.
func (r *Relay) Observe(ctx context.Context, o refresh.Outcome) {
	if o.Status.OK() && (r.lastStatus == nil || *r.lastStatus != o.Status.Value) {
		s := o.Status.Value
		payload, err := r.marshal(s)
		if err != nil {
			r.logger.Error("alarm relay encode status",
				zap.String("cycle", o.ID),
				zap.Error(err),
			)
		} else if r.publish(ctx, StatusTopic(r.topic), payload, o.ID) {
			r.lastStatus = &s
		}
	}

	online := !o.Failed()
	if r.lastOnline == nil || *r.lastOnline != online {
		payload := Offline
		if online {
			payload = Online
		}
		if r.publish(ctx, AvailabilityTopic(r.topic), []byte(payload), o.ID) {
			r.lastOnline = &online
		}
	}
}

// Close marks the relay offline and releases the publisher.
func (r *Relay) Close(ctx context.Context) error {
	r.publish(ctx, AvailabilityTopic(r.topic), []byte(Offline), "")
	return r.pub.Close()
}

func (r *Relay) publish(ctx context.Context, topic string, payload []byte, cycle string) bool {
	if err := r.pub.Publish(ctx, topic, payload, true); err != nil {
		r.logger.Warn("alarm relay publish failed",
			zap.String("topic", topic),
			zap.String("cycle", cycle),
			zap.Error(err),
		)
		return false
	}
	r.logger.Debug("alarm relay published",
		zap.String("topic", topic),
		zap.ByteString("payload", payload),
	)
	return true
}
