package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/mqttcm"
)

// ErrNotConnected is returned when publishing before the MQTT connection
// was set up.
var ErrNotConnected = errors.New("mqtt not connected")

type outcomeMessage struct {
	Outcome entity.Outcome `json:"outcome"`
	Ts      time.Time      `json:"ts,omitzero"`
}

// MQTT receives observations published on the outcome topics. The same
// connection is used to publish the selection.
type MQTT struct {
	log    *slog.Logger
	cfg    mqttcm.Config
	topics *mqttcm.MQTTTopics
	name   string

	mu sync.Mutex
	cm *autopaho.ConnectionManager
}

func NewMQTT(log *slog.Logger, cfg mqttcm.Config, topics *mqttcm.MQTTTopics, name string) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = name
	}
	return &MQTT{
		log:    log.WithGroup("mqtt"),
		cfg:    cfg,
		topics: topics,
		name:   name,
	}
}

// Run connects and subscribes to the outcome topics. It returns when ctx
// is done, disconnecting cleanly.
func (m *MQTT) Run(ctx context.Context, r Recorder) error {
	cm, err := mqttcm.Setup(ctx, m.log, m.cfg,
		m.topics.Status(m.name),
		[]string{m.topics.OutcomeSubscription()},
		m.handler(r),
	)
	if err != nil {
		return fmt.Errorf("mqtt setup: %w", err)
	}

	m.mu.Lock()
	m.cm = cm
	m.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-cm.Done():
		m.log.Info("mqtt connection done")
		return nil
	}

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cm.Disconnect(disconnectCtx); err != nil {
		m.log.Debug("mqtt disconnect", "err", err)
	}
	return ctx.Err()
}

func (m *MQTT) handler(r Recorder) mqttcm.Handler {
	return func(ctx context.Context, p *paho.Publish) {
		o, err := DecodeOutcome(m.topics, p.Topic, p.Payload)
		if err != nil {
			countObservation(ctx, "mqtt", "invalid")
			m.log.WarnContext(ctx, "dropping mqtt message", "topic", p.Topic, "err", err)
			return
		}
		if err := r.Record(ctx, o); err != nil {
			m.log.WarnContext(ctx, "could not record observation", "id", o.EntityID, "err", err)
		}
	}
}

// PublishJSON publishes v on topic over the feed's connection.
func (m *MQTT) PublishJSON(ctx context.Context, topic string, v any, retain bool) error {
	m.mu.Lock()
	cm := m.cm
	m.mu.Unlock()

	if cm == nil {
		return ErrNotConnected
	}
	return mqttcm.PublishJSON(ctx, cm, topic, v, retain)
}

// DecodeOutcome builds an observation from an outcome topic and its JSON
// payload, {"outcome":"A","ts":"2026-01-02T15:04:05Z"}. ts is optional.
func DecodeOutcome(topics *mqttcm.MQTTTopics, topic string, payload []byte) (Observation, error) {
	id, err := topics.ParseOutcomeTopic(topic)
	if err != nil {
		return Observation{}, errors.Join(ErrInvalidObservation, err)
	}

	var msg outcomeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Observation{}, errors.Join(ErrInvalidObservation, err)
	}

	o := Observation{
		EntityID: id,
		Outcome:  msg.Outcome,
		Ts:       msg.Ts,
	}
	return o, o.Validate()
}
