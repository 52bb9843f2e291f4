package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"relay-node/internal/fanout"
	"relay-node/internal/log"
	"relay-node/internal/observability"
)

// RoutingKeyFanout is the routing key of fanout_completed events.
const RoutingKeyFanout = "relay.fanout"

// Publisher is the part of the broker client the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// FanoutEmitter publishes a summary of every completed fan-out.
type FanoutEmitter struct {
	publisher   Publisher
	service     string
	environment string
	node        string
	logger      zerolog.Logger
}

// FanoutEnvelope is the versioned wrapper around every published fan-out event.
type FanoutEnvelope struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	OccurredAt    string        `json:"occurred_at"`
	Service       string        `json:"service"`
	Environment   string        `json:"environment"`
	Node          string        `json:"node"`
	RequestID     string        `json:"request_id"`
	Payload       FanoutPayload `json:"payload"`
}

// FanoutPayload summarises one fan-out.
type FanoutPayload struct {
	Total   int           `json:"total"`
	Failed  int           `json:"failed"`
	Results []PeerSettled `json:"results"`
}

// PeerSettled is the outcome of a single peer call.
type PeerSettled struct {
	URL     string `json:"url"`
	OK      bool   `json:"ok"`
	TimeMS  int64  `json:"time_ms"`
	Message string `json:"message,omitempty"`
}

// NewFanoutEmitter returns an emitter that publishes on publisher, stamping
// each event with service, environment and node.
func NewFanoutEmitter(publisher Publisher, service, environment, node string) *FanoutEmitter {
	return &FanoutEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		node:        node,
		logger:      log.WithComponent("events"),
	}
}

// Emit publishes res. Failures are logged and counted, never returned.
func (e *FanoutEmitter) Emit(ctx context.Context, res fanout.Result) {
	if e == nil || e.publisher == nil {
		return
	}

	results := make([]PeerSettled, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		results = append(results, PeerSettled{
			URL:     o.URL,
			OK:      o.OK,
			TimeMS:  o.Elapsed.Milliseconds(),
			Message: o.Message,
		})
	}

	envelope := FanoutEnvelope{
		SchemaVersion: 1,
		EventType:     "fanout_completed",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Node:          e.node,
		RequestID:     res.Propagated.RequestID(),
		Payload: FanoutPayload{
			Total:   len(res.Outcomes),
			Failed:  res.Failed(),
			Results: results,
		},
	}

	if err := e.publisher.Publish(ctx, RoutingKeyFanout, envelope, res.Propagated.Clone()); err != nil {
		observability.IncAMQPPublishError()
		logger := log.WithContext(ctx, e.logger)
		logger.Warn().Err(err).Str("routing_key", RoutingKeyFanout).Msg("fanout event publish failed")
	}
}
