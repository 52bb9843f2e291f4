package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"relay-node/internal/fanout"
	"relay-node/internal/log"
	"relay-node/internal/middleware"
	"relay-node/internal/netinfo"
	"relay-node/internal/telemetry"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// Relay fans one request out to the configured peers.
type Relay interface {
	FanOut(ctx context.Context, inbound http.Header) fanout.Result
	Peers() []fanout.PeerEndpoint
}

// Emitter reports completed fan-outs.
type Emitter interface {
	Emit(ctx context.Context, res fanout.Result)
}

// RelayHandler serves the fan-out report.
type RelayHandler struct {
	relay     Relay
	emitter   Emitter
	hostname  string
	addresses func() ([]string, error)
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRelayHandler builds a RelayHandler. emitter may be nil.
func NewRelayHandler(relay Relay, emitter Emitter) *RelayHandler {
	return &RelayHandler{
		relay:     relay,
		emitter:   emitter,
		hostname:  netinfo.Hostname(),
		addresses: netinfo.IPv4Addresses,
		now:       time.Now,
		logger:    log.WithComponent("handlers"),
	}
}

type peerResult struct {
	URL     string `json:"url"`
	OK      bool   `json:"ok"`
	Time    int64  `json:"time"`
	Message string `json:"message"`
}

type relayReport struct {
	TS      string            `json:"ts"`
	Name    string            `json:"name"`
	Net     []string          `json:"net"`
	Headers map[string]string `json:"headers"`
	Results []peerResult      `json:"results"`
}

// Relay calls every peer and reports who this node is and how each call went.
func (h *RelayHandler) Relay(c *gin.Context) {
	ts := h.now().UTC().Format(isoMillis)

	ctx, span := telemetry.StartFanoutSpan(c.Request.Context())
	res := h.relay.FanOut(ctx, c.Request.Header)
	telemetry.EndFanoutSpan(span, res)

	ctx = log.ContextWithRequestID(ctx, res.Propagated.RequestID())
	c.Request = c.Request.WithContext(log.ContextWithRequestID(c.Request.Context(), res.Propagated.RequestID()))
	c.Set(middleware.RequestIDKey, res.Propagated.RequestID())

	report := relayReport{
		TS:      ts,
		Name:    h.hostname,
		Net:     h.networks(ctx),
		Headers: flattenHeaders(c.Request),
		Results: make([]peerResult, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		report.Results = append(report.Results, peerResult{
			URL:     o.URL,
			OK:      o.OK,
			Time:    o.Elapsed.Milliseconds(),
			Message: o.Message,
		})
	}

	if h.emitter != nil {
		h.emitter.Emit(ctx, res)
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger := log.WithContext(ctx, h.logger)
		logger.Error().Err(err).Msg("failed to encode report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode report"})
		return
	}
	c.Data(http.StatusOK, "application/json", append(body, '\n'))
}

// Ready reports the peers this node relays to.
func (h *RelayHandler) Ready(c *gin.Context) {
	peers := h.relay.Peers()
	c.JSON(http.StatusOK, gin.H{"ready": len(peers) > 0, "peers": peers})
}

func (h *RelayHandler) networks(ctx context.Context) []string {
	list, err := h.addresses()
	if err != nil {
		logger := log.WithContext(ctx, h.logger)
		logger.Warn().Err(err).Msg("failed to list network interfaces")
		return []string{}
	}
	return list
}

// flattenHeaders renders inbound headers with lower-case names, joining
// repeated values with ", ".
func flattenHeaders(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+1)
	if r.Host != "" {
		out["host"] = r.Host
	}
	for name, values := range r.Header {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}
