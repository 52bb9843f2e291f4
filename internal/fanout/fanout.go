// Package fanout relays one inbound request to every configured peer
// concurrently and reports how each call went.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"relay-node/internal/log"
	"relay-node/internal/tracecontext"
)

// ErrNoPeers is returned when an Aggregator is built without peers.
var ErrNoPeers = errors.New("no peers configured")

// DefaultTimeout bounds a single peer call when no client is supplied.
const DefaultTimeout = 30 * time.Second

// PeerEndpoint is the base URL of one neighbor, e.g. "http://svc-a:8080/".
type PeerEndpoint string

// NewPeerEndpoint turns a host:port into the endpoint called during fan-out.
func NewPeerEndpoint(hostport string) PeerEndpoint {
	u := url.URL{Scheme: "http", Host: hostport, Path: "/"}
	return PeerEndpoint(u.String())
}

// Outcome is the settled result of one peer call.
type Outcome struct {
	URL     string
	OK      bool
	Elapsed time.Duration
	Message string
}

// Result is everything one fan-out produced. Outcomes follow peer order.
type Result struct {
	Propagated tracecontext.Headers
	Outcomes   []Outcome
}

// Failed counts unsuccessful outcomes.
func (r Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK {
			n++
		}
	}
	return n
}

// Observer is notified once per settled peer call.
type Observer interface {
	ObservePeerCall(peer string, ok bool, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObservePeerCall(string, bool, time.Duration) {}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithClient replaces the outbound HTTP client. The client is copied, so a
// timeout set with WithTimeout never leaks into the caller's value.
func WithClient(client *http.Client) Option {
	return func(a *Aggregator) {
		if client != nil {
			a.client = client
		}
	}
}

// WithTimeout sets the per-call timeout, whatever client is in use.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithObserver registers a per-call observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithLogger sets the logger used for per-call debug lines.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// Aggregator fans requests out to a fixed peer list. It is safe for
// concurrent use; batches share nothing but the read-only peer list.
type Aggregator struct {
	peers    []PeerEndpoint
	client   *http.Client
	timeout  time.Duration
	observer Observer
	logger   zerolog.Logger
}

// New builds an Aggregator for the given host:port peers.
func New(peers []string, opts ...Option) (*Aggregator, error) {
	if len(peers) == 0 {
		return nil, ErrNoPeers
	}

	endpoints := make([]PeerEndpoint, 0, len(peers))
	for _, p := range peers {
		endpoints = append(endpoints, NewPeerEndpoint(p))
	}

	a := &Aggregator{
		peers: endpoints,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultTimeout,
		},
		observer: noopObserver{},
		logger:   log.WithComponent("fanout"),
	}
	for _, opt := range opts {
		opt(a)
	}

	client := *a.client
	if a.timeout > 0 {
		client.Timeout = a.timeout
	}
	a.client = &client
	return a, nil
}

// Peers returns a copy of the configured endpoints.
func (a *Aggregator) Peers() []PeerEndpoint {
	out := make([]PeerEndpoint, len(a.peers))
	copy(out, a.peers)
	return out
}

// FanOut calls every peer concurrently with the tracing headers of inbound and
// waits for all of them. Peer failures are reported in the outcomes, never as
// an error.
func (a *Aggregator) FanOut(ctx context.Context, inbound http.Header) Result {
	headers := tracecontext.Extract(inbound)
	outcomes := make([]Outcome, len(a.peers))

	var g errgroup.Group
	for i, peer := range a.peers {
		i, peer := i, peer
		g.Go(func() error {
			outcomes[i] = a.call(ctx, peer, headers)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Propagated: headers, Outcomes: outcomes}
}

func (a *Aggregator) call(ctx context.Context, peer PeerEndpoint, headers tracecontext.Headers) Outcome {
	outcome := Outcome{URL: string(peer), OK: true}

	start := time.Now()
	err := a.get(ctx, string(peer), headers)
	outcome.Elapsed = time.Since(start)
	if err != nil {
		outcome.OK = false
		outcome.Message = err.Error()
	}

	a.observer.ObservePeerCall(outcome.URL, outcome.OK, outcome.Elapsed)
	a.logger.Debug().
		Str(log.FieldRequestID, headers.RequestID()).
		Str(log.FieldPeer, outcome.URL).
		Bool(log.FieldOK, outcome.OK).
		Int64(log.FieldElapsedMS, outcome.Elapsed.Milliseconds()).
		Str("error", outcome.Message).
		Msg("peer call settled")
	return outcome
}

func (a *Aggregator) get(ctx context.Context, target string, headers tracecontext.Headers) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	headers.Apply(req.Header)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %s from %s", resp.Status, target)
	}

	dec := json.NewDecoder(resp.Body)
	var body any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response from %s: %w", target, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response from %s: unexpected data after JSON value", target)
	}
	return nil
}
