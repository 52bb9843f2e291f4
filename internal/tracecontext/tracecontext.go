// Package tracecontext selects the distributed-tracing headers that a relay
// node forwards to its peers.
package tracecontext

import (
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID correlates one logical request across every hop.
const HeaderRequestID = "x-request-id"

// Forwarded lists every header copied from the inbound request.
var Forwarded = []string{
	HeaderRequestID,
	"x-b3-traceid",
	"x-b3-spanid",
	"x-b3-parentspanid",
	"x-b3-sampled",
	"x-b3-flags",
	"x-ot-span-context",
}

// Headers maps lower-case header names to the values sent downstream.
type Headers map[string]string

// Extract builds the propagated header set for one inbound request. A fresh
// v4 UUID is used when the request carries no request id.
func Extract(inbound http.Header) Headers {
	return extract(inbound, uuid.NewString)
}

func extract(inbound http.Header, newID func() string) Headers {
	out := make(Headers, len(Forwarded))
	for _, name := range Forwarded {
		if value := inbound.Get(name); value != "" {
			out[name] = value
		}
	}
	if out[HeaderRequestID] == "" {
		out[HeaderRequestID] = newID()
	}
	return out
}

// RequestID returns the propagated request id.
func (h Headers) RequestID() string {
	return h[HeaderRequestID]
}

// Apply sets every propagated header on dst.
func (h Headers) Apply(dst http.Header) {
	for name, value := range h {
		dst.Set(name, value)
	}
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for name, value := range h {
		out[name] = value
	}
	return out
}
