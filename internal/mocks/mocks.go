package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"relay-node/internal/fanout"
)

type RelayMock struct {
	mock.Mock
}

func (m *RelayMock) FanOut(ctx context.Context, inbound http.Header) fanout.Result {
	args := m.Called(ctx, inbound)
	var res fanout.Result
	if val := args.Get(0); val != nil {
		res = val.(fanout.Result)
	}
	return res
}

func (m *RelayMock) Peers() []fanout.PeerEndpoint {
	args := m.Called()
	var peers []fanout.PeerEndpoint
	if val := args.Get(0); val != nil {
		peers = val.([]fanout.PeerEndpoint)
	}
	return peers
}

type EmitterMock struct {
	mock.Mock
}

func (m *EmitterMock) Emit(ctx context.Context, res fanout.Result) {
	m.Called(ctx, res)
}

var _ interface {
	FanOut(context.Context, http.Header) fanout.Result
	Peers() []fanout.PeerEndpoint
} = (*RelayMock)(nil)
