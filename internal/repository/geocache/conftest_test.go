package geocache

import (
	"context"
	"sync/atomic"

	"github.com/kailas-cloud/screener/internal/domain/geo"
)

type mockResolver struct {
	points map[string]geo.Point
	err    error
	calls  atomic.Int32
	gate   chan struct{}
}

func (m *mockResolver) Resolve(ctx context.Context, loc string) (geo.Point, bool, error) {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	if err := ctx.Err(); err != nil {
		return geo.Point{}, false, err
	}
	if m.err != nil {
		return geo.Point{}, false, m.err
	}
	p, ok := m.points[loc]
	return p, ok, nil
}

var venice = geo.Point{Latitude: 45.4408, Longitude: 12.3155}

type slowResolver struct{}

func (slowResolver) Resolve(ctx context.Context, _ string) (geo.Point, bool, error) {
	<-ctx.Done()
	return geo.Point{}, false, ctx.Err()
}
