package resilience

import (
	"context"
	"time"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/geo"
)

type stubEmbedder struct {
	err       error
	calls     int
	healthErr error
}

func (s *stubEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	s.calls++
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1}}, nil
}

func (s *stubEmbedder) HealthCheck(context.Context) error { return s.healthErr }

type stubResolver struct {
	err   error
	known bool
	calls int
}

func (s *stubResolver) Resolve(context.Context, string) (geo.Point, bool, error) {
	s.calls++
	if s.err != nil {
		return geo.Point{}, false, s.err
	}
	if !s.known {
		return geo.Point{}, false, nil
	}
	return geo.Point{Latitude: 1, Longitude: 2}, true, nil
}

func testSettings() Settings {
	return Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, FailureThreshold: 3}
}
