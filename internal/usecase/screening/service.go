package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/constraints"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/preferences"
	"github.com/kailas-cloud/screener/internal/domain/screening"
	"github.com/kailas-cloud/screener/internal/logger"
	"github.com/kailas-cloud/screener/internal/metrics"
)

// pushdownSlack widens the radius sent to the store, whose earth model
// differs slightly from Haversine here. The proximity phase stays exact.
const pushdownSlack = 1.01

// Config tunes the screening pipeline.
type Config struct {
	ProximityRadiusKm     float64
	ExclusionThreshold    float64
	TopK                  int
	SimilarityWeight      float64
	PriceWeight           float64
	Dimensions            int
	Timeout               time.Duration
	DefaultCountry        string
	ComposePreferenceText bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ProximityRadiusKm:  20.0,
		ExclusionThreshold: 0.7,
		TopK:               5,
		SimilarityWeight:   0.8,
		PriceWeight:        0.2,
		Timeout:            5 * time.Second,
	}
}

// Request is one screening call: what the traveler cannot accept and what
// they would prefer.
type Request struct {
	Constraints constraints.HardConstraints
	Preferences preferences.SoftPreferences
}

// Service runs the screening pipeline: compile, proximity, exclusion, rank.
// It holds no per-request state.
type Service struct {
	catalog   Catalog
	geocoder  Geocoder
	proximity *ProximityFilter
	exclusion *ExclusionFilter
	ranker    *Ranker
	cfg       Config
}

// New creates a screening service. pool may be nil.
func New(cat Catalog, embed Embedder, geocoder Geocoder, pool *ants.Pool, cfg Config) *Service {
	return &Service{
		catalog:   cat,
		geocoder:  geocoder,
		proximity: NewProximityFilter(geocoder, pool, cfg.ProximityRadiusKm),
		exclusion: NewExclusionFilter(embed, cfg.ExclusionThreshold, cfg.Dimensions),
		ranker:    NewRanker(embed, cfg.SimilarityWeight, cfg.PriceWeight, cfg.TopK, cfg.Dimensions),
		cfg:       cfg,
	}
}

// Screen returns the ranked products feasible under req.
//
// Malformed input fails with a *domain.ConfigError before any store access.
// Catalog failures, timeouts and cancellation fail with
// domain.ErrUpstreamUnavailable. Every other condition yields a Result,
// possibly empty, with the phases that ran and notes on any degradation.
func (s *Service) Screen(ctx context.Context, req *Request) (*screening.Result, error) {
	start := time.Now()
	res, err := s.screen(ctx, req)
	metrics.ScreeningDuration.Observe(time.Since(start).Seconds())
	metrics.ScreeningsTotal.WithLabelValues(outcome(res, err)).Inc()
	return res, err
}

func (s *Service) screen(ctx context.Context, req *Request) (*screening.Result, error) {
	hc := &req.Constraints
	pred, err := Compile(hc)
	if err != nil {
		return nil, err
	}
	if err = req.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("preferences: %w", err)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := logger.FromContext(ctx).With(zap.String("screening_id", uuid.NewString()))
	res := screening.NewResult()
	stats := &screening.Stats{}
	res.Stats = stats

	if hc.IsEmpty() && s.cfg.DefaultCountry != "" {
		pred = CountryOnly(s.cfg.DefaultCountry)
		res.Note("constraint_compiler: no hard constraints, default country " + s.cfg.DefaultCountry + " applied")
	}

	// Resolved before the query so the store can cap rows already near it.
	ref, refNote := s.referencePoint(ctx, log, hc)
	if ref != nil {
		pred = pred.WithinRadius(*ref, s.proximity.RadiusKm()*pushdownSlack)
	}

	// Phase 1: exact-match predicate.
	qr, err := s.catalog.Query(ctx, pred)
	if err != nil {
		return nil, domain.Unavailable("catalog query", err)
	}
	items := qr.Items
	stats.Initial = len(items)
	if qr.Truncated {
		log.Warn("Catalog candidates truncated", zap.Int("returned", len(items)), zap.Int("matched", qr.Total))
		metrics.ScreeningDegradationsTotal.WithLabelValues(string(screening.PhaseConstraintCompiler), "truncated").Inc()
		res.Note(fmt.Sprintf("constraint_compiler: candidates truncated at %d of %d", len(items), qr.Total))
	}

	cands := make([]Candidate, 0, len(items))
	for i := range items {
		if pred.Match(&items[i]) {
			cands = append(cands, Candidate{Item: items[i]})
		}
	}
	stats.AfterCompile = len(cands)
	res.Apply(screening.PhaseConstraintCompiler)
	s.logPhase(log, screening.PhaseConstraintCompiler, stats.Initial, len(cands),
		zap.Strings("clauses", pred.ClauseNames()))
	if len(cands) == 0 {
		return s.empty(log, res), nil
	}
	if err = ctx.Err(); err != nil {
		return nil, domain.Unavailable("screening aborted", err)
	}

	// Phase 2: proximity.
	cands = s.applyProximity(ctx, log, res, ref, refNote, cands)
	stats.AfterProximity = len(cands)
	if len(cands) == 0 {
		return s.empty(log, res), nil
	}
	if err = ctx.Err(); err != nil {
		return nil, domain.Unavailable("screening aborted", err)
	}

	// Phase 3: semantic exclusion.
	cands = s.applyExclusion(ctx, log, res, hc.Exclusions, cands)
	stats.AfterExclusion = len(cands)
	if len(cands) == 0 {
		return s.empty(log, res), nil
	}
	if err = ctx.Err(); err != nil {
		return nil, domain.Unavailable("screening aborted", err)
	}

	// Phase 4: ranking.
	text := req.Preferences.Text()
	if text == "" && s.cfg.ComposePreferenceText {
		text = req.Preferences.ComposedText()
	}
	products, err := s.ranker.Rank(ctx, cands, text, req.Preferences.PriceMax)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.Unavailable("screening aborted", ctxErr)
		}
		log.Warn("Preference embedding failed, ranking by distance and price", zap.Error(err))
		metrics.ScreeningDegradationsTotal.WithLabelValues(string(screening.PhaseSemanticRanker), "embedding").Inc()
		res.Note("semantic_ranker: embedding unavailable, ranked by distance and price")
	case text == "":
		res.Note("semantic_ranker: no preference text, ranked by distance and price")
	}
	res.Apply(screening.PhaseSemanticRanker)
	res.Products = products
	log.Info("Screening ranked",
		zap.Int("candidates", len(cands)),
		zap.Int("returned", len(products)),
	)
	return res, nil
}

func (s *Service) applyProximity(
	ctx context.Context, log *zap.Logger, res *screening.Result,
	ref *geo.Point, note string, cands []Candidate,
) []Candidate {
	if ref == nil {
		res.Note(note)
		log.Info("Proximity filter skipped", zap.String("reason", note))
		return cands
	}

	out, err := s.proximity.Apply(ctx, cands, *ref)
	if err != nil {
		log.Warn("Geocoder unavailable, proximity filter skipped", zap.Error(err))
		metrics.ScreeningDegradationsTotal.WithLabelValues(string(screening.PhaseProximityFilter), "geocoder").Inc()
		res.Note("proximity_filter: geocoder unavailable")
		return cands
	}
	res.Apply(screening.PhaseProximityFilter)
	s.logPhase(log, screening.PhaseProximityFilter, len(cands), len(out),
		zap.Float64("radius_km", s.proximity.RadiusKm()))
	return out
}

// referencePoint picks accommodation, then target coordinates, then the
// geocoded target city. A nil point comes with the note explaining why.
func (s *Service) referencePoint(
	ctx context.Context, log *zap.Logger, hc *constraints.HardConstraints,
) (*geo.Point, string) {
	if p := hc.ReferencePoint(); p != nil {
		return p, ""
	}
	if hc.TargetCity == nil || s.geocoder == nil {
		return nil, "proximity_filter: no reference point"
	}
	p, ok, err := s.geocoder.Resolve(ctx, *hc.TargetCity)
	if err != nil {
		log.Warn("Target city lookup failed", zap.String("city", *hc.TargetCity), zap.Error(err))
		metrics.ScreeningDegradationsTotal.WithLabelValues(string(screening.PhaseProximityFilter), "geocoder").Inc()
		return nil, "proximity_filter: geocoder unavailable"
	}
	if !ok {
		return nil, "proximity_filter: target city " + *hc.TargetCity + " not resolved"
	}
	return &p, ""
}

func (s *Service) applyExclusion(
	ctx context.Context, log *zap.Logger, res *screening.Result,
	ex constraints.SemanticExclusions, cands []Candidate,
) []Candidate {
	if ex.IsEmpty() {
		return cands
	}
	out, unverifiable, err := s.exclusion.Apply(ctx, cands, ex)
	if err != nil {
		// Safety-relevant: the no-violation guarantee is weaker for this call.
		log.Error("Semantic exclusion skipped, exclusion terms were NOT enforced",
			zap.Int("terms", len(ex.Terms())),
			zap.Error(err),
		)
		metrics.ScreeningDegradationsTotal.WithLabelValues(string(screening.PhaseSemanticExclusion), "embedding").Inc()
		res.Note("semantic_exclusion: embedding unavailable, exclusions not enforced")
		return cands
	}
	if unverifiable > 0 {
		log.Warn("Candidates without a usable embedding excluded", zap.Int("count", unverifiable))
		metrics.ScreeningDegradationsTotal.WithLabelValues(string(screening.PhaseSemanticExclusion), "item_embedding").Inc()
		res.Note(fmt.Sprintf("semantic_exclusion: %d items without a usable embedding excluded", unverifiable))
	}
	res.Apply(screening.PhaseSemanticExclusion)
	s.logPhase(log, screening.PhaseSemanticExclusion, len(cands), len(out),
		zap.Float64("threshold", s.exclusion.threshold),
		zap.Int("unverifiable", unverifiable))
	return out
}

func (s *Service) empty(log *zap.Logger, res *screening.Result) *screening.Result {
	res.Infeasible()
	log.Info("Screening found no feasible products", zap.Any("phases", res.PhasesApplied))
	return res
}

func (s *Service) logPhase(log *zap.Logger, phase screening.Phase, before, after int, fields ...zap.Field) {
	metrics.ScreeningPhaseSurvivors.WithLabelValues(string(phase)).Observe(float64(after))
	log.Info("Screening phase applied", append([]zap.Field{
		zap.String("phase", string(phase)),
		zap.Int("before", before),
		zap.Int("after", after),
	}, fields...)...)
}

func outcome(res *screening.Result, err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidConstraints):
		return "invalid"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	case err != nil:
		return "error"
	case len(res.Products) == 0:
		return "empty"
	default:
		return "ranked"
	}
}
