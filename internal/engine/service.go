// Package engine orchestrates route optimization: cache lookup, candidate
// generation, parallel exposure scoring, ranking, and the cache write-back.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/ranking"
	"github.com/cleanroute/cleanroute/internal/routecache"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

// Engine errors.
var (
	// ErrMissingRouteData indicates no candidate geometry is available for
	// the requested origin and destination.
	ErrMissingRouteData = errors.New("no candidate routes available")
	// ErrTimeout indicates the request deadline was exceeded. No partial
	// result is cached.
	ErrTimeout = errors.New("route optimization deadline exceeded")
)

// ServiceConfig holds configuration for the engine.
type ServiceConfig struct {
	Provider   routing.Provider
	Calculator *exposure.Calculator
	Cache      *routecache.Cache
	Reader     griddata.Reader
	Logger     zerolog.Logger

	// RequestTimeout bounds one Optimize call (default: 3 seconds).
	RequestTimeout time.Duration

	// BatchTimeout bounds one OptimizeBatch call (default: 30 seconds).
	BatchTimeout time.Duration

	// BatchConcurrency bounds parallel batch elements (default: 4).
	BatchConcurrency int

	// UsePredictions enables forecast-based scoring for future departures.
	UsePredictions bool
}

// Service is the route optimization engine.
type Service struct {
	provider         routing.Provider
	calculator       *exposure.Calculator
	cache            *routecache.Cache
	reader           griddata.Reader
	logger           zerolog.Logger
	requestTimeout   time.Duration
	batchTimeout     time.Duration
	batchConcurrency int
	usePredictions   bool
}

// NewService creates the engine.
func NewService(cfg ServiceConfig) *Service {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Second
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}

	return &Service{
		provider:         cfg.Provider,
		calculator:       cfg.Calculator,
		cache:            cfg.Cache,
		reader:           cfg.Reader,
		logger:           cfg.Logger,
		requestTimeout:   cfg.RequestTimeout,
		batchTimeout:     cfg.BatchTimeout,
		batchConcurrency: cfg.BatchConcurrency,
		usePredictions:   cfg.UsePredictions,
	}
}

// MeanAQIFingerprint builds the drift-check function the result cache uses:
// the mean current AQI over the cells a cached entry was computed from,
// skipping cells that have no reading right now. No readings at all is an
// error, which the cache treats as a miss.
func MeanAQIFingerprint(reader griddata.Reader) routecache.FingerprintFunc {
	return func(ctx context.Context, cells []griddata.Cell) (float64, error) {
		var sum float64
		var count int
		for _, cell := range cells {
			r, err := reader.ReadCurrent(ctx, cell)
			if err != nil {
				if errors.Is(err, griddata.ErrReadingAbsent) {
					continue
				}
				return 0, err
			}
			sum += r.AQI
			count++
		}
		if count == 0 {
			return 0, griddata.ErrReadingAbsent
		}
		return sum / float64(count), nil
	}
}

// Optimize returns ranked route recommendations for a single request. The
// result is deterministic given identical inputs and an identical data
// snapshot. The call is bounded by the request timeout; on expiry it returns
// ErrTimeout and writes nothing to the cache.
func (s *Service) Optimize(ctx context.Context, origin, destination geo.Point, departureTime time.Time, prefs ranking.Preferences) (*ranking.Result, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if err := routing.ValidateCoordinates(origin); err != nil {
		return nil, err
	}
	if err := routing.ValidateCoordinates(destination); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	key := s.cache.Key(origin, destination, departureTime)

	result, err := s.cache.GetOrCompute(reqCtx, key, func(ctx context.Context) (*routecache.ComputeResult, error) {
		return s.compute(ctx, origin, destination, departureTime, prefs)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().
				Str("key", key).
				Dur("timeout", s.requestTimeout).
				Msg("route optimization timed out")
			return nil, ErrTimeout
		}
		return nil, err
	}

	return result, nil
}

// compute is the cache-miss path: candidates, parallel scoring, ranking, and
// the fingerprint for the cache entry.
func (s *Service) compute(ctx context.Context, origin, destination geo.Point, departureTime time.Time, prefs ranking.Preferences) (*routecache.ComputeResult, error) {
	candidates, err := s.provider.GenerateCandidates(ctx, origin, destination)
	if err != nil {
		if errors.Is(err, routing.ErrNoRouteFound) {
			return nil, ErrMissingRouteData
		}
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrMissingRouteData
	}

	// Candidate scores are independent; compute them in parallel.
	exposures := make([]*exposure.RouteExposure, len(candidates))
	g, scoreCtx := errgroup.WithContext(ctx)
	for i, route := range candidates {
		g.Go(func() error {
			re, err := s.calculator.ComputeExposure(scoreCtx, route, departureTime, s.usePredictions)
			if err != nil {
				return err
			}
			exposures[i] = re
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked, err := ranking.RankRoutes(candidates, exposures, prefs)
	if err != nil {
		return nil, err
	}

	cells := unionCells(exposures)
	baseline, err := MeanAQIFingerprint(s.reader)(ctx, cells)
	if err != nil {
		// Entirely estimated data: cache without a drift baseline so the
		// TTL alone governs the entry.
		baseline = 0
		cells = nil
	}

	s.logger.Debug().
		Int("candidates", len(candidates)).
		Int("recommendations", len(ranked.Recommendations)).
		Bool("high_exposure", ranked.HighExposure).
		Msg("route optimization computed")

	return &routecache.ComputeResult{
		Result:      ranked,
		Cells:       cells,
		BaselineAQI: baseline,
	}, nil
}

// unionCells collects the distinct grid cells across all scored candidates.
func unionCells(exposures []*exposure.RouteExposure) []griddata.Cell {
	seen := make(map[string]bool)
	var cells []griddata.Cell
	for _, e := range exposures {
		for _, cell := range e.Cells {
			if !seen[cell.ID()] {
				seen[cell.ID()] = true
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

// BatchRequest is one element of an OptimizeBatch call.
type BatchRequest struct {
	Origin        geo.Point
	Destination   geo.Point
	DepartureTime time.Time
	Preferences   ranking.Preferences
}

// BatchResult is the per-element outcome. Elements succeed or fail
// independently.
type BatchResult struct {
	Result *ranking.Result
	Err    error
}

// OptimizeBatch serves multiple requests under one overall deadline. A failed
// element never aborts the batch.
func (s *Service) OptimizeBatch(ctx context.Context, requests []BatchRequest) []BatchResult {
	batchCtx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()

	results := make([]BatchResult, len(requests))

	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, req := range requests {
		g.Go(func() error {
			result, err := s.Optimize(batchCtx, req.Origin, req.Destination, req.DepartureTime, req.Preferences)
			results[i] = BatchResult{Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // element errors are collected per slot

	return results
}
