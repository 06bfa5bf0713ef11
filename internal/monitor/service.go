package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleanroute/cleanroute/internal/alerting"
	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/ranking"
	"github.com/cleanroute/cleanroute/internal/routing"
)

// ServiceConfig holds configuration for the monitor service.
type ServiceConfig struct {
	Repository Repository
	Calculator *exposure.Calculator
	Provider   routing.Provider
	Notifier   alerting.Notifier
	Logger     zerolog.Logger

	// Interval is the sweep cadence (default: 5 minutes).
	Interval time.Duration

	// Concurrency is the number of routes evaluated in parallel per sweep
	// (default: 3).
	Concurrency int

	// EvalTimeout bounds one route's re-evaluation (default: 10 seconds).
	EvalTimeout time.Duration

	// UsePredictions passes through to exposure scoring during sweeps.
	UsePredictions bool
}

// Service re-evaluates monitored routes on a fixed interval and drives the
// per-route alert state machine.
type Service struct {
	repo           Repository
	calculator     *exposure.Calculator
	provider       routing.Provider
	notifier       alerting.Notifier
	logger         zerolog.Logger
	interval       time.Duration
	concurrency    int
	evalTimeout    time.Duration
	usePredictions bool

	metrics SweepMetrics
}

// SweepMetrics tracks sweep statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	Sweeps        int64
	Evaluated     int64
	Alerts        int64
	AllClears     int64
	Failures      int64
	LastSweepAt   time.Time
	LastSweepTook time.Duration
}

// NewService creates a monitor service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 10 * time.Second
	}

	return &Service{
		repo:           cfg.Repository,
		calculator:     cfg.Calculator,
		provider:       cfg.Provider,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger,
		interval:       cfg.Interval,
		concurrency:    cfg.Concurrency,
		evalTimeout:    cfg.EvalTimeout,
		usePredictions: cfg.UsePredictions,
	}
}

// Subscribe starts monitoring a route for a user. The exposure computed now
// becomes the baseline; the route starts in NORMAL. A non-positive threshold
// selects the default.
func (s *Service) Subscribe(ctx context.Context, userID string, route routing.Route, threshold float64) (string, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	baseline, err := s.calculator.ComputeExposure(ctx, route, time.Now(), false)
	if err != nil {
		return "", err
	}

	m := &MonitoredRoute{
		ID:            "sub_" + uuid.New().String()[:22],
		UserID:        userID,
		Route:         route,
		BaselineScore: baseline.Score,
		Threshold:     threshold,
		State:         StateNormal,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("subscription_id", m.ID).
		Str("user_id", userID).
		Str("route_id", route.ID).
		Float64("baseline_score", m.BaselineScore).
		Float64("threshold", threshold).
		Msg("route subscribed for monitoring")

	return m.ID, nil
}

// Get returns one monitored route by subscription ID.
func (s *Service) Get(ctx context.Context, subscriptionID string) (*MonitoredRoute, error) {
	return s.repo.Get(ctx, subscriptionID)
}

// Unsubscribe stops monitoring. No transition check fires afterward.
func (s *Service) Unsubscribe(ctx context.Context, subscriptionID string) error {
	return s.repo.Delete(ctx, subscriptionID)
}

// Run sweeps all monitored routes on the configured interval until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.interval).
		Int("concurrency", s.concurrency).
		Msg("route monitor started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("route monitor stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Evaluated int
	Alerts    int
	AllClears int
	Failures  int
	Duration  time.Duration
}

// Sweep re-evaluates every monitored route once, fanning out across a small
// worker pool.
func (s *Service) Sweep(ctx context.Context) *SweepResult {
	start := time.Now()
	result := &SweepResult{}

	routes, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list monitored routes")
		result.Failures++
		return result
	}
	if len(routes) == 0 {
		return result
	}

	routesChan := make(chan *MonitoredRoute, len(routes))
	resultsChan := make(chan Transition, len(routes))

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range routesChan {
				select {
				case <-ctx.Done():
					return
				default:
					resultsChan <- s.evaluateRoute(ctx, m)
				}
			}
		}()
	}

	for _, m := range routes {
		routesChan <- m
	}
	close(routesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for transition := range resultsChan {
		result.Evaluated++
		switch transition {
		case TransitionAlert:
			result.Alerts++
		case TransitionAllClear:
			result.AllClears++
		}
	}

	result.Duration = time.Since(start)
	s.updateMetrics(result)

	s.logger.Debug().
		Int("evaluated", result.Evaluated).
		Int("alerts", result.Alerts).
		Int("all_clears", result.AllClears).
		Dur("duration", result.Duration).
		Msg("monitor sweep completed")

	return result
}

// evaluateRoute recomputes one route's exposure and applies the state
// machine. The subscription may have been cancelled since List; UpdateState
// returning not-found suppresses the side effects.
func (s *Service) evaluateRoute(ctx context.Context, m *MonitoredRoute) Transition {
	evalCtx, cancel := context.WithTimeout(ctx, s.evalTimeout)
	defer cancel()

	current, err := s.calculator.ComputeExposure(evalCtx, m.Route, time.Now(), s.usePredictions)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("subscription_id", m.ID).
			Msg("exposure re-evaluation failed")
		return TransitionNone
	}

	nextState, transition := m.Next(current.Score)
	now := time.Now()

	if err := s.repo.UpdateState(evalCtx, m.ID, nextState, now); err != nil {
		if transition != TransitionNone {
			s.logger.Debug().
				Str("subscription_id", m.ID).
				Msg("subscription removed before transition applied")
		}
		return TransitionNone
	}

	switch transition {
	case TransitionAlert:
		s.dispatch(evalCtx, m, alerting.KindAlert, current.Score)
	case TransitionAllClear:
		s.dispatch(evalCtx, m, alerting.KindAllClear, current.Score)
	}

	return transition
}

// dispatch sends the notification for a transition. An alert carries a
// lower-exposure alternative when one can be found right now; failures are
// logged, never retried here.
func (s *Service) dispatch(ctx context.Context, m *MonitoredRoute, kind alerting.Kind, currentScore float64) {
	n := alerting.Notification{
		UserID:        m.UserID,
		RouteID:       m.Route.ID,
		Kind:          kind,
		BaselineScore: m.BaselineScore,
		CurrentScore:  currentScore,
	}

	if kind == alerting.KindAlert {
		n.Alternative = s.findAlternative(ctx, m.Route, currentScore)
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error().Err(err).
			Str("subscription_id", m.ID).
			Str("kind", string(kind)).
			Msg("notification dispatch failed")
	}
}

// findAlternative asks the routing provider for fresh candidates and returns
// the best-ranked one with lower exposure than the current score, or nil.
func (s *Service) findAlternative(ctx context.Context, route routing.Route, currentScore float64) *routing.Route {
	if s.provider == nil {
		return nil
	}

	candidates, err := s.provider.GenerateCandidates(ctx, route.Origin, route.Destination)
	if err != nil || len(candidates) == 0 {
		return nil
	}

	exposures := make([]*exposure.RouteExposure, 0, len(candidates))
	routes := make([]routing.Route, 0, len(candidates))
	for _, c := range candidates {
		re, err := s.calculator.ComputeExposure(ctx, c, time.Now(), s.usePredictions)
		if err != nil {
			continue
		}
		routes = append(routes, c)
		exposures = append(exposures, re)
	}
	if len(routes) == 0 {
		return nil
	}

	ranked, err := ranking.RankRoutes(routes, exposures, ranking.DefaultPreferences())
	if err != nil {
		return nil
	}

	top := ranked.Recommendations[0]
	if top.Exposure.Score < currentScore && top.Route.ID != route.ID {
		alt := top.Route
		return &alt
	}
	return nil
}

func (s *Service) updateMetrics(result *SweepResult) {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()

	s.metrics.Sweeps++
	s.metrics.Evaluated += int64(result.Evaluated)
	s.metrics.Alerts += int64(result.Alerts)
	s.metrics.AllClears += int64(result.AllClears)
	s.metrics.Failures += int64(result.Failures)
	s.metrics.LastSweepAt = time.Now()
	s.metrics.LastSweepTook = result.Duration
}

// Metrics returns a copy of the current sweep metrics.
func (s *Service) Metrics() SweepMetrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return SweepMetrics{
		Sweeps:        s.metrics.Sweeps,
		Evaluated:     s.metrics.Evaluated,
		Alerts:        s.metrics.Alerts,
		AllClears:     s.metrics.AllClears,
		Failures:      s.metrics.Failures,
		LastSweepAt:   s.metrics.LastSweepAt,
		LastSweepTook: s.metrics.LastSweepTook,
	}
}
