package exposure

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

// CalculatorConfig holds configuration for the exposure calculator.
type CalculatorConfig struct {
	// Reader is the grid data access collaborator.
	Reader griddata.Reader

	// Logger for calculator operations.
	Logger zerolog.Logger

	// City identifies the grid tiling the calculator operates in.
	City string

	// SegmentMeters is the fixed segmentation length (default: 500).
	SegmentMeters float64

	// ObservationWindow is how far past now a departure still counts as
	// "current"; beyond it predictions are used (default: 15 minutes).
	ObservationWindow time.Duration

	// PredictionSlot is the forecast slot granularity (default: 1 hour).
	PredictionSlot time.Duration

	// FallbackRadiusMeters bounds the nearest-cell search when a segment's
	// own cell has no reading (default: 5000).
	FallbackRadiusMeters float64

	// LowConfidence is the prediction confidence below which results are
	// flagged estimated (default: 70).
	LowConfidence float64

	// SpeedsMPS maps traffic levels to assumed traverse speeds in m/s.
	// Defaults: LOW 11.1 (~40 km/h), MEDIUM 8.3 (~30 km/h), HIGH 5.6 (~20 km/h).
	SpeedsMPS map[griddata.TrafficLevel]float64
}

// MaxExposureCeiling is the fixed per-city normalization ceiling: one hour of
// travel at the AQI scale maximum under the highest traffic multiplier
// (500 x 1.6 x 3600). Totals above it clamp to a score of 100. The constant
// is shared by every route within a ranking call so that relative order, the
// load-bearing guarantee, is preserved.
const MaxExposureCeiling = 500.0 * multiplierHigh * 3600.0

// Calculator computes exposure scores for routes. It holds no mutable state
// beyond its configuration and may be shared freely across goroutines.
type Calculator struct {
	reader            griddata.Reader
	logger            zerolog.Logger
	city              string
	segmentMeters     float64
	observationWindow time.Duration
	predictionSlot    time.Duration
	fallbackRadius    float64
	lowConfidence     float64
	speeds            map[griddata.TrafficLevel]float64
}

// NewCalculator creates a new exposure calculator.
func NewCalculator(cfg CalculatorConfig) *Calculator {
	if cfg.SegmentMeters <= 0 {
		cfg.SegmentMeters = 500
	}
	if cfg.ObservationWindow <= 0 {
		cfg.ObservationWindow = 15 * time.Minute
	}
	if cfg.PredictionSlot <= 0 {
		cfg.PredictionSlot = time.Hour
	}
	if cfg.FallbackRadiusMeters <= 0 {
		cfg.FallbackRadiusMeters = 5000
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = 70
	}
	if cfg.SpeedsMPS == nil {
		cfg.SpeedsMPS = map[griddata.TrafficLevel]float64{
			griddata.TrafficLow:    11.1,
			griddata.TrafficMedium: 8.3,
			griddata.TrafficHigh:   5.6,
		}
	}

	return &Calculator{
		reader:            cfg.Reader,
		logger:            cfg.Logger,
		city:              cfg.City,
		segmentMeters:     cfg.SegmentMeters,
		observationWindow: cfg.ObservationWindow,
		predictionSlot:    cfg.PredictionSlot,
		fallbackRadius:    cfg.FallbackRadiusMeters,
		lowConfidence:     cfg.LowConfidence,
		speeds:            cfg.SpeedsMPS,
	}
}

// resolvedAQI is the per-segment resolution result. Segment values never
// outlive one ComputeExposure call.
type resolvedAQI struct {
	aqi       float64
	traffic   griddata.TrafficLevel
	estimated bool
}

// ComputeExposure scores one route for the given departure time. Data-quality
// problems degrade through the fallback chain and annotate the result; only a
// missing geometry fails.
func (c *Calculator) ComputeExposure(ctx context.Context, route routing.Route, departureTime time.Time, usePredictions bool) (*RouteExposure, error) {
	if route.GeometryPolyline == "" {
		return nil, ErrMissingRouteData
	}

	points := geo.DecodePolyline(route.GeometryPolyline)
	if len(points) == 0 {
		return nil, ErrMissingRouteData
	}

	result := &RouteExposure{
		RouteID:    route.ID,
		ComputedAt: time.Now(),
	}

	segments := geo.Segmentize(points, c.segmentMeters)
	if len(segments) == 0 {
		// Origin equals destination: zero exposure, zero segments.
		return result, nil
	}

	seenCells := make(map[string]bool, len(segments))

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cell := griddata.CellFromLocation(c.city, seg.Midpoint())
		if !seenCells[cell.ID()] {
			seenCells[cell.ID()] = true
			result.Cells = append(result.Cells, cell)
		}

		res := c.resolveAQI(ctx, cell, seg.Midpoint(), departureTime, usePredictions)
		if res.estimated {
			result.Estimated = true
		}

		speed := c.speeds[res.traffic]
		if speed <= 0 {
			speed = c.speeds[griddata.TrafficLow]
		}
		if seg.Meters <= 0 || speed <= 0 {
			// Zero-length segment contributes nothing; never divide by zero.
			continue
		}

		traverseSeconds := seg.Meters / speed
		result.TotalExposure += res.aqi * traverseSeconds * trafficMultiplier(res.traffic)
	}

	result.Score = normalizeScore(result.TotalExposure)
	return result, nil
}

// resolveAQI walks the fallback chain for one segment: observed reading,
// predicted slot, inverse-distance weighting over the nearest cells with
// data, then the city-wide mean.
func (c *Calculator) resolveAQI(ctx context.Context, cell griddata.Cell, loc geo.Point, departureTime time.Time, usePredictions bool) resolvedAQI {
	inFuture := usePredictions && time.Until(departureTime) > c.observationWindow

	// A forecast was wanted but none exists for the slot; every stand-in
	// value below is an estimate for that departure.
	forecastMissing := false

	if inFuture {
		slot := departureTime.UTC().Truncate(c.predictionSlot)
		pred, err := c.reader.ReadPredicted(ctx, cell, slot)
		if err == nil {
			traffic := c.trafficForCell(ctx, cell)
			return resolvedAQI{
				aqi:       pred.AQI,
				traffic:   traffic,
				estimated: pred.Confidence < c.lowConfidence,
			}
		}
		if !errors.Is(err, griddata.ErrPredictionAbsent) {
			c.logger.Warn().Err(err).Str("cell", cell.ID()).Msg("prediction read failed, falling back to observation")
		}
		forecastMissing = true
	}

	reading, err := c.reader.ReadCurrent(ctx, cell)
	if err == nil {
		return resolvedAQI{aqi: reading.AQI, traffic: reading.Traffic, estimated: forecastMissing}
	}
	if !errors.Is(err, griddata.ErrReadingAbsent) {
		c.logger.Warn().Err(err).Str("cell", cell.ID()).Msg("grid read failed, using spatial fallback")
	}

	if aqi, ok := c.inverseDistanceAQI(ctx, loc); ok {
		// Interpolated from neighbors; no cell-level traffic available.
		return resolvedAQI{aqi: aqi, traffic: griddata.TrafficMedium, estimated: forecastMissing}
	}

	mean, err := c.reader.CityMean(ctx, c.city)
	if err != nil {
		c.logger.Warn().Err(err).Str("city", c.city).Msg("city mean unavailable, segment contributes zero")
		return resolvedAQI{traffic: griddata.TrafficMedium, estimated: true}
	}
	return resolvedAQI{aqi: mean, traffic: griddata.TrafficMedium, estimated: true}
}

// inverseDistanceAQI interpolates AQI at loc from the nearest three cells
// that have data, weighting by inverse squared distance.
func (c *Calculator) inverseDistanceAQI(ctx context.Context, loc geo.Point) (float64, bool) {
	readings, err := c.reader.NearbyReadings(ctx, c.city, loc, c.fallbackRadius, 3)
	if err != nil || len(readings) == 0 {
		return 0, false
	}

	var weighted, totalWeight float64
	for _, r := range readings {
		dist := geo.Haversine(loc, r.Cell.Center())
		var weight float64
		if dist < 1 {
			// Effectively on the cell center: take its value directly.
			weight = 1e10
		} else {
			weight = 1.0 / (dist * dist)
		}
		weighted += r.AQI * weight
		totalWeight += weight
	}

	return weighted / totalWeight, true
}

// trafficForCell resolves the traffic level for a cell from its latest
// observation, defaulting to MEDIUM when none exists.
func (c *Calculator) trafficForCell(ctx context.Context, cell griddata.Cell) griddata.TrafficLevel {
	reading, err := c.reader.ReadCurrent(ctx, cell)
	if err != nil {
		return griddata.TrafficMedium
	}
	return reading.Traffic
}

// normalizeScore maps a total exposure onto [0,100] against the fixed city
// ceiling. Values above the ceiling clamp to 100.
func normalizeScore(total float64) float64 {
	if total <= 0 {
		return 0
	}
	score := total / MaxExposureCeiling * 100
	return math.Min(score, 100)
}
