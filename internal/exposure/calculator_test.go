package exposure_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

const testCity = "amsterdam"

// testRoute builds a straight ~1.5 km route heading east, which crosses
// three distinct grid cells at the default 500m segmentation.
func testRoute(id string) routing.Route {
	points := []geo.Point{
		{Lat: 52.0, Lon: 4.0},
		{Lat: 52.0, Lon: 4.0219},
	}
	return routing.Route{
		ID:               id,
		Origin:           points[0],
		Destination:      points[len(points)-1],
		GeometryPolyline: geo.EncodePolyline(points),
		DistanceMeters:   1500,
		DurationSeconds:  180,
	}
}

// segmentCells resolves the distinct cells the route's segments fall in, in
// traversal order, the same way the calculator does.
func segmentCells(t *testing.T, route routing.Route, segmentMeters float64) []griddata.Cell {
	t.Helper()

	points := geo.DecodePolyline(route.GeometryPolyline)
	require.NotEmpty(t, points)

	segments := geo.Segmentize(points, segmentMeters)
	require.NotEmpty(t, segments)

	var cells []griddata.Cell
	seen := make(map[string]bool)
	for _, seg := range segments {
		cell := griddata.CellFromLocation(testCity, seg.Midpoint())
		if !seen[cell.ID()] {
			seen[cell.ID()] = true
			cells = append(cells, cell)
		}
	}
	return cells
}

// uniformSpeeds makes every segment traverse in meters/speed seconds
// regardless of traffic, which keeps expected values round.
func uniformSpeeds(mps float64) map[griddata.TrafficLevel]float64 {
	return map[griddata.TrafficLevel]float64{
		griddata.TrafficLow:    mps,
		griddata.TrafficMedium: mps,
		griddata.TrafficHigh:   mps,
	}
}

func TestComputeExposure_SumsSegmentContributions(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")

	cells := segmentCells(t, route, 500)
	require.Len(t, cells, 3, "route should cross three distinct cells")

	// One cell per segment: AQI 50/150/300, traffic LOW/MEDIUM/HIGH.
	store.SetReading(&griddata.Reading{Cell: cells[0], AQI: 50, Traffic: griddata.TrafficLow})
	store.SetReading(&griddata.Reading{Cell: cells[1], AQI: 150, Traffic: griddata.TrafficMedium})
	store.SetReading(&griddata.Reading{Cell: cells[2], AQI: 300, Traffic: griddata.TrafficHigh})

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
		// 500m / 8.3333 m/s = 60s per full segment.
		SpeedsMPS: uniformSpeeds(500.0 / 60.0),
	})

	result, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)

	// 50*60*1.0 + 150*60*1.3 + 300*60*1.6 = 3000 + 11700 + 28800 = 43500.
	// The final segment is slightly short of 500m, so allow a small delta.
	assert.InDelta(t, 43500, result.TotalExposure, 150)
	assert.False(t, result.Estimated)
	assert.Len(t, result.Cells, 3)
	assert.Equal(t, "route-1", result.RouteID)

	// Score is the total normalized against the fixed ceiling.
	assert.InDelta(t, result.TotalExposure/exposure.MaxExposureCeiling*100, result.Score, 1e-9)
	assert.Greater(t, result.Score, 0.0)
	assert.Less(t, result.Score, 100.0)
}

func TestComputeExposure_MissingGeometry(t *testing.T) {
	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: griddata.NewMemoryStore(),
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	_, err := calc.ComputeExposure(context.Background(), routing.Route{ID: "r"}, time.Now(), false)
	assert.ErrorIs(t, err, exposure.ErrMissingRouteData)
}

func TestComputeExposure_ZeroLengthRoute(t *testing.T) {
	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: griddata.NewMemoryStore(),
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	p := geo.Point{Lat: 52.0, Lon: 4.0}
	route := routing.Route{
		ID:               "same-place",
		GeometryPolyline: geo.EncodePolyline([]geo.Point{p, p}),
	}

	result, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.TotalExposure)
	assert.Equal(t, 0.0, result.Score)
	assert.Empty(t, result.Cells)
}

func TestComputeExposure_HigherAQIScoresHigher(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 50, Traffic: griddata.TrafficLow})
	}
	clean, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)

	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 200, Traffic: griddata.TrafficLow})
	}
	dirty, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)

	assert.Greater(t, dirty.Score, clean.Score)
}

func TestComputeExposure_TrafficMultiplierRaisesExposure(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader:    store,
		Logger:    zerolog.Nop(),
		City:      testCity,
		SpeedsMPS: uniformSpeeds(10),
	})

	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 100, Traffic: griddata.TrafficLow})
	}
	low, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)

	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 100, Traffic: griddata.TrafficHigh})
	}
	high, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)

	// Same AQI and identical speeds: the difference is the 1.6 vs 1.0 multiplier.
	assert.InDelta(t, 1.6, high.TotalExposure/low.TotalExposure, 0.01)
}

func TestComputeExposure_ScoreClampsAt100(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)

	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 500, Traffic: griddata.TrafficHigh})
	}

	// Crawling speed makes the accumulated exposure exceed the ceiling.
	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader:    store,
		Logger:    zerolog.Nop(),
		City:      testCity,
		SpeedsMPS: uniformSpeeds(0.3),
	})

	result, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)
	assert.Greater(t, result.TotalExposure, exposure.MaxExposureCeiling)
	assert.Equal(t, 100.0, result.Score)
}

func TestComputeExposure_NeighborFallback(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)
	require.Len(t, cells, 3)

	// Middle cell has no reading; its neighbors do. The gap is filled by
	// inverse-distance interpolation, which is not flagged estimated.
	store.SetReading(&griddata.Reading{Cell: cells[0], AQI: 100, Traffic: griddata.TrafficLow})
	store.SetReading(&griddata.Reading{Cell: cells[2], AQI: 200, Traffic: griddata.TrafficLow})

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	result, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)
	assert.False(t, result.Estimated)
	assert.Greater(t, result.TotalExposure, 0.0)
}

func TestComputeExposure_CityMeanFallbackIsEstimated(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")

	// The only reading in the city is far outside the fallback radius.
	farCell := griddata.CellFromLocation(testCity, geo.Point{Lat: 52.5, Lon: 4.0})
	store.SetReading(&griddata.Reading{Cell: farCell, AQI: 140, Traffic: griddata.TrafficLow})

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	result, err := calc.ComputeExposure(context.Background(), route, time.Now(), false)
	require.NoError(t, err)
	assert.True(t, result.Estimated, "city-mean fallback must flag the result")
	assert.Greater(t, result.TotalExposure, 0.0)
}

func TestComputeExposure_NoDataAtAllScoresZeroEstimated(t *testing.T) {
	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: griddata.NewMemoryStore(),
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	result, err := calc.ComputeExposure(context.Background(), testRoute("route-1"), time.Now(), false)
	require.NoError(t, err)
	assert.True(t, result.Estimated)
	assert.Equal(t, 0.0, result.TotalExposure)
	assert.Equal(t, 0.0, result.Score)
}

func TestComputeExposure_UsesPredictionsForFutureDeparture(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)

	departure := time.Now().Add(2 * time.Hour)
	slot := departure.UTC().Truncate(time.Hour)

	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 50, Traffic: griddata.TrafficLow})
		store.SetPrediction(&griddata.Prediction{Cell: cell, Slot: slot, AQI: 200, Confidence: 90})
	}

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader:    store,
		Logger:    zerolog.Nop(),
		City:      testCity,
		SpeedsMPS: uniformSpeeds(10),
	})

	now, err := calc.ComputeExposure(context.Background(), route, time.Now(), true)
	require.NoError(t, err)
	future, err := calc.ComputeExposure(context.Background(), route, departure, true)
	require.NoError(t, err)

	// The forecast AQI (200) dominates the observed 50.
	assert.Greater(t, future.TotalExposure, now.TotalExposure)
	assert.False(t, future.Estimated, "confident predictions are not estimates")
}

func TestComputeExposure_LowConfidencePredictionIsEstimated(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)

	departure := time.Now().Add(2 * time.Hour)
	slot := departure.UTC().Truncate(time.Hour)

	for _, cell := range cells {
		store.SetPrediction(&griddata.Prediction{Cell: cell, Slot: slot, AQI: 100, Confidence: 40})
	}

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	result, err := calc.ComputeExposure(context.Background(), route, departure, true)
	require.NoError(t, err)
	assert.True(t, result.Estimated)
}

func TestComputeExposure_AbsentForecastFallbackIsEstimated(t *testing.T) {
	store := griddata.NewMemoryStore()
	route := testRoute("route-1")
	cells := segmentCells(t, route, 500)

	// Observations exist, but no forecast covers the departure slot. The
	// observed values stand in for the forecast, so the result is an
	// estimate for that departure.
	for _, cell := range cells {
		store.SetReading(&griddata.Reading{Cell: cell, AQI: 80, Traffic: griddata.TrafficLow})
	}

	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	result, err := calc.ComputeExposure(context.Background(), route, time.Now().Add(2*time.Hour), true)
	require.NoError(t, err)
	assert.True(t, result.Estimated, "forecast-absent fallback must flag the result")
	assert.Greater(t, result.TotalExposure, 0.0)
}

func TestComputeExposure_CancelledContext(t *testing.T) {
	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: griddata.NewMemoryStore(),
		Logger: zerolog.Nop(),
		City:   testCity,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := calc.ComputeExposure(ctx, testRoute("route-1"), time.Now(), false)
	assert.ErrorIs(t, err, context.Canceled)
}
