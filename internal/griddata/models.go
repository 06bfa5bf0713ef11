// Package griddata provides read-only access to gridded environmental data.
// The engine treats every reading as a timestamped immutable snapshot value.
package griddata

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cleanroute/cleanroute/pkg/geo"
)

// Reader errors.
var (
	// ErrReadingAbsent indicates no reading exists for the requested cell.
	ErrReadingAbsent = errors.New("no reading for grid cell")
	// ErrPredictionAbsent indicates no forecast exists for the requested slot.
	ErrPredictionAbsent = errors.New("no prediction for grid cell and time slot")
	// ErrNoCityData indicates the city has no readings at all.
	ErrNoCityData = errors.New("no environmental data for city")
)

// TrafficLevel classifies road congestion within a grid cell.
type TrafficLevel string

const (
	TrafficLow    TrafficLevel = "LOW"
	TrafficMedium TrafficLevel = "MEDIUM"
	TrafficHigh   TrafficLevel = "HIGH"
)

// cellSizeDegrees is the tiling resolution, roughly 1 km at mid latitudes.
const cellSizeDegrees = 0.009

// Cell identifies a fixed spatial tile within a city. Cells are computed
// deterministically from a location and used as the join key into
// environmental data.
type Cell struct {
	City string
	Row  int
	Col  int
}

// CellFromLocation maps a location to its grid cell for the given city.
func CellFromLocation(city string, p geo.Point) Cell {
	return Cell{
		City: city,
		Row:  int(math.Floor(p.Lat / cellSizeDegrees)),
		Col:  int(math.Floor(p.Lon / cellSizeDegrees)),
	}
}

// Center returns the geographic center of the cell.
func (c Cell) Center() geo.Point {
	return geo.Point{
		Lat: (float64(c.Row) + 0.5) * cellSizeDegrees,
		Lon: (float64(c.Col) + 0.5) * cellSizeDegrees,
	}
}

// ID returns the canonical string form of the cell identifier.
func (c Cell) ID() string {
	return fmt.Sprintf("%s:%d:%d", c.City, c.Row, c.Col)
}

// Reading is a point-in-time environmental observation for one grid cell.
type Reading struct {
	Cell       Cell
	AQI        float64 // 0-500
	Traffic    TrafficLevel
	MeasuredAt time.Time
}

// Prediction is a forecast AQI value for a grid cell and future time slot.
type Prediction struct {
	Cell       Cell
	Slot       time.Time
	AQI        float64
	Confidence float64 // 0-100
}
