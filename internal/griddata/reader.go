package griddata

import (
	"context"
	"time"

	"github.com/cleanroute/cleanroute/pkg/geo"
)

// Reader is the narrow read-only contract the engine holds on environmental
// data. Reads are point-in-time snapshots with no transactional guarantee
// across cells. Implementations must be safe for concurrent use.
type Reader interface {
	// ReadCurrent returns the latest observed reading for a cell, or
	// ErrReadingAbsent when the cell has no data.
	ReadCurrent(ctx context.Context, cell Cell) (*Reading, error)

	// ReadPredicted returns the forecast for a cell at the given time slot,
	// or ErrPredictionAbsent when no forecast covers the slot.
	ReadPredicted(ctx context.Context, cell Cell, slot time.Time) (*Prediction, error)

	// NearbyReadings returns up to limit readings from cells within
	// radiusMeters of the location, nearest first. An empty result is not
	// an error.
	NearbyReadings(ctx context.Context, city string, loc geo.Point, radiusMeters float64, limit int) ([]*Reading, error)

	// CityMean returns the mean observed AQI across all cells of the city,
	// or ErrNoCityData when the city has none.
	CityMean(ctx context.Context, city string) (float64, error)
}
