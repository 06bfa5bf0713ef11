package griddata

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cleanroute/cleanroute/pkg/geo"
)

// PostgresStore is a PostgreSQL-backed Reader implementation. The grid data
// pipeline (out of scope here) keeps the tables populated; this store only
// reads them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL grid data store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ReadCurrent returns the latest observed reading for a cell.
func (s *PostgresStore) ReadCurrent(ctx context.Context, cell Cell) (*Reading, error) {
	query := `
		SELECT city, grid_row, grid_col, aqi, traffic_level, measured_at
		FROM grid_readings
		WHERE city = $1 AND grid_row = $2 AND grid_col = $3
		ORDER BY measured_at DESC
		LIMIT 1
	`

	var r Reading
	err := s.pool.QueryRow(ctx, query, cell.City, cell.Row, cell.Col).Scan(
		&r.Cell.City,
		&r.Cell.Row,
		&r.Cell.Col,
		&r.AQI,
		&r.Traffic,
		&r.MeasuredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReadingAbsent
		}
		return nil, err
	}

	return &r, nil
}

// ReadPredicted returns the forecast for a cell at the given time slot.
func (s *PostgresStore) ReadPredicted(ctx context.Context, cell Cell, slot time.Time) (*Prediction, error) {
	query := `
		SELECT city, grid_row, grid_col, slot, aqi, confidence
		FROM grid_predictions
		WHERE city = $1 AND grid_row = $2 AND grid_col = $3 AND slot = $4
	`

	var p Prediction
	err := s.pool.QueryRow(ctx, query, cell.City, cell.Row, cell.Col, slot.UTC()).Scan(
		&p.Cell.City,
		&p.Cell.Row,
		&p.Cell.Col,
		&p.Slot,
		&p.AQI,
		&p.Confidence,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPredictionAbsent
		}
		return nil, err
	}

	return &p, nil
}

// NearbyReadings returns up to limit readings within radiusMeters of loc,
// nearest first. The row/col bounding box prunes candidates before the exact
// haversine ordering.
func (s *PostgresStore) NearbyReadings(ctx context.Context, city string, loc geo.Point, radiusMeters float64, limit int) ([]*Reading, error) {
	// A 1 km cell spans cellSizeDegrees; widen the box by one cell to cover
	// readings whose centers sit just inside the radius.
	cells := int(radiusMeters/1000/0.9) + 1
	center := CellFromLocation(city, loc)

	query := `
		SELECT DISTINCT ON (grid_row, grid_col)
			city, grid_row, grid_col, aqi, traffic_level, measured_at
		FROM grid_readings
		WHERE city = $1
			AND grid_row BETWEEN $2 AND $3
			AND grid_col BETWEEN $4 AND $5
		ORDER BY grid_row, grid_col, measured_at DESC
	`

	rows, err := s.pool.Query(ctx, query,
		city,
		center.Row-cells, center.Row+cells,
		center.Col-cells, center.Col+cells,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type withDist struct {
		reading *Reading
		dist    float64
	}

	var candidates []withDist
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.Cell.City, &r.Cell.Row, &r.Cell.Col, &r.AQI, &r.Traffic, &r.MeasuredAt); err != nil {
			return nil, err
		}
		d := geo.Haversine(loc, r.Cell.Center())
		if d <= radiusMeters {
			candidates = append(candidates, withDist{reading: &r, dist: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Nearest first.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].dist < candidates[j-1].dist; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	readings := make([]*Reading, 0, len(candidates))
	for _, c := range candidates {
		readings = append(readings, c.reading)
	}
	return readings, nil
}

// CityMean returns the mean observed AQI across the latest reading of every
// cell of the city.
func (s *PostgresStore) CityMean(ctx context.Context, city string) (float64, error) {
	query := `
		SELECT AVG(aqi)
		FROM (
			SELECT DISTINCT ON (grid_row, grid_col) aqi
			FROM grid_readings
			WHERE city = $1
			ORDER BY grid_row, grid_col, measured_at DESC
		) latest
	`

	var mean *float64
	if err := s.pool.QueryRow(ctx, query, city).Scan(&mean); err != nil {
		return 0, err
	}
	if mean == nil {
		return 0, ErrNoCityData
	}
	return *mean, nil
}
