package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL monitored-route repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create stores a new monitored route.
func (r *PostgresRepository) Create(ctx context.Context, m *MonitoredRoute) error {
	query := `
		INSERT INTO monitored_routes (
			id, user_id, route_id,
			origin_lat, origin_lon, destination_lat, destination_lon,
			geometry_polyline, distance_meters, duration_seconds,
			baseline_score, threshold, state, created_at, last_evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.UserID, m.Route.ID,
		m.Route.Origin.Lat, m.Route.Origin.Lon,
		m.Route.Destination.Lat, m.Route.Destination.Lon,
		m.Route.GeometryPolyline, m.Route.DistanceMeters, m.Route.DurationSeconds,
		m.BaselineScore, m.Threshold, m.State, m.CreatedAt, m.LastEvaluatedAt,
	)
	return err
}

// Get retrieves a monitored route by subscription ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*MonitoredRoute, error) {
	query := selectQuery + ` WHERE id = $1`

	m, err := r.scanRoute(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return m, nil
}

// List returns all active monitored routes.
func (r *PostgresRepository) List(ctx context.Context) ([]*MonitoredRoute, error) {
	rows, err := r.pool.Query(ctx, selectQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []*MonitoredRoute
	for rows.Next() {
		m, err := r.scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, m)
	}
	return routes, rows.Err()
}

// UpdateState records the outcome of a re-evaluation.
func (r *PostgresRepository) UpdateState(ctx context.Context, id string, state AlertState, evaluatedAt time.Time) error {
	query := `
		UPDATE monitored_routes
		SET state = $2, last_evaluated_at = $3
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, state, evaluatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Delete removes a monitored route.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM monitored_routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

const selectQuery = `
	SELECT
		id, user_id, route_id,
		origin_lat, origin_lon, destination_lat, destination_lon,
		geometry_polyline, distance_meters, duration_seconds,
		baseline_score, threshold, state, created_at, last_evaluated_at
	FROM monitored_routes
`

func (r *PostgresRepository) scanRoute(row pgx.Row) (*MonitoredRoute, error) {
	var m MonitoredRoute

	err := row.Scan(
		&m.ID, &m.UserID, &m.Route.ID,
		&m.Route.Origin.Lat, &m.Route.Origin.Lon,
		&m.Route.Destination.Lat, &m.Route.Destination.Lon,
		&m.Route.GeometryPolyline, &m.Route.DistanceMeters, &m.Route.DurationSeconds,
		&m.BaselineScore, &m.Threshold, &m.State, &m.CreatedAt, &m.LastEvaluatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
