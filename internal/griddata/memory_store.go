package griddata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cleanroute/cleanroute/pkg/geo"
)

// MemoryStore is an in-memory Reader implementation. This is intended for
// testing and local development. Production should use PostgresStore.
type MemoryStore struct {
	mu          sync.RWMutex
	readings    map[string]*Reading    // keyed by cell ID
	predictions map[string]*Prediction // keyed by cell ID + slot
}

// NewMemoryStore creates an empty in-memory grid data store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings:    make(map[string]*Reading),
		predictions: make(map[string]*Prediction),
	}
}

func predictionKey(cell Cell, slot time.Time) string {
	return cell.ID() + "@" + slot.UTC().Format(time.RFC3339)
}

// SetReading adds or replaces the observed reading for a cell.
func (s *MemoryStore) SetReading(r *Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpy := *r
	s.readings[r.Cell.ID()] = &cpy
}

// SetPrediction adds or replaces the forecast for a cell and slot.
func (s *MemoryStore) SetPrediction(p *Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpy := *p
	s.predictions[predictionKey(p.Cell, p.Slot)] = &cpy
}

// RemoveReading deletes the observed reading for a cell, if present.
func (s *MemoryStore) RemoveReading(cell Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.readings, cell.ID())
}

// ReadCurrent returns the latest observed reading for a cell.
func (s *MemoryStore) ReadCurrent(_ context.Context, cell Cell) (*Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.readings[cell.ID()]
	if !ok {
		return nil, ErrReadingAbsent
	}
	cpy := *r
	return &cpy, nil
}

// ReadPredicted returns the forecast for a cell at the given time slot.
func (s *MemoryStore) ReadPredicted(_ context.Context, cell Cell, slot time.Time) (*Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[predictionKey(cell, slot)]
	if !ok {
		return nil, ErrPredictionAbsent
	}
	cpy := *p
	return &cpy, nil
}

// NearbyReadings returns up to limit readings within radiusMeters of loc,
// nearest first.
func (s *MemoryStore) NearbyReadings(_ context.Context, city string, loc geo.Point, radiusMeters float64, limit int) ([]*Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type withDist struct {
		reading *Reading
		dist    float64
	}

	var candidates []withDist
	for _, r := range s.readings {
		if r.Cell.City != city {
			continue
		}
		d := geo.Haversine(loc, r.Cell.Center())
		if d <= radiusMeters {
			cpy := *r
			candidates = append(candidates, withDist{reading: &cpy, dist: d})
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	readings := make([]*Reading, 0, len(candidates))
	for _, c := range candidates {
		readings = append(readings, c.reading)
	}
	return readings, nil
}

// CityMean returns the mean observed AQI across all cells of the city.
func (s *MemoryStore) CityMean(_ context.Context, city string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	var count int
	for _, r := range s.readings {
		if r.Cell.City == city {
			sum += r.AQI
			count++
		}
	}
	if count == 0 {
		return 0, ErrNoCityData
	}
	return sum / float64(count), nil
}
