package ranking

import (
	"sort"

	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/routing"
)

// RankRoutes orders candidates by exposure score (time as tie-break, route id
// as final tie-break), computes trade-off metrics against the fastest
// candidate, and applies the time-increase filter. It is a pure function of
// its inputs and safe to call concurrently.
//
// With at least two distinct candidates the result always contains at least
// two recommendations; a single candidate yields exactly one, marked both
// fastest and cleanest.
func RankRoutes(routes []routing.Route, exposures []*exposure.RouteExposure, prefs Preferences) (*Result, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, ErrNoCandidates
	}
	if len(routes) != len(exposures) {
		return nil, ErrMismatchedInput
	}

	recs := make([]Recommendation, 0, len(routes))
	for i, route := range routes {
		recs = append(recs, Recommendation{
			Route:    route,
			Exposure: *exposures[i],
		})
	}

	fastest := fastestIndex(recs)
	baseline := recs[fastest]
	recs[fastest].IsFastest = true

	for i := range recs {
		recs[i].TradeOff = tradeOffAgainst(baseline, recs[i])
	}

	recs = filterByTimeBudget(recs, prefs, fastest)

	sortRecommendations(recs, prefs)

	cleanest := 0
	for i := range recs {
		recs[i].Rank = i + 1
		if recs[i].Exposure.Score < recs[cleanest].Exposure.Score {
			cleanest = i
		}
	}
	recs[cleanest].IsCleanest = true

	result := &Result{Recommendations: recs}

	result.HighExposure = true
	for i := range recs {
		if recs[i].Exposure.Score <= highExposureScore {
			result.HighExposure = false
			break
		}
	}

	return result, nil
}

// fastestIndex returns the index of the minimum-time candidate, breaking ties
// by route id for determinism.
func fastestIndex(recs []Recommendation) int {
	best := 0
	for i := 1; i < len(recs); i++ {
		if recs[i].Route.DurationSeconds < recs[best].Route.DurationSeconds ||
			(recs[i].Route.DurationSeconds == recs[best].Route.DurationSeconds &&
				recs[i].Route.ID < recs[best].Route.ID) {
			best = i
		}
	}
	return best
}

// tradeOffAgainst computes trade-off percentages relative to the fastest
// candidate, guarding both divisions against zero baselines.
func tradeOffAgainst(fastest, candidate Recommendation) TradeOff {
	var t TradeOff

	if fastest.Exposure.Score > 0 {
		t.ExposureReductionPercent = (fastest.Exposure.Score - candidate.Exposure.Score) /
			fastest.Exposure.Score * 100
	}
	if fastest.Route.DurationSeconds > 0 {
		t.TimeIncreasePercent = float64(candidate.Route.DurationSeconds-fastest.Route.DurationSeconds) /
			float64(fastest.Route.DurationSeconds) * 100
	}

	return t
}

// filterByTimeBudget drops non-fastest candidates whose time increase exceeds
// the preference threshold (the boundary itself is inclusive). If filtering
// would leave fewer than two routes while at least two were supplied, the
// fastest plus the lowest-exposure filtered candidate are kept, the latter
// annotated as over budget for transparency.
func filterByTimeBudget(recs []Recommendation, prefs Preferences, fastest int) []Recommendation {
	if len(recs) < 2 {
		return recs
	}

	kept := make([]Recommendation, 0, len(recs))
	var dropped []Recommendation

	for i := range recs {
		if i == fastest || recs[i].TradeOff.TimeIncreasePercent <= prefs.MaxTimeIncreasePercent {
			kept = append(kept, recs[i])
		} else {
			dropped = append(dropped, recs[i])
		}
	}

	if len(kept) < 2 && len(dropped) > 0 {
		best := 0
		for i := 1; i < len(dropped); i++ {
			if dropped[i].Exposure.Score < dropped[best].Exposure.Score {
				best = i
			}
		}
		dropped[best].OverTimeBudget = true
		kept = append(kept, dropped[best])
	}

	return kept
}

// sortRecommendations applies the multi-objective order: exposure ascending,
// time ascending, route id ascending. With exposure priority disabled, time
// leads and exposure breaks ties.
func sortRecommendations(recs []Recommendation, prefs Preferences) {
	sort.SliceStable(recs, func(a, b int) bool {
		ra, rb := recs[a], recs[b]

		primaryA, primaryB := ra.Exposure.Score, rb.Exposure.Score
		secondaryA := float64(ra.Route.DurationSeconds)
		secondaryB := float64(rb.Route.DurationSeconds)
		if !prefs.ExposurePriority {
			primaryA, primaryB = secondaryA, secondaryB
			secondaryA, secondaryB = ra.Exposure.Score, rb.Exposure.Score
		}

		if primaryA != primaryB {
			return primaryA < primaryB
		}
		if secondaryA != secondaryB {
			return secondaryA < secondaryB
		}
		return ra.Route.ID < rb.Route.ID
	})
}
