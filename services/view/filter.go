package view

import (
	"watchdeck/models"
)

// Filters is the set of independent display toggles. Every toggle defaults to
// on; see DefaultFilters. Categories compose by AND, the runtime buckets
// within their category by OR.
type Filters struct {
	// Movies off hides standalone movies and collections.
	Movies bool
	// Series off hides series.
	Series bool
	// Unwatched on hides items that are fully watched. Partially watched
	// composites stay visible.
	Unwatched bool

	// Runtime buckets in minutes. With no bucket on, runtime filtering is
	// inactive. Items without runtime data are never hidden by these
	// (fail open).
	RuntimeUnder30 bool
	Runtime30to60  bool
	Runtime60to90  bool
	RuntimeOver90  bool
}

// DefaultFilters returns the configuration with every toggle on.
func DefaultFilters() Filters {
	return Filters{
		Movies:         true,
		Series:         true,
		Unwatched:      true,
		RuntimeUnder30: true,
		Runtime30to60:  true,
		Runtime60to90:  true,
		RuntimeOver90:  true,
	}
}

// Apply returns the items that survive the active filter set, preserving
// input order. Applying the same configuration twice is idempotent.
func (f Filters) Apply(items []models.DisplayItem) []models.DisplayItem {
	out := make([]models.DisplayItem, 0, len(items))
	for _, item := range items {
		if f.keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (f Filters) keep(item models.DisplayItem) bool {
	switch item.Kind {
	case models.KindMovie, models.KindCollection:
		if !f.Movies {
			return false
		}
	case models.KindSeries:
		if !f.Series {
			return false
		}
	}

	// Hide only fully watched items; mixed composites remain visible.
	if f.Unwatched && item.WatchState() == models.Watched {
		return false
	}

	return f.runtimeMatches(item)
}

// runtimeMatches checks the OR-composed runtime buckets. An item passes when
// no bucket is active, when its runtime is unknown, or when any representative
// runtime lands in an active bucket. Collections match on any member movie,
// series on their minimum episode runtime.
func (f Filters) runtimeMatches(item models.DisplayItem) bool {
	if !f.RuntimeUnder30 && !f.Runtime30to60 && !f.Runtime60to90 && !f.RuntimeOver90 {
		return true
	}

	runtimes := representativeRuntimes(item)
	if len(runtimes) == 0 {
		return true
	}

	for _, r := range runtimes {
		if f.bucketOn(r) {
			return true
		}
	}
	return false
}

func (f Filters) bucketOn(runtime int) bool {
	switch {
	case runtime < 30:
		return f.RuntimeUnder30
	case runtime < 60:
		return f.Runtime30to60
	case runtime < 90:
		return f.Runtime60to90
	default:
		return f.RuntimeOver90
	}
}

func representativeRuntimes(item models.DisplayItem) []int {
	switch item.Kind {
	case models.KindMovie:
		if item.Movie.Runtime > 0 {
			return []int{item.Movie.Runtime}
		}
	case models.KindSeries:
		if min := item.Series.MinEpisodeRuntime(); min > 0 {
			return []int{min}
		}
	case models.KindCollection:
		var runtimes []int
		for _, m := range item.Collection.Movies {
			if m.Runtime > 0 {
				runtimes = append(runtimes, m.Runtime)
			}
		}
		return runtimes
	}
	return nil
}
