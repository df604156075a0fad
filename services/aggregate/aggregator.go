package aggregate

import (
	"watchdeck/models"
)

// Merge flattens per-list payloads into one DisplayItem sequence. Collections
// come first, then series, then standalone movies, preserving the grouped
// presentation order. Within each kind, items are deduplicated by identifier
// with the first occurrence in concatenation order winning, so the caller's
// list order (personal first) decides which copy survives.
//
// Lists still in flight may be missing from payloads; they are treated as
// empty. The input is never mutated.
func Merge(order []string, payloads map[string]*models.WatchlistPayload) []models.DisplayItem {
	var items []models.DisplayItem

	seenCollections := make(map[int64]struct{})
	seenSeries := make(map[int64]struct{})
	seenMovies := make(map[int64]struct{})

	for _, listID := range order {
		payload := payloads[listID]
		if payload == nil {
			continue
		}
		for i := range payload.Collections {
			c := payload.Collections[i]
			if _, dup := seenCollections[c.ID]; dup {
				continue
			}
			seenCollections[c.ID] = struct{}{}
			items = append(items, models.DisplayItem{Kind: models.KindCollection, Collection: &c})
		}
	}

	for _, listID := range order {
		payload := payloads[listID]
		if payload == nil {
			continue
		}
		for i := range payload.Series {
			s := payload.Series[i]
			if _, dup := seenSeries[s.ID]; dup {
				continue
			}
			seenSeries[s.ID] = struct{}{}
			items = append(items, models.DisplayItem{Kind: models.KindSeries, Series: &s})
		}
	}

	for _, listID := range order {
		payload := payloads[listID]
		if payload == nil {
			continue
		}
		for i := range payload.Movies {
			m := payload.Movies[i]
			if _, dup := seenMovies[m.ID]; dup {
				continue
			}
			seenMovies[m.ID] = struct{}{}
			items = append(items, models.DisplayItem{Kind: models.KindMovie, Movie: &m})
		}
	}

	return items
}
