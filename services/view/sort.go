package view

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"watchdeck/models"
)

// SortKey names the single active sort dimension.
type SortKey string

const (
	SortTitle       SortKey = "title"
	SortDateAdded   SortKey = "date"
	SortType        SortKey = "type"
	SortReleaseDate SortKey = "release_date"
)

// Direction toggles the sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort returns a sorted copy of items by the given key and direction. The
// sort is stable so equal items keep their merged order.
//
// release_date has deliberately inverted direction semantics: Ascending shows
// newest first and Descending oldest first, matching the established behavior
// of the existing interface. Items without a release date sort last in both
// directions, and unparseable (but present) dates compare as ties.
func Sort(items []models.DisplayItem, key SortKey, dir Direction) []models.DisplayItem {
	out := make([]models.DisplayItem, len(items))
	copy(out, items)

	var less func(a, b models.DisplayItem) bool

	switch key {
	case SortDateAdded:
		less = func(a, b models.DisplayItem) bool {
			// Missing timestamps are the zero value and group at the start
			// ascending, the end descending.
			return a.AddedAt().Before(b.AddedAt())
		}
	case SortType:
		less = func(a, b models.DisplayItem) bool {
			// collection < movie < series by the kind tag; the tags are
			// plain ASCII so byte order is fine here.
			return a.Kind < b.Kind
		}
	case SortReleaseDate:
		cmp := releaseDateCompare(dir)
		sort.SliceStable(out, func(i, j int) bool {
			return cmp(out[i], out[j]) < 0
		})
		return out
	default: // SortTitle
		collator := collate.New(language.English, collate.IgnoreCase)
		less = func(a, b models.DisplayItem) bool {
			return collator.CompareString(a.Title(), b.Title()) < 0
		}
	}

	if dir == Descending {
		asc := less
		less = func(a, b models.DisplayItem) bool {
			return asc(b, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

// releaseDateCompare builds the year-only comparator. Dateless items always
// come last; a present-but-unparseable year is a tie, leaving relative order
// untouched. Direction picks newest-first (asc) or oldest-first (desc)
// between two valid years.
func releaseDateCompare(dir Direction) func(a, b models.DisplayItem) int {
	return func(a, b models.DisplayItem) int {
		yearA, hasA, okA := a.ReleaseYear()
		yearB, hasB, okB := b.ReleaseYear()

		switch {
		case !hasA && !hasB:
			return 0
		case !hasA:
			return 1
		case !hasB:
			return -1
		}

		if !okA || !okB {
			return 0
		}

		if yearA == yearB {
			return 0
		}
		if dir == Descending {
			// Oldest first.
			if yearA < yearB {
				return -1
			}
			return 1
		}
		// Newest first.
		if yearA > yearB {
			return -1
		}
		return 1
	}
}
