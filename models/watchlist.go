package models

import (
	"strconv"
	"strings"
	"time"
)

// WatchState is the derived watched status of an item. Composite items
// (series, collections) compute it from their children.
type WatchState int

const (
	Unwatched WatchState = iota
	PartiallyWatched
	Watched
)

func (s WatchState) String() string {
	switch s {
	case Watched:
		return "watched"
	case PartiallyWatched:
		return "partial"
	default:
		return "unwatched"
	}
}

// Movie represents a single film entry in a watchlist.
type Movie struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	TmdbID         int64     `json:"tmdbId,omitempty"`
	ReleaseDate    string    `json:"releaseDate,omitempty"` // ISO date string, may be blank or malformed
	Watched        bool      `json:"watched"`
	Runtime        int       `json:"runtime,omitempty"` // minutes, 0 = unknown
	CollectionID   int64     `json:"collectionId,omitempty"`
	CollectionName string    `json:"collectionName,omitempty"`
	PosterURL      string    `json:"posterUrl,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
	// NewlyDiscovered is set by the nightly discovery job; the client never writes it.
	NewlyDiscovered bool `json:"newlyDiscovered,omitempty"`
}

// WatchState maps the boolean flag onto the shared tri-state scale.
func (m Movie) WatchState() WatchState {
	if m.Watched {
		return Watched
	}
	return Unwatched
}

// Episode represents a single episode of a series.
type Episode struct {
	ID       int64  `json:"id"`
	SeriesID int64  `json:"seriesId"`
	Season   int    `json:"season"`
	Episode  int    `json:"episode"`
	Title    string `json:"title"`
	AirDate  string `json:"airDate,omitempty"`
	Watched  bool   `json:"watched"`
	Runtime  int    `json:"runtime,omitempty"` // minutes, 0 = unknown
	Notes    string `json:"notes,omitempty"`
}

// Series represents a show with its episodes in broadcast order. A series has
// no watched flag of its own; its state is derived from the episodes.
type Series struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	TmdbID         int64     `json:"tmdbId,omitempty"`
	FirstAirDate   string    `json:"firstAirDate,omitempty"`
	PosterURL      string    `json:"posterUrl,omitempty"`
	AverageRuntime int       `json:"averageRuntime,omitempty"`
	Episodes       []Episode `json:"episodes"`
	Notes          string    `json:"notes,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
	// NewlyDiscovered is set by the nightly discovery job; the client never writes it.
	NewlyDiscovered bool `json:"newlyDiscovered,omitempty"`
}

// WatchState returns Watched iff every episode is watched, Unwatched iff none
// are (or the series has no episodes), PartiallyWatched otherwise.
func (s Series) WatchState() WatchState {
	if len(s.Episodes) == 0 {
		return Unwatched
	}
	watched := 0
	for _, ep := range s.Episodes {
		if ep.Watched {
			watched++
		}
	}
	switch watched {
	case 0:
		return Unwatched
	case len(s.Episodes):
		return Watched
	default:
		return PartiallyWatched
	}
}

// MinEpisodeRuntime returns the smallest known episode runtime, used as the
// series' representative runtime for filtering. Returns 0 when no episode
// carries a runtime.
func (s Series) MinEpisodeRuntime() int {
	min := 0
	for _, ep := range s.Episodes {
		if ep.Runtime <= 0 {
			continue
		}
		if min == 0 || ep.Runtime < min {
			min = ep.Runtime
		}
	}
	return min
}

// Collection groups related movies. Membership is fixed data; filters only
// collapse visibility, they never mutate the member slice.
type Collection struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	PosterURL string  `json:"posterUrl,omitempty"`
	Movies    []Movie `json:"movies"`
}

// Poster returns the collection poster, falling back to the first movie's.
func (c Collection) Poster() string {
	if c.PosterURL != "" {
		return c.PosterURL
	}
	if len(c.Movies) > 0 {
		return c.Movies[0].PosterURL
	}
	return ""
}

// WatchState returns the tri-state status derived from member movies.
func (c Collection) WatchState() WatchState {
	if len(c.Movies) == 0 {
		return Unwatched
	}
	watched := 0
	for _, m := range c.Movies {
		if m.Watched {
			watched++
		}
	}
	switch watched {
	case 0:
		return Unwatched
	case len(c.Movies):
		return Watched
	default:
		return PartiallyWatched
	}
}

// WatchedCounts returns how many member movies are watched and unwatched.
func (c Collection) WatchedCounts() (watched, unwatched int) {
	for _, m := range c.Movies {
		if m.Watched {
			watched++
		} else {
			unwatched++
		}
	}
	return watched, unwatched
}

// LatestReleaseYear returns the most recent parseable release year among the
// member movies, the collection's representative date for sorting. Returns
// 0 when no member carries a usable year.
func (c Collection) LatestReleaseYear() int {
	latest := 0
	for _, m := range c.Movies {
		if year, ok := ParseReleaseYear(m.ReleaseDate); ok && year > latest {
			latest = year
		}
	}
	return latest
}

// AddedAt returns the earliest member timestamp so collections can take part
// in date-added sorting. Zero when the collection is empty.
func (c Collection) AddedAt() time.Time {
	var earliest time.Time
	for _, m := range c.Movies {
		if m.AddedAt.IsZero() {
			continue
		}
		if earliest.IsZero() || m.AddedAt.Before(earliest) {
			earliest = m.AddedAt
		}
	}
	return earliest
}

// ParseReleaseYear extracts the year from an ISO-ish date string by parsing
// the first four characters. Blank and malformed values report ok=false.
func ParseReleaseYear(date string) (int, bool) {
	trimmed := strings.TrimSpace(date)
	if len(trimmed) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(trimmed[:4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

// WatchlistPayload is the per-list bundle returned by the backend.
type WatchlistPayload struct {
	Movies      []Movie      `json:"movies"`
	Series      []Series     `json:"series"`
	Collections []Collection `json:"collections"`
}

// ItemKind discriminates the heterogeneous entries of a merged watchlist.
type ItemKind string

const (
	KindCollection ItemKind = "collection"
	KindMovie      ItemKind = "movie"
	KindSeries     ItemKind = "series"
)

// DisplayItem is a watchlist entry tagged with an explicit kind so downstream
// filtering, sorting and rendering switch on the tag instead of probing the
// payload shape. Exactly one of the pointers is set, matching Kind.
type DisplayItem struct {
	Kind       ItemKind    `json:"kind"`
	Movie      *Movie      `json:"movie,omitempty"`
	Series     *Series     `json:"series,omitempty"`
	Collection *Collection `json:"collection,omitempty"`
}

// ID returns the identifier of the underlying entity.
func (d DisplayItem) ID() int64 {
	switch d.Kind {
	case KindMovie:
		return d.Movie.ID
	case KindSeries:
		return d.Series.ID
	case KindCollection:
		return d.Collection.ID
	}
	return 0
}

// Key returns a stable identifier combining kind and ID, unique across the
// merged watchlist.
func (d DisplayItem) Key() string {
	return string(d.Kind) + ":" + strconv.FormatInt(d.ID(), 10)
}

// Title returns the display title of the underlying entity.
func (d DisplayItem) Title() string {
	switch d.Kind {
	case KindMovie:
		return d.Movie.Title
	case KindSeries:
		return d.Series.Title
	case KindCollection:
		return d.Collection.Title
	}
	return ""
}

// WatchState returns the (derived) tri-state watched status.
func (d DisplayItem) WatchState() WatchState {
	switch d.Kind {
	case KindMovie:
		return d.Movie.WatchState()
	case KindSeries:
		return d.Series.WatchState()
	case KindCollection:
		return d.Collection.WatchState()
	}
	return Unwatched
}

// AddedAt returns when the item entered the watchlist. Missing timestamps
// stay at the zero value and sort as epoch.
func (d DisplayItem) AddedAt() time.Time {
	switch d.Kind {
	case KindMovie:
		return d.Movie.AddedAt
	case KindSeries:
		return d.Series.AddedAt
	case KindCollection:
		return d.Collection.AddedAt()
	}
	return time.Time{}
}

// ReleaseYear returns the representative release year. For collections this
// is the most recent member year; hasDate reports whether a non-blank date
// string existed at all, parseable whether a year could be read from it.
func (d DisplayItem) ReleaseYear() (year int, hasDate, parseable bool) {
	switch d.Kind {
	case KindMovie:
		if strings.TrimSpace(d.Movie.ReleaseDate) == "" {
			return 0, false, false
		}
		year, ok := ParseReleaseYear(d.Movie.ReleaseDate)
		return year, true, ok
	case KindSeries:
		if strings.TrimSpace(d.Series.FirstAirDate) == "" {
			return 0, false, false
		}
		year, ok := ParseReleaseYear(d.Series.FirstAirDate)
		return year, true, ok
	case KindCollection:
		if year := d.Collection.LatestReleaseYear(); year > 0 {
			return year, true, true
		}
		return 0, false, false
	}
	return 0, false, false
}
