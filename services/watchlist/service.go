package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"watchdeck/internal/cache"
	"watchdeck/models"
	"watchdeck/services/aggregate"
	"watchdeck/services/gateway"
	"watchdeck/services/lists"
	"watchdeck/services/view"
)

// ErrNoData is returned by Reload when the backend is unreachable and no
// usable snapshot exists in the offline cache.
var ErrNoData = errors.New("backend unreachable and no cached data")

// ErrItemNotFound is returned when a mutation targets an item that is not in
// the current in-memory state.
var ErrItemNotFound = errors.New("item not found in watchlist")

// Gateway is the subset of remote calls the watchlist service needs.
type Gateway interface {
	FetchListItems(ctx context.Context, listID string) (*models.WatchlistPayload, error)
	ToggleWatched(ctx context.Context, itemType string, id int64) error
	DeleteItem(ctx context.Context, itemType string, id int64) error
	RemoveFromCollection(ctx context.Context, collectionID, movieID int64) error
	UpdateNotes(ctx context.Context, itemType string, id int64, notes string) error
	Online(ctx context.Context) bool
}

var _ Gateway = (*gateway.Client)(nil)

// SnapshotStore persists per-list payloads for offline use.
type SnapshotStore interface {
	Put(listID string, payload *models.WatchlistPayload) error
	Get(listID string) (*models.WatchlistPayload, time.Time, error)
}

var _ SnapshotStore = (*cache.Store)(nil)

// ListSelector supplies the ids of the lists currently chosen for display.
type ListSelector interface {
	Selected() []string
}

var _ ListSelector = (*lists.Registry)(nil)

// Service owns the merged in-memory watchlist and the active presentation
// configuration. It is the only component allowed to mutate that state; every
// user action flows through one of its methods.
type Service struct {
	gw       Gateway
	store    SnapshotStore
	selector ListSelector

	mu        sync.RWMutex
	order     []string
	payloads  map[string]*models.WatchlistPayload
	stale     bool
	fetchedAt time.Time

	filters view.Filters
	sortKey view.SortKey
	sortDir view.Direction
	query   string
}

// NewService creates the orchestrator with default presentation settings.
func NewService(gw Gateway, store SnapshotStore, selector ListSelector) *Service {
	return &Service{
		gw:       gw,
		store:    store,
		selector: selector,
		payloads: make(map[string]*models.WatchlistPayload),
		filters:  view.DefaultFilters(),
		sortKey:  view.SortTitle,
		sortDir:  view.Ascending,
	}
}

// Snapshot is the final presentation state handed to the renderer.
type Snapshot struct {
	Items []models.DisplayItem
	// Stale is set when every list was served from the offline cache.
	Stale bool
	// FetchedAt is the age anchor of the data: the oldest snapshot time when
	// stale, the reload time otherwise.
	FetchedAt time.Time
}

// Reload replaces the in-memory payloads for the selected lists. When the
// connectivity probe fails, every list is served from the offline cache and
// the result is marked stale; online, lists are fetched concurrently and
// individual fetch failures fall back to the cache per list.
func (s *Service) Reload(ctx context.Context) error {
	ids := s.selector.Selected()
	log.Printf("[watchlist] reload start lists=%v", ids)

	online := s.gw.Online(ctx)
	if !online {
		log.Printf("[watchlist] offline, serving from cache")
		return s.reloadFromCache(ids)
	}

	payloads := make([]*models.WatchlistPayload, len(ids))
	cachedAt := make([]time.Time, len(ids))
	fresh := make([]bool, len(ids))

	var wg conc.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Go(func() {
			payload, err := s.gw.FetchListItems(ctx, id)
			if err == nil {
				payloads[i] = payload
				fresh[i] = true
				return
			}
			log.Printf("[watchlist] fetch failed for list %s: %v, trying cache", id, err)
			cached, at, cacheErr := s.store.Get(id)
			if cacheErr != nil {
				log.Printf("[watchlist] no cached fallback for list %s: %v", id, cacheErr)
				return
			}
			payloads[i] = cached
			cachedAt[i] = at
		})
	}
	wg.Wait()

	next := make(map[string]*models.WatchlistPayload, len(ids))
	freshCount := 0
	oldest := time.Time{}
	for i, id := range ids {
		if payloads[i] == nil {
			continue
		}
		next[id] = payloads[i]
		if fresh[i] {
			freshCount++
			if err := s.store.Put(id, payloads[i]); err != nil {
				log.Printf("[watchlist] failed to cache list %s: %v", id, err)
			}
		} else if oldest.IsZero() || cachedAt[i].Before(oldest) {
			oldest = cachedAt[i]
		}
	}

	if len(next) == 0 {
		return fmt.Errorf("reload: %w", ErrNoData)
	}

	s.mu.Lock()
	s.order = ids
	s.payloads = next
	s.stale = freshCount == 0
	if s.stale {
		s.fetchedAt = oldest
	} else {
		s.fetchedAt = time.Now()
	}
	s.mu.Unlock()

	log.Printf("[watchlist] reload complete: %d/%d lists fresh", freshCount, len(ids))
	return nil
}

func (s *Service) reloadFromCache(ids []string) error {
	next := make(map[string]*models.WatchlistPayload, len(ids))
	oldest := time.Time{}
	for _, id := range ids {
		payload, at, err := s.store.Get(id)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				log.Printf("[watchlist] cache read failed for list %s: %v", id, err)
			}
			continue
		}
		next[id] = payload
		if oldest.IsZero() || at.Before(oldest) {
			oldest = at
		}
	}

	if len(next) == 0 {
		return fmt.Errorf("offline reload: %w", ErrNoData)
	}

	s.mu.Lock()
	s.order = ids
	s.payloads = next
	s.stale = true
	s.fetchedAt = oldest
	s.mu.Unlock()

	log.Printf("[watchlist] offline reload complete: %d/%d lists cached", len(next), len(ids))
	return nil
}

// Snapshot runs the presentation pipeline over the current state:
// merge, filter, sort, then the search-as-filter stage.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := aggregate.Merge(s.order, s.payloads)
	filtered := s.filters.Apply(merged)
	sorted := view.Sort(filtered, s.sortKey, s.sortDir)
	final := view.Search(sorted, s.query)

	return Snapshot{Items: final, Stale: s.stale, FetchedAt: s.fetchedAt}
}

// SetFilters replaces the active filter configuration.
func (s *Service) SetFilters(f view.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}

// Filters returns the active filter configuration.
func (s *Service) Filters() view.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetSort replaces the active sort key and direction.
func (s *Service) SetSort(key view.SortKey, dir view.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortKey = key
	s.sortDir = dir
}

// SetQuery replaces the search-as-filter query. Callers driving this from
// keystrokes should debounce; no network call is involved either way.
func (s *Service) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
}
