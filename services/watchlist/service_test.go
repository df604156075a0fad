package watchlist_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"watchdeck/internal/cache"
	"watchdeck/models"
	"watchdeck/services/view"
	"watchdeck/services/watchlist"
)

type stubGateway struct {
	mu sync.Mutex

	online   bool
	payloads map[string]*models.WatchlistPayload
	fetchErr map[string]error

	toggleErr    map[int64]error
	toggled      []int64
	fetchedLists []string
	deleted      []int64
	removedFrom  []int64
	notes        map[int64]string
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		online:    true,
		payloads:  map[string]*models.WatchlistPayload{},
		fetchErr:  map[string]error{},
		toggleErr: map[int64]error{},
		notes:     map[int64]string{},
	}
}

func (g *stubGateway) FetchListItems(_ context.Context, listID string) (*models.WatchlistPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchedLists = append(g.fetchedLists, listID)
	if err := g.fetchErr[listID]; err != nil {
		return nil, err
	}
	if payload, ok := g.payloads[listID]; ok {
		return payload, nil
	}
	return &models.WatchlistPayload{}, nil
}

func (g *stubGateway) ToggleWatched(_ context.Context, _ string, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.toggleErr[id]; err != nil {
		return err
	}
	g.toggled = append(g.toggled, id)
	return nil
}

func (g *stubGateway) DeleteItem(_ context.Context, _ string, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *stubGateway) RemoveFromCollection(_ context.Context, _, movieID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removedFrom = append(g.removedFrom, movieID)
	return nil
}

func (g *stubGateway) UpdateNotes(_ context.Context, _ string, id int64, notes string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notes[id] = notes
	return nil
}

func (g *stubGateway) Online(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]*models.WatchlistPayload
	at   map[string]time.Time
	puts []string
}

func newMemStore() *memStore {
	return &memStore{
		rows: map[string]*models.WatchlistPayload{},
		at:   map[string]time.Time{},
	}
}

func (m *memStore) Put(listID string, payload *models.WatchlistPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[listID] = payload
	m.at[listID] = time.Now()
	m.puts = append(m.puts, listID)
	return nil
}

func (m *memStore) Get(listID string) (*models.WatchlistPayload, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.rows[listID]
	if !ok {
		return nil, time.Time{}, cache.ErrNotFound
	}
	return payload, m.at[listID], nil
}

type stubSelector []string

func (s stubSelector) Selected() []string { return s }

func personalPayload() *models.WatchlistPayload {
	return &models.WatchlistPayload{
		Movies: []models.Movie{
			{ID: 1, Title: "Heat", Watched: false, Runtime: 170},
			{ID: 2, Title: "Alien", Watched: true, Runtime: 117},
		},
		Series: []models.Series{
			{ID: 10, Title: "The Wire", Episodes: []models.Episode{
				{ID: 100, Title: "The Target", Watched: false, Season: 1, Episode: 1},
				{ID: 101, Title: "The Detail", Watched: true, Season: 1, Episode: 2},
			}},
		},
		Collections: []models.Collection{
			{ID: 20, Title: "Mann Collection", Movies: []models.Movie{
				{ID: 1, Title: "Heat", Watched: false, Runtime: 170},
				{ID: 3, Title: "Collateral", Watched: false, Runtime: 120},
			}},
		},
	}
}

func newTestService(gw *stubGateway, store *memStore, ids ...string) *watchlist.Service {
	if len(ids) == 0 {
		ids = []string{models.PersonalListID}
	}
	return watchlist.NewService(gw, store, stubSelector(ids))
}

func TestReloadOnlineCachesEveryList(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	store := newMemStore()
	svc := newTestService(gw, store)

	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}

	snap := svc.Snapshot()
	if snap.Stale {
		t.Fatalf("expected fresh snapshot after online reload")
	}
	if len(store.puts) != 1 || store.puts[0] != models.PersonalListID {
		t.Fatalf("expected the fetched list written to the cache, got %v", store.puts)
	}
}

func TestReloadOfflineServesStaleCache(t *testing.T) {
	gw := newStubGateway()
	gw.online = false
	store := newMemStore()
	if err := store.Put(models.PersonalListID, personalPayload()); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	svc := newTestService(gw, store)

	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}

	snap := svc.Snapshot()
	if !snap.Stale {
		t.Fatalf("expected stale snapshot when offline")
	}
	if len(snap.Items) == 0 {
		t.Fatalf("expected cached items, got none")
	}
	if len(gw.fetchedLists) != 0 {
		t.Fatalf("expected no remote fetches while offline, got %v", gw.fetchedLists)
	}
}

func TestReloadOfflineWithEmptyCacheReturnsErrNoData(t *testing.T) {
	gw := newStubGateway()
	gw.online = false
	svc := newTestService(gw, newMemStore())

	err := svc.Reload(context.Background())
	if !errors.Is(err, watchlist.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestReloadPerListFetchFailureFallsBackToCache(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	gw.fetchErr["custom-1"] = errors.New("server hiccup")
	store := newMemStore()
	if err := store.Put("custom-1", &models.WatchlistPayload{
		Movies: []models.Movie{{ID: 50, Title: "Cached Only"}},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	svc := newTestService(gw, store, models.PersonalListID, "custom-1")

	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}

	snap := svc.Snapshot()
	if snap.Stale {
		t.Fatalf("one fresh list should keep the snapshot fresh")
	}
	found := false
	for _, item := range snap.Items {
		if item.Kind == models.KindMovie && item.ID() == 50 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the cached fallback list in the merged view")
	}
}

func TestToggleMovieUpdatesStandaloneAndCollectionCopies(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.ToggleMovie(context.Background(), 1); err != nil {
		t.Fatalf("toggle movie: %v", err)
	}

	snap := svc.Snapshot()
	for _, item := range snap.Items {
		switch {
		case item.Kind == models.KindMovie && item.ID() == 1:
			if item.Movie.Watched != true {
				t.Fatalf("standalone copy not updated")
			}
		case item.Kind == models.KindCollection && item.ID() == 20:
			for _, m := range item.Collection.Movies {
				if m.ID == 1 && !m.Watched {
					t.Fatalf("collection copy not updated")
				}
			}
		}
	}
}

func TestToggleMovieRemoteFailureLeavesStateUntouched(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	gw.toggleErr[1] = errors.New("boom")
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.ToggleMovie(context.Background(), 1); err == nil {
		t.Fatalf("expected toggle error")
	}

	for _, item := range svc.Snapshot().Items {
		if item.Kind == models.KindMovie && item.ID() == 1 && item.Movie.Watched {
			t.Fatalf("watched flag flipped despite remote failure")
		}
	}
}

func TestToggleMovieUnknownIDReturnsErrItemNotFound(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.ToggleMovie(context.Background(), 999); !errors.Is(err, watchlist.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if len(gw.toggled) != 0 {
		t.Fatalf("expected no remote call for an unknown movie")
	}
}

func TestToggleEpisodeFlipsSingleEpisode(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.ToggleEpisode(context.Background(), 100); err != nil {
		t.Fatalf("toggle episode: %v", err)
	}

	for _, item := range svc.Snapshot().Items {
		if item.Kind != models.KindSeries || item.ID() != 10 {
			continue
		}
		for _, ep := range item.Series.Episodes {
			if ep.ID == 100 && !ep.Watched {
				t.Fatalf("episode 100 not flipped")
			}
			if ep.ID == 101 && !ep.Watched {
				t.Fatalf("episode 101 should be untouched")
			}
		}
	}
}

func TestToggleSeriesRefetchesOwningLists(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	store := newMemStore()
	svc := newTestService(gw, store)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	// Simulate the server marking every episode watched on toggle.
	refreshed := personalPayload()
	for i := range refreshed.Series[0].Episodes {
		refreshed.Series[0].Episodes[i].Watched = true
	}
	gw.mu.Lock()
	gw.payloads[models.PersonalListID] = refreshed
	fetchesBefore := len(gw.fetchedLists)
	gw.mu.Unlock()

	if err := svc.ToggleSeries(context.Background(), 10); err != nil {
		t.Fatalf("toggle series: %v", err)
	}

	if len(gw.fetchedLists) != fetchesBefore+1 {
		t.Fatalf("expected exactly one re-fetch of the owning list")
	}
	for _, item := range svc.Snapshot().Items {
		if item.Kind == models.KindSeries && item.ID() == 10 {
			if item.WatchState() != models.Watched {
				t.Fatalf("expected series fully watched after re-fetch, got %s", item.WatchState())
			}
		}
	}
}

func TestCollectionActionDecidesDirection(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = &models.WatchlistPayload{
		Collections: []models.Collection{
			{ID: 1, Title: "All Unwatched", Movies: []models.Movie{{ID: 1}, {ID: 2}}},
			{ID: 2, Title: "All Watched", Movies: []models.Movie{{ID: 3, Watched: true}}},
			{ID: 3, Title: "Mixed", Movies: []models.Movie{{ID: 4}, {ID: 5, Watched: true}}},
		},
	}
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if action, err := svc.CollectionAction(1); err != nil || action != watchlist.MarkWatched {
		t.Fatalf("all-unwatched: expected MarkWatched, got %v/%v", action, err)
	}
	if action, err := svc.CollectionAction(2); err != nil || action != watchlist.MarkUnwatched {
		t.Fatalf("all-watched: expected MarkUnwatched, got %v/%v", action, err)
	}
	if _, err := svc.CollectionAction(3); !errors.Is(err, watchlist.ErrMixedWatchState) {
		t.Fatalf("mixed: expected ErrMixedWatchState, got %v", err)
	}
}

func TestToggleCollectionSkipsAlreadyCorrectMembers(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = &models.WatchlistPayload{
		Collections: []models.Collection{
			{ID: 1, Title: "Mixed", Movies: []models.Movie{
				{ID: 1, Watched: true},
				{ID: 2, Watched: false},
			}},
		},
	}
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	result, err := svc.ToggleCollection(context.Background(), 1, watchlist.MarkWatched)
	if err != nil {
		t.Fatalf("bulk toggle: %v", err)
	}
	if result.Attempted != 1 || result.Succeeded != 1 {
		t.Fatalf("expected exactly the unwatched member toggled, got %+v", result)
	}
	if len(gw.toggled) != 1 || gw.toggled[0] != 2 {
		t.Fatalf("expected only movie 2 toggled remotely, got %v", gw.toggled)
	}
}

func TestToggleCollectionPartialFailure(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = &models.WatchlistPayload{
		Collections: []models.Collection{
			{ID: 1, Title: "Set", Movies: []models.Movie{
				{ID: 1}, {ID: 2}, {ID: 3},
			}},
		},
	}
	gw.toggleErr[2] = errors.New("boom")
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	result, err := svc.ToggleCollection(context.Background(), 1, watchlist.MarkWatched)
	if !errors.Is(err, watchlist.ErrPartialBulkFailure) {
		t.Fatalf("expected ErrPartialBulkFailure, got %v", err)
	}
	if result.Attempted != 3 || result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	// Only the movies whose call succeeded may be updated locally.
	for _, item := range svc.Snapshot().Items {
		if item.Kind != models.KindCollection {
			continue
		}
		for _, m := range item.Collection.Movies {
			if m.ID == 2 && m.Watched {
				t.Fatalf("failed member must not be updated locally")
			}
			if m.ID != 2 && !m.Watched {
				t.Fatalf("successful member %d not updated", m.ID)
			}
		}
	}
}

func TestToggleCollectionTotalFailure(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = &models.WatchlistPayload{
		Collections: []models.Collection{
			{ID: 1, Title: "Set", Movies: []models.Movie{{ID: 1}, {ID: 2}}},
		},
	}
	gw.toggleErr[1] = errors.New("boom")
	gw.toggleErr[2] = errors.New("boom")
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	result, err := svc.ToggleCollection(context.Background(), 1, watchlist.MarkWatched)
	if !errors.Is(err, watchlist.ErrBulkFailed) {
		t.Fatalf("expected ErrBulkFailed, got %v", err)
	}
	if result.Succeeded != 0 || result.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
}

func TestDeleteMovieRemovesBothCopies(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.Delete(context.Background(), models.KindMovie, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, item := range svc.Snapshot().Items {
		if item.Kind == models.KindMovie && item.ID() == 1 {
			t.Fatalf("standalone copy still present after delete")
		}
		if item.Kind == models.KindCollection {
			for _, m := range item.Collection.Movies {
				if m.ID == 1 {
					t.Fatalf("collection copy still present after delete")
				}
			}
		}
	}
	if len(gw.deleted) != 1 || gw.deleted[0] != 1 {
		t.Fatalf("expected one remote delete, got %v", gw.deleted)
	}
}

func TestRemoveFromCollectionKeepsStandaloneEntry(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.RemoveFromCollection(context.Background(), 20, 1); err != nil {
		t.Fatalf("remove from collection: %v", err)
	}

	standalone := false
	for _, item := range svc.Snapshot().Items {
		if item.Kind == models.KindMovie && item.ID() == 1 {
			standalone = true
		}
		if item.Kind == models.KindCollection && item.ID() == 20 {
			for _, m := range item.Collection.Movies {
				if m.ID == 1 {
					t.Fatalf("movie still inside the collection")
				}
			}
		}
	}
	if !standalone {
		t.Fatalf("standalone entry must survive a collection detach")
	}
}

func TestUpdateNotesTouchesBothMovieCopies(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = personalPayload()
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := svc.UpdateNotes(context.Background(), models.KindMovie, 1, "rewatch soon"); err != nil {
		t.Fatalf("update notes: %v", err)
	}

	for _, item := range svc.Snapshot().Items {
		if item.Kind == models.KindMovie && item.ID() == 1 && item.Movie.Notes != "rewatch soon" {
			t.Fatalf("standalone notes not updated")
		}
		if item.Kind == models.KindCollection && item.ID() == 20 {
			for _, m := range item.Collection.Movies {
				if m.ID == 1 && m.Notes != "rewatch soon" {
					t.Fatalf("collection copy notes not updated")
				}
			}
		}
	}
	if gw.notes[1] != "rewatch soon" {
		t.Fatalf("remote notes call missing")
	}
}

func TestSnapshotRunsFullPipeline(t *testing.T) {
	gw := newStubGateway()
	gw.payloads[models.PersonalListID] = &models.WatchlistPayload{
		Movies: []models.Movie{
			{ID: 1, Title: "Zodiac Cat", Watched: false},
			{ID: 2, Title: "Alien Cat", Watched: true},
			{ID: 3, Title: "Dog Story", Watched: false},
		},
	}
	svc := newTestService(gw, newMemStore())
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	filters := view.DefaultFilters()
	filters.Unwatched = true
	svc.SetFilters(filters)
	svc.SetSort(view.SortTitle, view.Ascending)
	svc.SetQuery("cat")

	snap := svc.Snapshot()
	// Hiding watched items drops Alien Cat, the query drops Dog Story, and
	// the title sort orders what remains.
	if len(snap.Items) != 1 || snap.Items[0].Title() != "Zodiac Cat" {
		t.Fatalf("pipeline mismatch: got %d items", len(snap.Items))
	}
}
