package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sourcegraph/conc"

	"watchdeck/models"
	"watchdeck/services/gateway"
)

var (
	// ErrMixedWatchState means a collection has both watched and unwatched
	// members; the caller must pick an explicit bulk action.
	ErrMixedWatchState = errors.New("collection has mixed watched state, choose an action")
	// ErrPartialBulkFailure means some per-movie calls of a bulk toggle
	// failed while others succeeded. The returned BulkResult carries counts.
	ErrPartialBulkFailure = errors.New("some items failed to update")
	// ErrBulkFailed means every per-movie call of a bulk toggle failed.
	ErrBulkFailed = errors.New("bulk update failed")
)

// BulkAction is the direction of a collection-wide toggle.
type BulkAction int

const (
	MarkWatched BulkAction = iota
	MarkUnwatched
)

// BulkResult reports the settled outcome of a collection bulk toggle.
type BulkResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

// ToggleMovie flips a movie's watched flag after the remote call succeeds.
// The same movie can appear both standalone and inside a collection; both
// copies are updated to the new value.
func (s *Service) ToggleMovie(ctx context.Context, id int64) error {
	current, found := s.movieWatched(id)
	if !found {
		return fmt.Errorf("toggle movie %d: %w", id, ErrItemNotFound)
	}

	if err := s.gw.ToggleWatched(ctx, gateway.ItemTypeMovie, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.applyMovieWatched(id, !current)
	s.mu.Unlock()

	log.Printf("[watchlist] movie %d watched=%t", id, !current)
	return nil
}

// ToggleEpisode flips a single episode optimistically. Unlike a whole-series
// toggle, one episode's result is locally predictable.
func (s *Service) ToggleEpisode(ctx context.Context, id int64) error {
	current, found := s.episodeWatched(id)
	if !found {
		return fmt.Errorf("toggle episode %d: %w", id, ErrItemNotFound)
	}

	if err := s.gw.ToggleWatched(ctx, gateway.ItemTypeEpisode, id); err != nil {
		return err
	}

	s.mu.Lock()
	for _, payload := range s.payloads {
		for i := range payload.Series {
			eps := payload.Series[i].Episodes
			for j := range eps {
				if eps[j].ID == id {
					eps[j].Watched = !current
				}
			}
		}
	}
	s.mu.Unlock()

	log.Printf("[watchlist] episode %d watched=%t", id, !current)
	return nil
}

// ToggleSeries toggles every episode of a series server-side, then re-fetches
// the lists containing it. The server's toggle semantics depend on aggregate
// state the client may not have in sync, so no optimistic update is applied.
func (s *Service) ToggleSeries(ctx context.Context, id int64) error {
	owners := s.seriesOwners(id)
	if len(owners) == 0 {
		return fmt.Errorf("toggle series %d: %w", id, ErrItemNotFound)
	}

	if err := s.gw.ToggleWatched(ctx, gateway.ItemTypeSeries, id); err != nil {
		return err
	}

	for _, listID := range owners {
		payload, err := s.gw.FetchListItems(ctx, listID)
		if err != nil {
			return fmt.Errorf("refresh list %s after series toggle: %w", listID, err)
		}
		s.mu.Lock()
		s.payloads[listID] = payload
		s.mu.Unlock()
		if err := s.store.Put(listID, payload); err != nil {
			log.Printf("[watchlist] failed to cache list %s: %v", listID, err)
		}
	}

	log.Printf("[watchlist] series %d toggled, %d list(s) refreshed", id, len(owners))
	return nil
}

// CollectionAction inspects a collection's member counts and decides the bulk
// toggle direction. Mixed state returns ErrMixedWatchState so the caller can
// prompt the user for an explicit choice.
func (s *Service) CollectionAction(id int64) (BulkAction, error) {
	col, found := s.findCollection(id)
	if !found {
		return MarkWatched, fmt.Errorf("collection %d: %w", id, ErrItemNotFound)
	}

	watched, unwatched := col.WatchedCounts()
	switch {
	case unwatched > 0 && watched == 0:
		return MarkWatched, nil
	case watched > 0 && unwatched == 0:
		return MarkUnwatched, nil
	default:
		return MarkWatched, ErrMixedWatchState
	}
}

// ToggleCollection issues one toggle call per member movie needing the
// change, concurrently, and gathers every settlement before reporting. There
// is no early exit: partial failure is reported distinctly from total failure
// and only movies whose call succeeded are updated locally.
func (s *Service) ToggleCollection(ctx context.Context, id int64, action BulkAction) (*BulkResult, error) {
	col, found := s.findCollection(id)
	if !found {
		return nil, fmt.Errorf("collection %d: %w", id, ErrItemNotFound)
	}

	wantWatched := action == MarkWatched
	var targets []int64
	for _, m := range col.Movies {
		if m.Watched != wantWatched {
			targets = append(targets, m.ID)
		}
	}

	result := &BulkResult{Attempted: len(targets)}
	if len(targets) == 0 {
		return result, nil
	}

	errs := make([]error, len(targets))
	var wg conc.WaitGroup
	for i, movieID := range targets {
		i, movieID := i, movieID
		wg.Go(func() {
			errs[i] = s.gw.ToggleWatched(ctx, gateway.ItemTypeMovie, movieID)
		})
	}
	wg.Wait()

	s.mu.Lock()
	for i, movieID := range targets {
		if errs[i] != nil {
			result.Failed++
			log.Printf("[watchlist] bulk toggle movie %d failed: %v", movieID, errs[i])
			continue
		}
		result.Succeeded++
		s.applyMovieWatched(movieID, wantWatched)
	}
	s.mu.Unlock()

	log.Printf("[watchlist] collection %d bulk toggle: %d/%d succeeded", id, result.Succeeded, result.Attempted)

	switch {
	case result.Failed == 0:
		return result, nil
	case result.Succeeded == 0:
		return result, fmt.Errorf("collection %d: %w", id, ErrBulkFailed)
	default:
		return result, fmt.Errorf("collection %d: %w", id, ErrPartialBulkFailure)
	}
}

// Delete removes an item from the watchlist after remote acknowledgment.
// Deleting a movie removes both its standalone entry and any collection copy.
func (s *Service) Delete(ctx context.Context, kind models.ItemKind, id int64) error {
	var itemType string
	switch kind {
	case models.KindMovie:
		itemType = gateway.ItemTypeMovie
	case models.KindSeries:
		itemType = gateway.ItemTypeSeries
	default:
		return fmt.Errorf("cannot delete item of kind %q", kind)
	}

	if err := s.gw.DeleteItem(ctx, itemType, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, payload := range s.payloads {
		switch kind {
		case models.KindMovie:
			payload.Movies = removeMovie(payload.Movies, id)
			for i := range payload.Collections {
				payload.Collections[i].Movies = removeMovie(payload.Collections[i].Movies, id)
			}
		case models.KindSeries:
			kept := payload.Series[:0]
			for _, sr := range payload.Series {
				if sr.ID != id {
					kept = append(kept, sr)
				}
			}
			payload.Series = kept
		}
	}

	log.Printf("[watchlist] deleted %s %d", kind, id)
	return nil
}

// RemoveFromCollection detaches a movie from one collection. This is a
// different remote operation than Delete: the movie stays on the watchlist
// and any standalone entry is untouched.
func (s *Service) RemoveFromCollection(ctx context.Context, collectionID, movieID int64) error {
	if err := s.gw.RemoveFromCollection(ctx, collectionID, movieID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, payload := range s.payloads {
		for i := range payload.Collections {
			if payload.Collections[i].ID == collectionID {
				payload.Collections[i].Movies = removeMovie(payload.Collections[i].Movies, movieID)
			}
		}
	}

	log.Printf("[watchlist] removed movie %d from collection %d", movieID, collectionID)
	return nil
}

// UpdateNotes replaces an item's notes remotely, then locally. For movies
// both the standalone entry and collection copies are updated.
func (s *Service) UpdateNotes(ctx context.Context, kind models.ItemKind, id int64, notes string) error {
	var itemType string
	switch kind {
	case models.KindMovie:
		itemType = gateway.ItemTypeMovie
	case models.KindSeries:
		itemType = gateway.ItemTypeSeries
	default:
		return fmt.Errorf("cannot set notes on item of kind %q", kind)
	}

	if err := s.gw.UpdateNotes(ctx, itemType, id, notes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, payload := range s.payloads {
		switch kind {
		case models.KindMovie:
			for i := range payload.Movies {
				if payload.Movies[i].ID == id {
					payload.Movies[i].Notes = notes
				}
			}
			for i := range payload.Collections {
				movies := payload.Collections[i].Movies
				for j := range movies {
					if movies[j].ID == id {
						movies[j].Notes = notes
					}
				}
			}
		case models.KindSeries:
			for i := range payload.Series {
				if payload.Series[i].ID == id {
					payload.Series[i].Notes = notes
				}
			}
		}
	}
	return nil
}

// applyMovieWatched sets the watched flag on every copy of a movie, both the
// standalone entry and collection members, across all loaded lists. Callers
// hold the write lock.
func (s *Service) applyMovieWatched(id int64, watched bool) {
	for _, payload := range s.payloads {
		for i := range payload.Movies {
			if payload.Movies[i].ID == id {
				payload.Movies[i].Watched = watched
			}
		}
		for i := range payload.Collections {
			movies := payload.Collections[i].Movies
			for j := range movies {
				if movies[j].ID == id {
					movies[j].Watched = watched
				}
			}
		}
	}
}

func (s *Service) movieWatched(id int64) (watched, found bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payload := range s.payloads {
		for i := range payload.Movies {
			if payload.Movies[i].ID == id {
				return payload.Movies[i].Watched, true
			}
		}
		for i := range payload.Collections {
			for _, m := range payload.Collections[i].Movies {
				if m.ID == id {
					return m.Watched, true
				}
			}
		}
	}
	return false, false
}

func (s *Service) episodeWatched(id int64) (watched, found bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payload := range s.payloads {
		for i := range payload.Series {
			for _, ep := range payload.Series[i].Episodes {
				if ep.ID == id {
					return ep.Watched, true
				}
			}
		}
	}
	return false, false
}

// seriesOwners returns the selected lists whose payload contains the series,
// in display order.
func (s *Service) seriesOwners(id int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owners []string
	for _, listID := range s.order {
		payload := s.payloads[listID]
		if payload == nil {
			continue
		}
		for i := range payload.Series {
			if payload.Series[i].ID == id {
				owners = append(owners, listID)
				break
			}
		}
	}
	return owners
}

// findCollection returns the first copy of the collection in display order,
// matching the aggregator's first-seen dedup rule.
func (s *Service) findCollection(id int64) (models.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, listID := range s.order {
		payload := s.payloads[listID]
		if payload == nil {
			continue
		}
		for i := range payload.Collections {
			if payload.Collections[i].ID == id {
				return payload.Collections[i], true
			}
		}
	}
	return models.Collection{}, false
}

func removeMovie(movies []models.Movie, id int64) []models.Movie {
	kept := movies[:0]
	for _, m := range movies {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	return kept
}
