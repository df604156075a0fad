package lists

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"watchdeck/models"
	"watchdeck/services/gateway"
)

var (
	// ErrPersonalImmutable guards the reserved default list against rename
	// and delete.
	ErrPersonalImmutable = errors.New("the personal list cannot be renamed or deleted")
	// ErrListNotFound is returned for operations on unknown list ids.
	ErrListNotFound = errors.New("list not found")
	// ErrReadOnlyList is returned for edit operations on a shared list the
	// user only has view permission on.
	ErrReadOnlyList = errors.New("list is shared read-only")
)

// Gateway is the subset of remote calls the registry needs.
type Gateway interface {
	FetchLists(ctx context.Context) ([]models.List, error)
	CreateList(ctx context.Context, draft models.ListDraft) (*models.List, error)
	UpdateList(ctx context.Context, listID string, draft models.ListDraft) (*models.List, error)
	DeleteList(ctx context.Context, listID string) error
	ShareList(ctx context.Context, listID, username string, permission models.Permission) error
	UnshareList(ctx context.Context, listID, username string) error
}

var _ Gateway = (*gateway.Client)(nil)

// Registry owns the set of available lists and the current display selection.
// The selection is never empty: the personal list is seeded up front and
// deselecting the last remaining list is a no-op.
type Registry struct {
	gw Gateway

	mu       sync.RWMutex
	lists    map[string]models.List
	selected map[string]struct{}
}

// NewRegistry creates a registry pre-seeded with the personal list, selected.
func NewRegistry(gw Gateway) *Registry {
	r := &Registry{
		gw:       gw,
		lists:    make(map[string]models.List),
		selected: make(map[string]struct{}),
	}
	r.lists[models.PersonalListID] = models.List{
		ID:     models.PersonalListID,
		Name:   models.PersonalListName,
		Kind:   models.ListKindPersonal,
		Active: true,
	}
	r.selected[models.PersonalListID] = struct{}{}
	return r
}

// Refresh replaces local state with the server's registry. The personal list
// is re-seeded if the server response omits it, and the selection is pruned
// to lists that still exist (falling back to personal when it would empty).
func (r *Registry) Refresh(ctx context.Context) error {
	remote, err := r.gw.FetchLists(ctx)
	if err != nil {
		return fmt.Errorf("refresh lists: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[string]models.List, len(remote)+1)
	for _, l := range remote {
		fresh[l.ID] = l
	}
	if _, ok := fresh[models.PersonalListID]; !ok {
		log.Printf("[lists] server registry missing personal list, re-seeding")
		fresh[models.PersonalListID] = r.lists[models.PersonalListID]
	}
	r.lists = fresh

	for id := range r.selected {
		if _, ok := r.lists[id]; !ok {
			delete(r.selected, id)
		}
	}
	if len(r.selected) == 0 {
		r.selected[models.PersonalListID] = struct{}{}
	}

	log.Printf("[lists] registry refreshed: %d lists, %d selected", len(r.lists), len(r.selected))
	return nil
}

// Lists returns all known lists, personal first, the rest by creation time.
func (r *Registry) Lists() []models.List {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.List, 0, len(r.lists))
	for _, l := range r.lists {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPersonal() != out[j].IsPersonal() {
			return out[i].IsPersonal()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns one list by id.
func (r *Registry) Get(listID string) (models.List, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[listID]
	return l, ok
}

// Selected returns the selected list ids in display order.
func (r *Registry) Selected() []string {
	r.mu.RLock()
	selected := make(map[string]struct{}, len(r.selected))
	for id := range r.selected {
		selected[id] = struct{}{}
	}
	r.mu.RUnlock()

	var out []string
	for _, l := range r.Lists() {
		if _, ok := selected[l.ID]; ok {
			out = append(out, l.ID)
		}
	}
	return out
}

// Select adds a list to the display selection.
func (r *Registry) Select(listID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lists[listID]; !ok {
		return fmt.Errorf("select %s: %w", listID, ErrListNotFound)
	}
	r.selected[listID] = struct{}{}
	return nil
}

// Deselect removes a list from the selection. Removing the last remaining
// selection is a no-op; the return value reports whether anything changed.
func (r *Registry) Deselect(listID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.selected[listID]; !ok {
		return false
	}
	if len(r.selected) == 1 {
		log.Printf("[lists] ignoring deselect of %s: selection must stay non-empty", listID)
		return false
	}
	delete(r.selected, listID)
	return true
}

// Create creates a custom list remotely and inserts it optimistically.
func (r *Registry) Create(ctx context.Context, draft models.ListDraft) (*models.List, error) {
	created, err := r.gw.CreateList(ctx, draft)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if created.Kind == "" {
		created.Kind = models.ListKindCustom
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	r.lists[created.ID] = *created
	log.Printf("[lists] created list %s (%q)", created.ID, created.Name)
	return created, nil
}

// Update renames or re-styles a list. The personal list and read-only shared
// lists are rejected before any remote call.
func (r *Registry) Update(ctx context.Context, listID string, draft models.ListDraft) (*models.List, error) {
	r.mu.RLock()
	current, ok := r.lists[listID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("update %s: %w", listID, ErrListNotFound)
	}
	if current.IsPersonal() {
		return nil, ErrPersonalImmutable
	}
	if !current.CanEdit() {
		return nil, ErrReadOnlyList
	}

	updated, err := r.gw.UpdateList(ctx, listID, draft)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[listID] = *updated
	return updated, nil
}

// Delete removes a list remotely, then drops it from local state. If the
// deleted list was the only selection, personal takes its place.
func (r *Registry) Delete(ctx context.Context, listID string) error {
	r.mu.RLock()
	current, ok := r.lists[listID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("delete %s: %w", listID, ErrListNotFound)
	}
	if current.IsPersonal() {
		return ErrPersonalImmutable
	}

	if err := r.gw.DeleteList(ctx, listID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.lists, listID)
	delete(r.selected, listID)
	if len(r.selected) == 0 {
		r.selected[models.PersonalListID] = struct{}{}
	}
	log.Printf("[lists] deleted list %s (%q)", listID, current.Name)
	return nil
}

// Share grants another user access to a list.
func (r *Registry) Share(ctx context.Context, listID, username string, permission models.Permission) error {
	r.mu.RLock()
	current, ok := r.lists[listID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("share %s: %w", listID, ErrListNotFound)
	}
	if current.Kind == models.ListKindShared {
		return ErrReadOnlyList
	}
	return r.gw.ShareList(ctx, listID, username, permission)
}

// Unshare revokes a user's access to a list.
func (r *Registry) Unshare(ctx context.Context, listID, username string) error {
	r.mu.RLock()
	_, ok := r.lists[listID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unshare %s: %w", listID, ErrListNotFound)
	}
	return r.gw.UnshareList(ctx, listID, username)
}
