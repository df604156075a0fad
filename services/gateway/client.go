package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"watchdeck/models"
)

// ErrAuthExpired is returned when the backend answers 401. The session token
// is invalidated and the registered auth-lost hook fires exactly once per
// expiry.
var ErrAuthExpired = errors.New("authentication expired")

// APIError is a non-401 HTTP error response from the backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// ItemType names the backend's item routes for toggle/delete/notes calls.
const (
	ItemTypeMovie   = "movie"
	ItemTypeSeries  = "series"
	ItemTypeEpisode = "episode"
)

// SearchResult is one entry from the unified catalog search.
type SearchResult struct {
	Type        models.ItemKind `json:"type"` // movie | series
	ExternalID  int64           `json:"externalId"`
	Title       string          `json:"title"`
	ReleaseDate string          `json:"releaseDate,omitempty"`
	PosterURL   string          `json:"posterUrl,omitempty"`
	Overview    string          `json:"overview,omitempty"`
}

// Client issues authenticated REST calls against the watchlist backend.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu         sync.Mutex
	token      string
	onAuthLost func()
}

// NewClient creates a gateway client for the given backend.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
	}
}

// SetToken replaces the bearer token, e.g. after a fresh login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// OnAuthLost registers the hook invoked when the backend rejects the token.
// The surrounding application uses it to route the user back to login.
func (c *Client) OnAuthLost(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthLost = fn
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) authLost() {
	c.mu.Lock()
	hadToken := c.token != ""
	c.token = ""
	fn := c.onAuthLost
	c.mu.Unlock()

	if hadToken && fn != nil {
		fn()
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		log.Printf("[gateway] 401 on %s %s, invalidating session", method, path)
		c.authLost()
		return ErrAuthExpired
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get issues a GET with transient-error retries. Reads are safe to repeat;
// mutations go through do() with a single attempt because double submission
// is the caller's responsibility.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, nil, out)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
}

// isTransient reports whether an error is worth retrying. HTTP-level errors
// carry a backend decision and are final; only network failures repeat.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(err, ErrAuthExpired) && !errors.Is(err, context.Canceled)
}

// Online probes backend reachability with a short deadline. Used before full
// reloads to decide between remote fetch and the offline cache.
func (c *Client) Online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[gateway] connectivity probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	return resp.StatusCode < 500
}

// FetchWatchlist retrieves the personal list's payload. The client re-applies
// its own filter/sort regardless of any server-side parameters, so none are
// sent here.
func (c *Client) FetchWatchlist(ctx context.Context) (*models.WatchlistPayload, error) {
	var payload models.WatchlistPayload
	if err := c.get(ctx, "/watchlist", &payload); err != nil {
		return nil, fmt.Errorf("fetch watchlist: %w", err)
	}
	return &payload, nil
}

// FetchLists retrieves the registry of personal, custom and shared lists.
func (c *Client) FetchLists(ctx context.Context) ([]models.List, error) {
	var lists []models.List
	if err := c.get(ctx, "/lists", &lists); err != nil {
		return nil, fmt.Errorf("fetch lists: %w", err)
	}
	return lists, nil
}

// FetchListItems retrieves the payload for one list. The personal list lives
// on its own endpoint.
func (c *Client) FetchListItems(ctx context.Context, listID string) (*models.WatchlistPayload, error) {
	if listID == models.PersonalListID {
		return c.FetchWatchlist(ctx)
	}
	var payload models.WatchlistPayload
	if err := c.get(ctx, "/lists/"+url.PathEscape(listID)+"/items", &payload); err != nil {
		return nil, fmt.Errorf("fetch list %s items: %w", listID, err)
	}
	return &payload, nil
}

// CreateList creates a custom list and returns the server's record.
func (c *Client) CreateList(ctx context.Context, draft models.ListDraft) (*models.List, error) {
	var created models.List
	if err := c.do(ctx, http.MethodPost, "/lists", draft, &created); err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	return &created, nil
}

// UpdateList updates a list's metadata and returns the server's record.
func (c *Client) UpdateList(ctx context.Context, listID string, draft models.ListDraft) (*models.List, error) {
	var updated models.List
	if err := c.do(ctx, http.MethodPut, "/lists/"+url.PathEscape(listID), draft, &updated); err != nil {
		return nil, fmt.Errorf("update list %s: %w", listID, err)
	}
	return &updated, nil
}

// DeleteList removes a list.
func (c *Client) DeleteList(ctx context.Context, listID string) error {
	if err := c.do(ctx, http.MethodDelete, "/lists/"+url.PathEscape(listID), nil, nil); err != nil {
		return fmt.Errorf("delete list %s: %w", listID, err)
	}
	return nil
}

// ShareList grants another user access to a list.
func (c *Client) ShareList(ctx context.Context, listID, username string, permission models.Permission) error {
	body := map[string]string{
		"username":   username,
		"permission": string(permission),
	}
	if err := c.do(ctx, http.MethodPost, "/lists/"+url.PathEscape(listID)+"/share", body, nil); err != nil {
		return fmt.Errorf("share list %s: %w", listID, err)
	}
	return nil
}

// UnshareList revokes a user's access to a list.
func (c *Client) UnshareList(ctx context.Context, listID, username string) error {
	path := "/lists/" + url.PathEscape(listID) + "/unshare?username=" + url.QueryEscape(username)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("unshare list %s: %w", listID, err)
	}
	return nil
}

// ToggleWatched flips the watched flag of one item. For series the backend
// toggles every episode atomically, so callers must re-fetch instead of
// predicting the result.
func (c *Client) ToggleWatched(ctx context.Context, itemType string, id int64) error {
	if err := validItemType(itemType); err != nil {
		return err
	}
	path := fmt.Sprintf("/watchlist/%s/%d/toggle", itemType, id)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("toggle %s %d: %w", itemType, id, err)
	}
	return nil
}

// DeleteItem removes an item from the watchlist entirely. This is distinct
// from RemoveFromCollection, which only detaches a movie from its group.
func (c *Client) DeleteItem(ctx context.Context, itemType string, id int64) error {
	if err := validItemType(itemType); err != nil {
		return err
	}
	path := fmt.Sprintf("/watchlist/%s/%d", itemType, id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete %s %d: %w", itemType, id, err)
	}
	return nil
}

// RemoveFromCollection detaches a movie from a collection without deleting it
// from the watchlist.
func (c *Client) RemoveFromCollection(ctx context.Context, collectionID, movieID int64) error {
	path := fmt.Sprintf("/collections/%d/items/%d", collectionID, movieID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove movie %d from collection %d: %w", movieID, collectionID, err)
	}
	return nil
}

// UpdateNotes replaces the free-text notes of an item.
func (c *Client) UpdateNotes(ctx context.Context, itemType string, id int64, notes string) error {
	if err := validItemType(itemType); err != nil {
		return err
	}
	path := fmt.Sprintf("/watchlist/%s/%d/notes", itemType, id)
	body := map[string]string{"notes": notes}
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("update notes for %s %d: %w", itemType, id, err)
	}
	return nil
}

// SearchAll queries the external catalog through the backend.
func (c *Client) SearchAll(ctx context.Context, query string) ([]SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}
	var results []SearchResult
	if err := c.get(ctx, "/search/all?query="+url.QueryEscape(trimmed), &results); err != nil {
		return nil, fmt.Errorf("search %q: %w", trimmed, err)
	}
	return results, nil
}

// Import adds a catalog title to the watchlist. An empty targetListIDs slice
// imports into the personal list only.
func (c *Client) Import(ctx context.Context, itemType string, externalID int64, targetListIDs []string) error {
	if itemType != ItemTypeMovie && itemType != ItemTypeSeries {
		return fmt.Errorf("unsupported import type %q", itemType)
	}
	var body any
	if len(targetListIDs) > 0 {
		body = map[string][]string{"target_list_ids": targetListIDs}
	}
	path := fmt.Sprintf("/import/%s/%d", itemType, externalID)
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("import %s %d: %w", itemType, externalID, err)
	}
	return nil
}

func validItemType(itemType string) error {
	switch itemType {
	case ItemTypeMovie, ItemTypeSeries, ItemTypeEpisode:
		return nil
	default:
		return fmt.Errorf("unsupported item type %q", itemType)
	}
}
