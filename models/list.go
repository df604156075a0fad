package models

import "time"

const (
	// PersonalListID is the reserved identifier of the user's always-present
	// default list. It can never be deleted or renamed.
	PersonalListID = "personal"
	// PersonalListName is used when the registry has to seed the default list.
	PersonalListName = "My Watchlist"
)

// ListKind describes how a list came to exist for this user.
type ListKind string

const (
	ListKindPersonal ListKind = "personal"
	ListKindCustom   ListKind = "custom"
	ListKindShared   ListKind = "shared"
)

// Permission is the access level granted on a shared list.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// List is a named container of watchlist items.
type List struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Kind        ListKind   `json:"kind"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	SharedBy    string     `json:"sharedBy,omitempty"`   // owner name, shared lists only
	Permission  Permission `json:"permission,omitempty"` // shared lists only
}

// IsPersonal reports whether this is the reserved default list.
func (l List) IsPersonal() bool {
	return l.ID == PersonalListID
}

// CanEdit reports whether the current user may mutate the list's contents.
// Own lists are always editable; shared lists require edit permission.
func (l List) CanEdit() bool {
	return l.Kind != ListKindShared || l.Permission == PermissionEdit
}

// ListDraft carries the user-editable fields for list create/update calls.
type ListDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Icon        string `json:"icon,omitempty"`
}
