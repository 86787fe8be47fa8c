package audit

import (
	"time"
)

// Action identifies what a mutation did. The set is closed; anything else is
// rejected before it reaches storage.
type Action string

const (
	ActionCreateRack Action = "CREATE_RACK"
	ActionUpdateRack Action = "UPDATE_RACK"
	ActionDeleteRack Action = "DELETE_RACK"
	ActionCreateItem Action = "CREATE_ITEM"
	ActionUpdateItem Action = "UPDATE_ITEM"
	ActionDeleteItem Action = "DELETE_ITEM"
)

// Actions lists every audit action.
var Actions = []Action{
	ActionCreateRack,
	ActionUpdateRack,
	ActionDeleteRack,
	ActionCreateItem,
	ActionUpdateItem,
	ActionDeleteItem,
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreateRack, ActionUpdateRack, ActionDeleteRack,
		ActionCreateItem, ActionUpdateItem, ActionDeleteItem:
		return true
	default:
		return false
	}
}

// Label is the human-readable form shown in the admin log view.
func (a Action) Label() string {
	switch a {
	case ActionCreateRack:
		return "Created rack"
	case ActionUpdateRack:
		return "Updated rack"
	case ActionDeleteRack:
		return "Deleted rack"
	case ActionCreateItem:
		return "Created item"
	case ActionUpdateItem:
		return "Updated item"
	case ActionDeleteItem:
		return "Deleted item"
	default:
		return string(a)
	}
}

// Details is a free-form JSON object of primitive values. It is for display
// only and is never read back by business logic.
type Details map[string]interface{}

// Entry is one immutable audit record.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	UserID    *string   `json:"userId,omitempty"`
	RackID    *string   `json:"rackId,omitempty"`
	ItemID    *string   `json:"itemId,omitempty"`
	Details   Details   `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Target names what a mutation touched.
type Target struct {
	RackID  *string
	ItemID  *string
	Details Details
}

// UserSummary is the actor as shown next to an entry.
type UserSummary struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// RefSummary is a referenced rack or item as shown next to an entry. It is nil
// once the referenced row is gone.
type RefSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EntryView is an entry joined with its actor, rack and item.
type EntryView struct {
	Entry
	Label string       `json:"label"`
	User  *UserSummary `json:"user,omitempty"`
	Rack  *RefSummary  `json:"rack,omitempty"`
	Item  *RefSummary  `json:"item,omitempty"`
}

// DefaultLimit is the page size when a filter does not set one.
const DefaultLimit = 100

// MaxLimit caps any single page or export.
const MaxLimit = 10000

// SearchFilter narrows a listing. Results are always newest first.
type SearchFilter struct {
	Actions   []Action
	UserID    string
	RackID    string
	ItemID    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// normalize applies the default and maximum page size.
func (f SearchFilter) normalize() SearchFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Stats summarizes the log over an optional time range.
type Stats struct {
	TotalEntries  int64            `json:"totalEntries"`
	EntriesByType map[Action]int64 `json:"entriesByAction"`
	TopActors     []ActorCount     `json:"topActors"`
}

// ActorCount is the number of entries attributed to one user.
type ActorCount struct {
	UserID string  `json:"userId"`
	Name   *string `json:"name,omitempty"`
	Count  int64   `json:"count"`
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)
