package inventory

import (
	"strings"
	"time"

	"github.com/platinummonkey/rackbook/pkg/errs"
)

// Location is a named place racks live in.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rack is a QR-coded storage unit.
type Rack struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	QRCode     string    `json:"qrCode"`
	LocationID *string   `json:"locationId,omitempty"`
	Location   *Location `json:"location,omitempty"`
	ItemCount  int       `json:"itemCount"`
	Items      []*Item   `json:"items,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RackSummary is the parent rack shown next to an item in listings.
type RackSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location *Location `json:"location,omitempty"`
}

// Item is something stored on a rack. Removed items are soft-deleted.
type Item struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	Quantity    int          `json:"quantity"`
	Removed     bool         `json:"removed"`
	RackID      string       `json:"rackId"`
	Rack        *RackSummary `json:"rack,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Dashboard is the landing page summary.
type Dashboard struct {
	RackCount   int     `json:"rackCount"`
	ItemCount   int     `json:"itemCount"`
	RecentRacks []*Rack `json:"recentRacks"`
}

// RecentRackLimit is how many racks the dashboard shows.
const RecentRackLimit = 6

// DefaultQuantity applies when an item is created without a quantity.
const DefaultQuantity = 1

// RackInput creates a rack.
type RackInput struct {
	Name       string  `json:"name"`
	LocationID *string `json:"locationId,omitempty"`
}

// RackUpdate changes a rack. Nil fields are left unchanged; ClearLocation
// detaches the rack from its location.
type RackUpdate struct {
	Name          *string `json:"name,omitempty"`
	LocationID    *string `json:"locationId,omitempty"`
	ClearLocation bool    `json:"clearLocation,omitempty"`
}

// ItemInput creates an item on RackID.
type ItemInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
	RackID      string  `json:"rackId"`
}

// ItemUpdate changes an item. Nil fields are left unchanged.
type ItemUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
}

// ItemFilter narrows an item listing.
type ItemFilter struct {
	Query       string
	ShowRemoved bool
}

func (in *RackInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errs.Invalid("rack name is required")
	}
	in.LocationID = blankToNil(in.LocationID)
	return nil
}

func (u *RackUpdate) validate() error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return errs.Invalid("rack name cannot be empty")
		}
		u.Name = &name
	}
	u.LocationID = blankToNil(u.LocationID)
	if u.ClearLocation && u.LocationID != nil {
		return errs.Invalid("cannot set and clear the location at once")
	}
	if u.Name == nil && u.LocationID == nil && !u.ClearLocation {
		return errs.Invalid("nothing to update")
	}
	return nil
}

func (in *ItemInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errs.Invalid("item name is required")
	}
	if in.RackID == "" {
		return errs.Invalid("rackId is required")
	}
	if in.Quantity == nil {
		q := DefaultQuantity
		in.Quantity = &q
	}
	if *in.Quantity < 0 {
		return errs.Invalid("quantity must not be negative")
	}
	in.Description = blankToNil(in.Description)
	return nil
}

func (u *ItemUpdate) validate() error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return errs.Invalid("item name cannot be empty")
		}
		u.Name = &name
	}
	if u.Quantity != nil && *u.Quantity < 0 {
		return errs.Invalid("quantity must not be negative")
	}
	if u.Name == nil && u.Description == nil && u.Quantity == nil {
		return errs.Invalid("nothing to update")
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
