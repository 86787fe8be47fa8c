package inventory

import (
	"context"
	"database/sql"
	"strings"

	"github.com/platinummonkey/rackbook/pkg/audit"
	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/mutation"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
	"github.com/platinummonkey/rackbook/pkg/revalidate"
)

// Service exposes rack, item and location operations. Reads are public;
// every write goes through the mutation pipeline.
type Service struct {
	store    *Store
	pipeline *mutation.Pipeline
}

// NewService creates the inventory service
func NewService(store *Store, pipeline *mutation.Pipeline) *Service {
	return &Service{store: store, pipeline: pipeline}
}

// ListRacks returns every rack, most recently updated first.
func (s *Service) ListRacks(ctx context.Context) ([]*Rack, error) {
	return s.store.ListRacks(ctx, s.pipeline.DB(), 0)
}

// GetRack returns a rack with its items.
func (s *Service) GetRack(ctx context.Context, id string) (*Rack, error) {
	return s.store.GetRack(ctx, s.pipeline.DB(), id)
}

// GetRackByQRCode returns the rack a scanned code points at.
func (s *Service) GetRackByQRCode(ctx context.Context, code string) (*Rack, error) {
	return s.store.GetRackByQRCode(ctx, s.pipeline.DB(), code)
}

// ListItems searches items across racks.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]*Item, error) {
	return s.store.ListItems(ctx, s.pipeline.DB(), filter)
}

// ListLocations returns locations by name.
func (s *Service) ListLocations(ctx context.Context) ([]*Location, error) {
	return s.store.ListLocations(ctx, s.pipeline.DB())
}

// Dashboard returns the landing page summary.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	return s.store.Dashboard(ctx, s.pipeline.DB())
}

// CreateRack creates a rack with a generated QR code.
func (s *Service) CreateRack(ctx context.Context, in RackInput) (*Rack, error) {
	var rack *Rack
	err := s.pipeline.Run(ctx, rbac.CreateRack, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		if err := in.validate(); err != nil {
			return mutation.Result{}, err
		}

		var err error
		rack, err = s.store.InsertRack(ctx, tx, in)
		if err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionCreateRack,
			Target: audit.Target{RackID: &rack.ID, Details: audit.Details{"name": rack.Name}},
			Paths:  []string{revalidate.PathHome, revalidate.PathRacks},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return rack, nil
}

// UpdateRack renames a rack or changes its location.
func (s *Service) UpdateRack(ctx context.Context, id string, update RackUpdate) (*Rack, error) {
	var rack *Rack
	err := s.pipeline.Run(ctx, rbac.UpdateRack, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		if err := update.validate(); err != nil {
			return mutation.Result{}, err
		}

		var err error
		rack, err = s.store.getRackRow(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}

		details := audit.Details{}
		if update.Name != nil {
			rack.Name = *update.Name
			details["name"] = rack.Name
		}
		if update.LocationID != nil {
			rack.LocationID = update.LocationID
			details["locationId"] = *update.LocationID
		}
		if update.ClearLocation {
			rack.LocationID = nil
			details["locationId"] = nil
		}

		if err := s.store.UpdateRack(ctx, tx, rack); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionUpdateRack,
			Target: audit.Target{RackID: &rack.ID, Details: details},
			Paths:  []string{revalidate.PathHome, revalidate.PathRacks, revalidate.RackPath(rack.ID)},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return rack, nil
}

// DeleteRack removes a rack and its items. The audit entry keeps the rack's
// id and name in its details only.
func (s *Service) DeleteRack(ctx context.Context, id string) error {
	return s.pipeline.Run(ctx, rbac.DeleteRack, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		rack, err := s.store.getRackRow(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}
		if err := s.store.DeleteRack(ctx, tx, id); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionDeleteRack,
			Target: audit.Target{Details: audit.Details{"rackId": rack.ID, "rackName": rack.Name}},
			Paths: []string{
				revalidate.PathHome, revalidate.PathRacks, revalidate.RackPath(rack.ID), revalidate.PathItems,
			},
		}, nil
	})
}

// CreateItem adds an item to a rack.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	var item *Item
	err := s.pipeline.Run(ctx, rbac.CreateItem, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		if err := in.validate(); err != nil {
			return mutation.Result{}, err
		}
		if ok, err := s.store.rackExists(ctx, tx, in.RackID); err != nil {
			return mutation.Result{}, err
		} else if !ok {
			return mutation.Result{}, errs.NotFound("rack", in.RackID)
		}

		var err error
		item, err = s.store.InsertItem(ctx, tx, in)
		if err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionCreateItem,
			Target: audit.Target{
				RackID:  &item.RackID,
				ItemID:  &item.ID,
				Details: audit.Details{"name": item.Name, "quantity": item.Quantity},
			},
			Paths: itemPaths(item.RackID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem changes an item's name, description or quantity.
func (s *Service) UpdateItem(ctx context.Context, id string, update ItemUpdate) (*Item, error) {
	var item *Item
	err := s.pipeline.Run(ctx, rbac.UpdateItem, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		if err := update.validate(); err != nil {
			return mutation.Result{}, err
		}

		var err error
		item, err = s.store.GetItem(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}

		details := audit.Details{}
		if update.Name != nil {
			item.Name = *update.Name
			details["name"] = item.Name
		}
		if update.Description != nil {
			item.Description = blankToNil(update.Description)
			details["description"] = strings.TrimSpace(*update.Description)
		}
		if update.Quantity != nil {
			item.Quantity = *update.Quantity
			details["quantity"] = item.Quantity
		}

		if err := s.store.UpdateItem(ctx, tx, item); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionUpdateItem,
			Target: audit.Target{RackID: &item.RackID, ItemID: &item.ID, Details: details},
			Paths:  itemPaths(item.RackID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ToggleItemRemoved flips an item's soft-delete flag.
func (s *Service) ToggleItemRemoved(ctx context.Context, id string) (*Item, error) {
	var item *Item
	err := s.pipeline.Run(ctx, rbac.ToggleItemRemoved, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		var err error
		item, err = s.store.GetItem(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}

		item.Removed = !item.Removed
		if err := s.store.UpdateItem(ctx, tx, item); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionUpdateItem,
			Target: audit.Target{RackID: &item.RackID, ItemID: &item.ID, Details: audit.Details{"removed": item.Removed}},
			Paths:  itemPaths(item.RackID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem permanently removes an item. The audit entry keeps the parent
// rack reference and the item's name.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	return s.pipeline.Run(ctx, rbac.DeleteItem, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		item, err := s.store.GetItem(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}
		if err := s.store.DeleteItem(ctx, tx, id); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionDeleteItem,
			Target: audit.Target{
				RackID:  &item.RackID,
				Details: audit.Details{"name": item.Name, "rackId": item.RackID},
			},
			Paths: itemPaths(item.RackID),
		}, nil
	})
}

// MoveItem re-parents an item onto another rack.
func (s *Service) MoveItem(ctx context.Context, id, toRackID string) (*Item, error) {
	var item *Item
	err := s.pipeline.Run(ctx, rbac.MoveItem, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (mutation.Result, error) {
		if strings.TrimSpace(toRackID) == "" {
			return mutation.Result{}, errs.Invalid("target rack is required")
		}

		var err error
		item, err = s.store.GetItem(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}
		fromRackID := item.RackID
		if fromRackID == toRackID {
			return mutation.Result{}, errs.Invalid("item is already on rack %q", toRackID)
		}
		if ok, err := s.store.rackExists(ctx, tx, toRackID); err != nil {
			return mutation.Result{}, err
		} else if !ok {
			return mutation.Result{}, errs.NotFound("rack", toRackID)
		}

		item.RackID = toRackID
		if err := s.store.UpdateItem(ctx, tx, item); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{
			Action: audit.ActionUpdateItem,
			Target: audit.Target{
				RackID: &item.RackID,
				ItemID: &item.ID,
				Details: audit.Details{
					"moved":      true,
					"fromRackId": fromRackID,
					"toRackId":   toRackID,
				},
			},
			Paths: append(itemPaths(toRackID), revalidate.RackPath(fromRackID)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CreateLocation adds a location. Location changes are not audited.
func (s *Service) CreateLocation(ctx context.Context, name string) (*Location, error) {
	var loc *Location
	err := s.pipeline.Run(ctx, rbac.CreateLocation, func(ctx context.Context, tx *sql.Tx, actor *auth.User) (mutation.Result, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return mutation.Result{}, errs.Invalid("location name is required")
		}

		var err error
		loc, err = s.store.InsertLocation(ctx, tx, name)
		if err != nil {
			return mutation.Result{}, err
		}
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"location_id": loc.ID,
			"actor_id":    actor.ID,
		}).Info("location created")
		return mutation.Result{Paths: []string{revalidate.PathRacks}}, nil
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// DeleteLocation removes a location. Racks in it keep existing without one.
func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	return s.pipeline.Run(ctx, rbac.DeleteLocation, func(ctx context.Context, tx *sql.Tx, actor *auth.User) (mutation.Result, error) {
		if err := s.store.DeleteLocation(ctx, tx, id); err != nil {
			return mutation.Result{}, err
		}
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"location_id": id,
			"actor_id":    actor.ID,
		}).Info("location deleted")
		return mutation.Result{Paths: []string{revalidate.PathHome, revalidate.PathRacks, revalidate.PathItems}}, nil
	})
}

func itemPaths(rackID string) []string {
	return []string{revalidate.PathHome, revalidate.RackPath(rackID), revalidate.PathItems}
}
