package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/rackbook/pkg/rbac"
)

// Service is the admin-only read side of the audit log.
type Service struct {
	store Store
	guard *rbac.Guard
}

// NewService creates the audit read service
func NewService(store Store, guard *rbac.Guard) *Service {
	return &Service{store: store, guard: guard}
}

// List returns entries matching filter, newest first.
func (s *Service) List(ctx context.Context, filter SearchFilter) ([]*EntryView, error) {
	if _, err := s.guard.Authorize(ctx, rbac.ViewAuditLogs); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, filter)
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id string) (*EntryView, error) {
	if _, err := s.guard.Authorize(ctx, rbac.ViewAuditLogs); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Stats summarizes the log over an optional time range.
func (s *Service) Stats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	if _, err := s.guard.Authorize(ctx, rbac.ViewAuditLogs); err != nil {
		return nil, err
	}
	return s.store.GetStats(ctx, startTime, endTime)
}

// Export renders matching entries in format.
func (s *Service) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	entries, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Export(entries, format)
}
