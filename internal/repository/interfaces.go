package repository

import (
	"context"
	"errors"

	"github.com/alexanderramin/noise/internal/domain"
)

var ErrNotFound = errors.New("not found")

// UpdateFunc mutates a member record in place. Returning an error aborts the
// update and nothing is persisted.
type UpdateFunc func(rec *domain.MemberRecord) error

// MemberRepo owns every MemberRecord. All writes go through Update or
// SaveSnapshot, which share one writer lock, so concurrent handlers touching
// the same member cannot lose each other's changes.
type MemberRepo interface {
	// Get returns a copy of the member's record, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.MemberRecord, error)

	// Update loads the member's record (a fresh one if absent), applies fn and
	// persists the result as one atomic step. Returns a copy of the saved record.
	Update(ctx context.Context, id string, fn UpdateFunc) (*domain.MemberRecord, error)

	// LoadSnapshot returns a copy of every record.
	LoadSnapshot(ctx context.Context) (*domain.Snapshot, error)

	// SaveSnapshot replaces the whole record set.
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// List returns every member id in ascending order.
	List(ctx context.Context) ([]string, error)

	Close() error
}
