package repositories

import (
	"context"
	"errors"

	"github.com/upb/fact-history/models"
)

var (
	// ErrNotFound is returned by point lookups with no matching record
	ErrNotFound = errors.New("record not found")

	// ErrStopScan may be returned from a scan callback to end the scan early without error
	ErrStopScan = errors.New("stop scan")
)

// Index names a logical lookup path over the fact history table
type Index int

const (
	// IndexByFact matches on fact_id, ordered by timestamp
	IndexByFact Index = iota + 1
	// IndexByUser matches on user_id, ordered by timestamp
	IndexByUser
	// IndexBySpace matches on memory_space_id, ordered by timestamp
	IndexBySpace
	// IndexBySpaceTime matches on memory_space_id with a timestamp range
	IndexBySpaceTime
	// IndexByTime scans the whole table by timestamp; Key is ignored
	IndexByTime
)

func (i Index) String() string {
	switch i {
	case IndexByFact:
		return "by_fact_id"
	case IndexByUser:
		return "by_user_id"
	case IndexBySpace:
		return "by_memory_space_id"
	case IndexBySpaceTime:
		return "by_memory_space_id_timestamp"
	case IndexByTime:
		return "by_timestamp"
	default:
		return "unknown"
	}
}

// Order is the timestamp direction of a scan. Ties are broken by storage key in the same direction.
type Order int

const (
	OrderDescending Order = iota
	OrderAscending
)

// Range bounds the timestamp component of a scan. Nil bounds are open.
type Range struct {
	Lower          *int64 // inclusive
	Upper          *int64
	UpperExclusive bool
}

// ScanQuery describes an indexed scan: equality on Key plus an optional timestamp range
type ScanQuery struct {
	Index Index
	Key   string
	Range Range
	Order Order
	Limit int // <= 0 is unbounded
}

// FactEventRepository is the storage adapter for the append-only fact history log.
// Every Insert and Delete is atomic on its own; nothing spans records.
type FactEventRepository interface {
	// Insert appends an event and returns its storage key
	Insert(ctx context.Context, event *models.FactEvent) (int64, error)

	// GetByEventID retrieves an event by its unique event ID, or ErrNotFound
	GetByEventID(ctx context.Context, eventID string) (*models.FactEvent, error)

	// Scan streams matching events in order to fn. fn must not call back into the repository.
	Scan(ctx context.Context, q ScanQuery, fn func(*models.FactEvent) error) error

	// Count returns the number of events matching q, ignoring Limit and Order
	Count(ctx context.Context, q ScanQuery) (int, error)

	// Delete removes the event with the given storage key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key int64) error

	// Ping checks that the underlying store is reachable
	Ping(ctx context.Context) error
}

// Collect runs a scan and gathers every event it yields
func Collect(ctx context.Context, repo FactEventRepository, q ScanQuery) ([]*models.FactEvent, error) {
	var events []*models.FactEvent
	err := repo.Scan(ctx, q, func(e *models.FactEvent) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Int64 returns a pointer to v, for building ranges
func Int64(v int64) *int64 {
	return &v
}
