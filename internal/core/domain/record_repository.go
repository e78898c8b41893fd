package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRecordNotFound = errors.New("day record not found")
	ErrRecordConflict = errors.New("day record version conflict")
	ErrMonthNotFound  = errors.New("month record not found")
	ErrMonthConflict  = errors.New("month record version conflict")
)

type DayRecordRepository interface {
	// Create persists a new day record.
	Create(ctx context.Context, rec *DayRecord) error

	// Update modifies an existing record.
	// Implementations must handle Optimistic Locking (version check) to prevent
	// data races between two devices editing the same day.
	Update(ctx context.Context, rec *DayRecord) error

	// Delete performs a Soft Delete on the record.
	// It requires userID to ensure the user actually owns the record.
	Delete(ctx context.Context, id string, userID string) error

	// GetByDate retrieves the active (non-deleted) record for one date key.
	GetByDate(ctx context.Context, userID, date string) (*DayRecord, error)

	// ListByDateRange retrieves active records with from <= date <= to.
	// Date keys sort lexicographically in calendar order, which is what makes
	// this range form work. Optimized for heatmaps and charts.
	ListByDateRange(ctx context.Context, userID, from, to string) ([]*DayRecord, error)

	// GetChanges [SYNC ENGINE] Returns all changes (creations, updates, soft-deletes)
	// that occurred after the 'since' timestamp. Crucial for offline-first synchronization.
	GetChanges(ctx context.Context, userID string, since time.Time) ([]*DayRecord, error)
}

type MonthRecordRepository interface {
	// Create persists a new month record.
	Create(ctx context.Context, rec *MonthRecord) error

	// Update modifies an existing month record with the same locking contract
	// as day records.
	Update(ctx context.Context, rec *MonthRecord) error

	// GetByMonth retrieves the active record for one YYYY-MM key.
	GetByMonth(ctx context.Context, userID, month string) (*MonthRecord, error)

	// GetChanges [SYNC] Returns only the deltas occurring after a specific date.
	GetChanges(ctx context.Context, userID string, since time.Time) ([]*MonthRecord, error)
}
