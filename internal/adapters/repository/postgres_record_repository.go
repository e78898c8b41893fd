package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
)

type PostgresDayRecordRepository struct {
	db *sqlx.DB
}

func NewPostgresDayRecordRepository(db *sqlx.DB) *PostgresDayRecordRepository {
	return &PostgresDayRecordRepository{db: db}
}

func (r *PostgresDayRecordRepository) scanRow(row scannable) (*domain.DayRecord, error) {
	var rec domain.DayRecord
	var cellsJSON []byte

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Date, &cellsJSON,
		&rec.Version, &rec.DeletedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(cellsJSON) > 0 {
		if err := json.Unmarshal(cellsJSON, &rec.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cells: %w", err)
		}
	}

	return &rec, nil
}

func (r *PostgresDayRecordRepository) Create(ctx context.Context, rec *domain.DayRecord) error {
	cellsJSON, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}

	query := `
        INSERT INTO day_records (
            id, user_id, date, cells,
            version, deleted_at, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4,
            1, NULL, $5, $6
        )`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Date, cellsJSON,
		rec.CreatedAt, rec.UpdatedAt,
	)

	if err != nil {
		// UNIQUE(user_id, date): two devices created the same day offline.
		if isUniqueViolation(err) {
			return domain.ErrRecordConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to insert day record: %w", err)
	}

	rec.Version = 1
	return nil
}

func (r *PostgresDayRecordRepository) Update(ctx context.Context, rec *domain.DayRecord) error {
	cellsJSON, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}

	query := `
        UPDATE day_records SET
            cells = $1,
            updated_at = NOW(), version = version + 1
        WHERE id = $2 AND version = $3 AND deleted_at IS NULL
        RETURNING version, updated_at`

	row := r.db.QueryRowContext(ctx, query, cellsJSON, rec.ID, rec.Version)

	var newVersion int
	var newUpdatedAt time.Time

	err = row.Scan(&newVersion, &newUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existsQuery := `SELECT count(*) FROM day_records WHERE id = $1`
			var count int
			if checkErr := r.db.QueryRowContext(ctx, existsQuery, rec.ID).Scan(&count); checkErr != nil {
				return fmt.Errorf("existence check failed: %w", checkErr)
			}

			if count == 0 {
				return domain.ErrRecordNotFound
			}
			return domain.ErrRecordConflict
		}
		return fmt.Errorf("update query failed: %w", err)
	}

	rec.Version = newVersion
	rec.UpdatedAt = newUpdatedAt

	return nil
}

func (r *PostgresDayRecordRepository) Delete(ctx context.Context, id string, userID string) error {
	now := time.Now().UTC()

	query := `
        UPDATE day_records
        SET deleted_at = $1,
            updated_at = $1,
            version = version + 1
        WHERE id = $2
          AND user_id = $3
          AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, now, id, userID)
	if err != nil {
		return fmt.Errorf("delete query failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (r *PostgresDayRecordRepository) GetByDate(ctx context.Context, userID, date string) (*domain.DayRecord, error) {
	query := `SELECT * FROM day_records WHERE user_id = $1 AND date = $2 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, userID, date)

	rec, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return rec, nil
}

func (r *PostgresDayRecordRepository) ListByDateRange(ctx context.Context, userID, from, to string) ([]*domain.DayRecord, error) {
	// Date keys sort lexicographically in calendar order, so plain string
	// comparison gives the right range.
	query := `
        SELECT * FROM day_records
        WHERE user_id = $1
          AND date >= $2
          AND date <= $3
          AND deleted_at IS NULL
        ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("range query error: %w", err)
	}
	defer rows.Close()

	var records []*domain.DayRecord

	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("range row scan error: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *PostgresDayRecordRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.DayRecord, error) {
	query := `
        SELECT * FROM day_records
        WHERE user_id = $1 AND updated_at > $2
        ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sync query error: %w", err)
	}
	defer rows.Close()

	var records []*domain.DayRecord

	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sync row scan error: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}
