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

type PostgresMonthRecordRepository struct {
	db *sqlx.DB
}

func NewPostgresMonthRecordRepository(db *sqlx.DB) *PostgresMonthRecordRepository {
	return &PostgresMonthRecordRepository{db: db}
}

func (r *PostgresMonthRecordRepository) scanRow(row scannable) (*domain.MonthRecord, error) {
	var rec domain.MonthRecord
	var goalsJSON []byte

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Month, &goalsJSON,
		&rec.Version, &rec.DeletedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(goalsJSON) > 0 {
		if err := json.Unmarshal(goalsJSON, &rec.Goals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
		}
	}

	return &rec, nil
}

func (r *PostgresMonthRecordRepository) Create(ctx context.Context, rec *domain.MonthRecord) error {
	goalsJSON, err := json.Marshal(rec.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	query := `
        INSERT INTO month_records (
            id, user_id, month, goals,
            version, deleted_at, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4,
            1, NULL, $5, $6
        )`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Month, goalsJSON,
		rec.CreatedAt, rec.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrMonthConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to insert month record: %w", err)
	}

	rec.Version = 1
	return nil
}

func (r *PostgresMonthRecordRepository) Update(ctx context.Context, rec *domain.MonthRecord) error {
	goalsJSON, err := json.Marshal(rec.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	query := `
        UPDATE month_records SET
            goals = $1,
            updated_at = NOW(), version = version + 1
        WHERE id = $2 AND version = $3 AND deleted_at IS NULL
        RETURNING version, updated_at`

	row := r.db.QueryRowContext(ctx, query, goalsJSON, rec.ID, rec.Version)

	var newVersion int
	var newUpdatedAt time.Time

	err = row.Scan(&newVersion, &newUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existsQuery := `SELECT count(*) FROM month_records WHERE id = $1`
			var count int
			if checkErr := r.db.QueryRowContext(ctx, existsQuery, rec.ID).Scan(&count); checkErr != nil {
				return fmt.Errorf("existence check failed: %w", checkErr)
			}

			if count == 0 {
				return domain.ErrMonthNotFound
			}
			return domain.ErrMonthConflict
		}
		return fmt.Errorf("update query failed: %w", err)
	}

	rec.Version = newVersion
	rec.UpdatedAt = newUpdatedAt

	return nil
}

func (r *PostgresMonthRecordRepository) GetByMonth(ctx context.Context, userID, month string) (*domain.MonthRecord, error) {
	query := `SELECT * FROM month_records WHERE user_id = $1 AND month = $2 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, userID, month)

	rec, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMonthNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return rec, nil
}

func (r *PostgresMonthRecordRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.MonthRecord, error) {
	query := `
        SELECT * FROM month_records
        WHERE user_id = $1 AND updated_at > $2
        ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sync query error: %w", err)
	}
	defer rows.Close()

	var records []*domain.MonthRecord

	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sync row scan error: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}
