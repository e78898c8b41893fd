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

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresSchemaRepository struct {
	db *sqlx.DB
}

func NewPostgresSchemaRepository(db *sqlx.DB) *PostgresSchemaRepository {
	return &PostgresSchemaRepository{db: db}
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresSchemaRepository) scanRow(row scannable) (*domain.Schema, error) {
	var s domain.Schema
	var sectionsJSON []byte

	err := row.Scan(
		&s.ID, &s.UserID, &sectionsJSON,
		&s.Version, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(sectionsJSON) > 0 {
		if err := json.Unmarshal(sectionsJSON, &s.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
	}

	return &s, nil
}

func (r *PostgresSchemaRepository) Create(ctx context.Context, s *domain.Schema) error {
	sectionsJSON, err := json.Marshal(s.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	query := `
        INSERT INTO schemas (
            id, user_id, sections,
            version, deleted_at, created_at, updated_at
        ) VALUES (
            $1, $2, $3,
            1, NULL, $4, $5
        )`

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.UserID, sectionsJSON,
		s.CreatedAt, s.UpdatedAt,
	)

	if err != nil {
		// One active schema per user: a second insert is a lost race.
		if isUniqueViolation(err) {
			return domain.ErrSchemaConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to insert schema: %w", err)
	}

	s.Version = 1
	return nil
}

func (r *PostgresSchemaRepository) GetByUserID(ctx context.Context, userID string) (*domain.Schema, error) {
	query := `SELECT * FROM schemas WHERE user_id = $1 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, userID)

	s, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSchemaNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return s, nil
}

func (r *PostgresSchemaRepository) Update(ctx context.Context, s *domain.Schema) error {
	sectionsJSON, err := json.Marshal(s.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	query := `
        UPDATE schemas SET
            sections = $1,
            updated_at = NOW(), version = version + 1
        WHERE user_id = $2 AND version = $3 AND deleted_at IS NULL
        RETURNING version, updated_at`

	row := r.db.QueryRowContext(ctx, query, sectionsJSON, s.UserID, s.Version)

	var newVersion int
	var newUpdatedAt time.Time

	err = row.Scan(&newVersion, &newUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existsQuery := `SELECT count(*) FROM schemas WHERE user_id = $1`
			var count int
			if checkErr := r.db.QueryRowContext(ctx, existsQuery, s.UserID).Scan(&count); checkErr != nil {
				return fmt.Errorf("existence check failed: %w", checkErr)
			}

			if count == 0 {
				return domain.ErrSchemaNotFound
			}
			return domain.ErrSchemaConflict
		}
		return fmt.Errorf("update query failed: %w", err)
	}

	s.Version = newVersion
	s.UpdatedAt = newUpdatedAt

	return nil
}

func (r *PostgresSchemaRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.Schema, error) {
	query := `
        SELECT * FROM schemas
        WHERE user_id = $1 AND updated_at > $2
        ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sync query error: %w", err)
	}
	defer rows.Close()

	var schemas []*domain.Schema

	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sync row scan error: %w", err)
		}
		schemas = append(schemas, s)
	}

	return schemas, nil
}
