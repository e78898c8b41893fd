package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/calc"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
)

type SchemaService struct {
	repo     domain.SchemaRepository
	defaults func() []domain.Section
}

// NewSchemaService wires the schema repository with the layout seeded for
// new users. A nil defaults falls back to the built-in starter layout.
func NewSchemaService(repo domain.SchemaRepository, defaults func() []domain.Section) *SchemaService {
	if defaults == nil {
		defaults = domain.DefaultSections
	}
	return &SchemaService{
		repo:     repo,
		defaults: defaults,
	}
}

type SaveSchemaInput struct {
	UserID   string
	Sections []domain.Section
	Version  int
}

// FieldInfo is what the schema editor shows about one field: the rendered
// schedule and, for velocity fields, which raw fields feed the formula.
type FieldInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Unit         string   `json:"unit,omitempty"`
	Calculation  string   `json:"calculation,omitempty"`
	ScheduleText string   `json:"schedule_text"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Get returns the user's schema, seeding and persisting the default layout
// on first access so every account always has one.
func (s *SchemaService) Get(ctx context.Context, userID string) (*domain.Schema, error) {
	schema, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return schema, nil
	}
	if !errors.Is(err, domain.ErrSchemaNotFound) {
		return nil, err
	}

	schema, err = domain.NewSchema(userID, s.defaults())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schema); err != nil {
		return nil, err
	}

	return schema, nil
}

// Save replaces the user's layout. The version check mirrors the sync
// contract: a stale client must fail loudly, never overwrite silently.
func (s *SchemaService) Save(ctx context.Context, input SaveSchemaInput) (*domain.Schema, error) {
	schema, err := s.repo.GetByUserID(ctx, input.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrSchemaNotFound) {
			return nil, err
		}

		schema, err = domain.NewSchema(input.UserID, input.Sections)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, schema); err != nil {
			return nil, err
		}
		return schema, nil
	}

	if input.Version > 0 && schema.Version != input.Version {
		return nil, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrSchemaConflict, input.Version, schema.Version)
	}

	if err := schema.Update(input.Sections); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, schema); err != nil {
		return nil, err
	}

	return schema, nil
}

// FieldInfo describes one field of the user's schema for the editor UI.
func (s *SchemaService) FieldInfo(ctx context.Context, userID, sectionName, fieldName string) (*FieldInfo, error) {
	schema, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	sec, ok := schema.Section(sectionName)
	if !ok {
		return nil, domain.ErrSectionNotFound
	}

	for _, f := range sec.Fields {
		if f.Name != fieldName {
			continue
		}

		info := &FieldInfo{
			Name:         f.Name,
			Type:         f.Type,
			Unit:         f.Unit,
			Calculation:  f.Calculation,
			ScheduleText: f.Schedule.Describe(),
		}
		if f.Type == domain.FieldTypeVelocity {
			info.Dependencies = calc.Dependencies(f.Calculation, sec.FieldNames())
		}
		return info, nil
	}

	return nil, domain.ErrFieldNotFound
}

func (s *SchemaService) GetDelta(ctx context.Context, userID string, since time.Time) ([]*domain.Schema, error) {
	return s.repo.GetChanges(ctx, userID, since)
}
