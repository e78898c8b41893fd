package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/calc"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/progress"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/workers"
)

type RecordService struct {
	days    domain.DayRecordRepository
	months  domain.MonthRecordRepository
	schemas *SchemaService
	worker  *workers.RecomputeWorker
}

func NewRecordService(days domain.DayRecordRepository, months domain.MonthRecordRepository, schemas *SchemaService, worker *workers.RecomputeWorker) *RecordService {
	return &RecordService{
		days:    days,
		months:  months,
		schemas: schemas,
		worker:  worker,
	}
}

type SetValueInput struct {
	UserID  string
	Date    string
	Section string
	Field   string
	Value   any
	Version int
}

type ToggleGoalInput struct {
	UserID  string
	Date    string
	Section string
	Name    string
	Version int
}

type SetMonthGoalInput struct {
	UserID  string
	Month   string
	Name    string
	Done    bool
	Version int
}

// FieldView is one rendered cell of a day: the stored raw value plus its
// interpretation. Value carries the numeric reading (or the computed result
// for velocity fields) and stays nil when the field has no value today.
type FieldView struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Unit    string   `json:"unit,omitempty"`
	Raw     any      `json:"raw,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Checked *bool    `json:"checked,omitempty"`
	Active  bool     `json:"active"`
}

type SectionView struct {
	Name   string      `json:"name"`
	Fields []FieldView `json:"fields"`
}

type DayView struct {
	Date       string        `json:"date"`
	Sections   []SectionView `json:"sections"`
	Completion float64       `json:"completion_ratio"`
	Version    int           `json:"version"`
}

type MonthView struct {
	Month      string          `json:"month"`
	Goals      map[string]bool `json:"goals"`
	Completion float64         `json:"completion_ratio"`
	Version    int             `json:"version"`
}

// DayView renders everything the day screen needs for one date: every field
// of every section with schedule state, velocity results and the daily goal
// completion ratio. A date with no record renders as an empty day.
func (s *RecordService) DayView(ctx context.Context, userID, date string) (*DayView, error) {
	year, month, day, ok := schedule.ParseDateKey(date)
	if !ok {
		return nil, domain.ErrInvalidDateKey
	}

	schema, err := s.schemas.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, err := s.days.GetByDate(ctx, userID, date)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err
		}
		rec = nil
	}

	view := &DayView{
		Date:     date,
		Sections: make([]SectionView, 0, len(schema.Sections)),
	}
	if rec != nil {
		view.Version = rec.Version
	}

	for _, sec := range schema.Sections {
		sv := SectionView{Name: sec.Name, Fields: make([]FieldView, 0, len(sec.Fields))}
		snapshot := domain.Snapshot(rec, sec)

		for _, f := range sec.Fields {
			fv := FieldView{
				Name:   f.Name,
				Type:   f.Type,
				Unit:   f.Unit,
				Active: f.Schedule.ActiveOn(year, month, day),
			}
			if rec != nil {
				fv.Raw, _ = rec.FieldValue(sec.Name, f.Name)
			}

			switch f.Type {
			case domain.FieldTypeVelocity:
				if result, ok := calc.Evaluate(f.Calculation, snapshot); ok {
					fv.Value = &result
				}
			case domain.FieldTypeTime, domain.FieldTypeNumber:
				if n, ok := domain.NumericValue(fv.Raw); ok {
					fv.Value = &n
				}
			case domain.FieldTypeCheckbox:
				checked, _ := fv.Raw.(bool)
				fv.Checked = &checked
			}

			sv.Fields = append(sv.Fields, fv)
		}

		view.Sections = append(view.Sections, sv)
	}

	if sec, ok := schema.Section(domain.SectionDailyGoals); ok {
		goals := dailyGoals(sec)
		view.Completion = progress.DailyCompletion(goals, domain.GoalChecks(rec, sec), year, month, day)
	}

	return view, nil
}

// ListDays returns the raw day documents in an inclusive date range, oldest
// first. Calendar views prefetch whole months through this.
func (s *RecordService) ListDays(ctx context.Context, userID, from, to string) ([]*domain.DayRecord, error) {
	if _, _, _, ok := schedule.ParseDateKey(from); !ok {
		return nil, domain.ErrInvalidDateKey
	}
	if _, _, _, ok := schedule.ParseDateKey(to); !ok {
		return nil, domain.ErrInvalidDateKey
	}

	return s.days.ListByDateRange(ctx, userID, from, to)
}

// SetValue stores one raw cell, creating the day's record on first write.
func (s *RecordService) SetValue(ctx context.Context, input SetValueInput) (*domain.DayRecord, error) {
	if !scalarValue(input.Value) {
		return nil, domain.ErrInvalidValue
	}

	schema, err := s.schemas.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	sec, ok := schema.Section(input.Section)
	if !ok {
		return nil, domain.ErrSectionNotFound
	}
	if !hasField(sec, input.Field) {
		return nil, domain.ErrFieldNotFound
	}

	rec, err := s.days.GetByDate(ctx, input.UserID, input.Date)
	switch {
	case err == nil:
		if input.Version > 0 && rec.Version != input.Version {
			return nil, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrRecordConflict, input.Version, rec.Version)
		}
		if err := rec.SetValue(input.Section, input.Field, input.Value); err != nil {
			return nil, err
		}
		if err := s.days.Update(ctx, rec); err != nil {
			return nil, err
		}

	case errors.Is(err, domain.ErrRecordNotFound):
		rec, err = domain.NewDayRecord(input.UserID, input.Date)
		if err != nil {
			return nil, err
		}
		if err := rec.SetValue(input.Section, input.Field, input.Value); err != nil {
			return nil, err
		}
		if err := s.days.Create(ctx, rec); err != nil {
			return nil, err
		}

	default:
		return nil, err
	}

	s.worker.Enqueue(input.UserID)

	return rec, nil
}

// ToggleGoal flips a daily goal checkbox and reports the new state together
// with the day's refreshed completion ratio.
func (s *RecordService) ToggleGoal(ctx context.Context, input ToggleGoalInput) (bool, float64, error) {
	if input.Section == "" {
		input.Section = domain.SectionDailyGoals
	}

	year, month, day, ok := schedule.ParseDateKey(input.Date)
	if !ok {
		return false, 0, domain.ErrInvalidDateKey
	}

	schema, err := s.schemas.Get(ctx, input.UserID)
	if err != nil {
		return false, 0, err
	}
	sec, ok := schema.Section(input.Section)
	if !ok {
		return false, 0, domain.ErrSectionNotFound
	}
	if !hasField(sec, input.Name) {
		return false, 0, domain.ErrFieldNotFound
	}

	rec, err := s.days.GetByDate(ctx, input.UserID, input.Date)
	created := false
	switch {
	case err == nil:
		if input.Version > 0 && rec.Version != input.Version {
			return false, 0, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrRecordConflict, input.Version, rec.Version)
		}
	case errors.Is(err, domain.ErrRecordNotFound):
		rec, err = domain.NewDayRecord(input.UserID, input.Date)
		if err != nil {
			return false, 0, err
		}
		created = true
	default:
		return false, 0, err
	}

	checked, err := rec.ToggleGoal(input.Section, input.Name)
	if err != nil {
		return false, 0, err
	}

	if created {
		err = s.days.Create(ctx, rec)
	} else {
		err = s.days.Update(ctx, rec)
	}
	if err != nil {
		return false, 0, err
	}

	s.worker.Enqueue(input.UserID)

	ratio := progress.DailyCompletion(dailyGoals(sec), domain.GoalChecks(rec, sec), year, month, day)
	return checked, ratio, nil
}

// MonthView renders the monthly goal checklist with its unweighted ratio.
func (s *RecordService) MonthView(ctx context.Context, userID, month string) (*MonthView, error) {
	if _, _, ok := domain.ParseMonthKey(month); !ok {
		return nil, domain.ErrInvalidMonthKey
	}

	schema, err := s.schemas.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, err := s.months.GetByMonth(ctx, userID, month)
	if err != nil {
		if !errors.Is(err, domain.ErrMonthNotFound) {
			return nil, err
		}
		rec = nil
	}

	sec, _ := schema.Section(domain.SectionMonthlyGoals)
	states := domain.MonthGoalStates(rec, sec)

	view := &MonthView{
		Month:      month,
		Goals:      states,
		Completion: progress.MonthlyCompletion(states),
	}
	if rec != nil {
		view.Version = rec.Version
	}

	return view, nil
}

// SetMonthGoal checks or unchecks one monthly goal, creating the month's
// record on first write.
func (s *RecordService) SetMonthGoal(ctx context.Context, input SetMonthGoalInput) (*domain.MonthRecord, error) {
	rec, err := s.months.GetByMonth(ctx, input.UserID, input.Month)
	switch {
	case err == nil:
		if input.Version > 0 && rec.Version != input.Version {
			return nil, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrMonthConflict, input.Version, rec.Version)
		}
		if err := rec.SetGoal(input.Name, input.Done); err != nil {
			return nil, err
		}
		if err := s.months.Update(ctx, rec); err != nil {
			return nil, err
		}

	case errors.Is(err, domain.ErrMonthNotFound):
		rec, err = domain.NewMonthRecord(input.UserID, input.Month)
		if err != nil {
			return nil, err
		}
		if err := rec.SetGoal(input.Name, input.Done); err != nil {
			return nil, err
		}
		if err := s.months.Create(ctx, rec); err != nil {
			return nil, err
		}

	default:
		return nil, err
	}

	return rec, nil
}

// DeleteDay soft-deletes a day record, keeping its tombstone visible to sync.
func (s *RecordService) DeleteDay(ctx context.Context, id, userID string) error {
	if err := s.days.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.worker.Enqueue(userID)
	return nil
}

// DeleteDayByDate resolves a calendar date to its record and soft-deletes it.
// Clients address days by date, not by record id.
func (s *RecordService) DeleteDayByDate(ctx context.Context, userID, date string) error {
	if _, _, _, ok := schedule.ParseDateKey(date); !ok {
		return domain.ErrInvalidDateKey
	}

	rec, err := s.days.GetByDate(ctx, userID, date)
	if err != nil {
		return err
	}

	return s.DeleteDay(ctx, rec.ID, userID)
}

func (s *RecordService) GetDayDelta(ctx context.Context, userID string, since time.Time) ([]*domain.DayRecord, error) {
	return s.days.GetChanges(ctx, userID, since)
}

func (s *RecordService) GetMonthDelta(ctx context.Context, userID string, since time.Time) ([]*domain.MonthRecord, error) {
	return s.months.GetChanges(ctx, userID, since)
}

func dailyGoals(sec domain.Section) []progress.Goal {
	goals := make([]progress.Goal, 0, len(sec.Fields))
	for _, f := range sec.Fields {
		if f.Type == domain.FieldTypeCheckbox {
			goals = append(goals, progress.Goal{Name: f.Name, Schedule: f.Schedule})
		}
	}
	return goals
}

func hasField(sec domain.Section, name string) bool {
	for _, f := range sec.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func scalarValue(v any) bool {
	switch v.(type) {
	case nil, bool, float64, int, string:
		return true
	}
	return false
}
