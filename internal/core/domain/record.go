package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
)

var (
	ErrRecordInvalidUserID = errors.New("invalid user id")
	ErrInvalidDateKey      = errors.New("invalid date key (must be YYYY-MM-DD)")
	ErrInvalidMonthKey     = errors.New("invalid month key (must be YYYY-MM)")
	ErrInvalidValue        = errors.New("value must be a JSON scalar")
)

// DayRecord holds everything a user entered for one calendar day, nested as
// section name -> field name -> raw value. Raw values are the JSON scalars
// the clients send: float64, bool, string or nil. Interpretation (clock
// strings to minutes, velocity formulas) happens at read time, so a record
// never goes stale when the schema changes.
type DayRecord struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"user_id"`
	Date      string                    `json:"date"` // YYYY-MM-DD
	Values    map[string]map[string]any `json:"values"`
	Version   int                       `json:"version"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	DeletedAt *time.Time                `json:"deleted_at,omitempty"`
}

func NewDayRecord(userID, date string) (*DayRecord, error) {
	if userID == "" {
		return nil, ErrRecordInvalidUserID
	}
	if _, _, _, ok := schedule.ParseDateKey(date); !ok {
		return nil, ErrInvalidDateKey
	}

	now := time.Now().UTC()

	return &DayRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Date:      date,
		Values:    make(map[string]map[string]any),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *DayRecord) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrRecordInvalidUserID
	}
	if _, _, _, ok := schedule.ParseDateKey(r.Date); !ok {
		return ErrInvalidDateKey
	}
	return nil
}

// SetValue stores a raw value under section/field. A nil value clears the
// cell instead of storing an explicit null.
func (r *DayRecord) SetValue(section, field string, value any) error {
	if strings.TrimSpace(section) == "" {
		return ErrSectionNameEmpty
	}
	if strings.TrimSpace(field) == "" {
		return ErrFieldNameEmpty
	}

	if value == nil {
		if fields, ok := r.Values[section]; ok {
			delete(fields, field)
			if len(fields) == 0 {
				delete(r.Values, section)
			}
		}
	} else {
		if r.Values == nil {
			r.Values = make(map[string]map[string]any)
		}
		if r.Values[section] == nil {
			r.Values[section] = make(map[string]any)
		}
		r.Values[section][field] = value
	}

	r.UpdatedAt = time.Now().UTC()
	return nil
}

// FieldValue reads one raw cell; ok is false when nothing was entered.
func (r *DayRecord) FieldValue(section, field string) (any, bool) {
	fields, ok := r.Values[section]
	if !ok {
		return nil, false
	}
	v, ok := fields[field]
	return v, ok
}

// ToggleGoal flips a checkbox cell and returns the new state. Anything that
// is not stored as true counts as unchecked.
func (r *DayRecord) ToggleGoal(section, field string) (bool, error) {
	current, _ := r.FieldValue(section, field)
	checked, _ := current.(bool)

	if err := r.SetValue(section, field, !checked); err != nil {
		return false, err
	}
	return !checked, nil
}

// MonthRecord holds a month's goal checkboxes, keyed by goal name. Monthly
// goals have no schedule; the month itself is the scope.
type MonthRecord struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Month     string          `json:"month"` // YYYY-MM
	Goals     map[string]bool `json:"goals"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

func NewMonthRecord(userID, month string) (*MonthRecord, error) {
	if userID == "" {
		return nil, ErrRecordInvalidUserID
	}
	if _, _, ok := ParseMonthKey(month); !ok {
		return nil, ErrInvalidMonthKey
	}

	now := time.Now().UTC()

	return &MonthRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Month:     month,
		Goals:     make(map[string]bool),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (m *MonthRecord) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return ErrRecordInvalidUserID
	}
	if _, _, ok := ParseMonthKey(m.Month); !ok {
		return ErrInvalidMonthKey
	}
	return nil
}

func (m *MonthRecord) SetGoal(name string, done bool) error {
	if strings.TrimSpace(name) == "" {
		return ErrFieldNameEmpty
	}

	if m.Goals == nil {
		m.Goals = make(map[string]bool)
	}
	m.Goals[name] = done
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MonthRecord) ToggleGoal(name string) (bool, error) {
	next := !m.Goals[name]
	if err := m.SetGoal(name, next); err != nil {
		return false, err
	}
	return next, nil
}

// MonthKey formats a year and month as the canonical YYYY-MM identifier.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// ParseMonthKey is the inverse of MonthKey.
func ParseMonthKey(key string) (year int, month time.Month, ok bool) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}
