package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
)

var (
	ErrSchemaInvalidUserID  = errors.New("invalid user id")
	ErrSectionNameEmpty     = errors.New("section name cannot be empty")
	ErrSectionNameTooLong   = errors.New("section name is too long (max 100 chars)")
	ErrDuplicateSection     = errors.New("duplicate section name")
	ErrSectionNoFields      = errors.New("section must contain at least one field")
	ErrFieldNameEmpty       = errors.New("field name cannot be empty")
	ErrFieldNameTooLong     = errors.New("field name is too long (max 100 chars)")
	ErrDuplicateField       = errors.New("duplicate field name in section")
	ErrInvalidFieldType     = errors.New("invalid field type (must be time, number, checkbox, velocity, or text)")
	ErrCalculationRequired  = errors.New("velocity fields require a calculation formula")
	ErrCalculationForbidden = errors.New("only velocity fields may carry a calculation formula")
	ErrInvalidScheduleKind  = errors.New("invalid schedule kind")
	ErrInvalidScheduleDays  = errors.New("invalid schedule days (must be 0-6)")
	ErrInvalidScheduleStart = errors.New("invalid schedule start date (must be YYYY-MM-DD)")
	ErrInvalidScheduleEvery = errors.New("invalid schedule interval (must be >= 1)")
	ErrInvalidScheduleDates = errors.New("invalid schedule dates (must be YYYY-MM-DD)")
	ErrSectionNotFound      = errors.New("section not found")
	ErrFieldNotFound        = errors.New("field not found")
)

var layoutErrors = []error{
	ErrSectionNameEmpty, ErrSectionNameTooLong, ErrDuplicateSection,
	ErrSectionNoFields, ErrFieldNameEmpty, ErrFieldNameTooLong,
	ErrDuplicateField, ErrInvalidFieldType, ErrCalculationRequired,
	ErrCalculationForbidden, ErrInvalidScheduleKind, ErrInvalidScheduleDays,
	ErrInvalidScheduleStart, ErrInvalidScheduleEvery, ErrInvalidScheduleDates,
}

// IsLayoutError reports whether err is a layout validation failure the
// client can fix by correcting its payload.
func IsLayoutError(err error) bool {
	for _, e := range layoutErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

const (
	FieldTypeTime     = "time"
	FieldTypeNumber   = "number"
	FieldTypeCheckbox = "checkbox"
	FieldTypeVelocity = "velocity"
	FieldTypeText     = "text"

	SectionDailyGoals   = "Daily Goals"
	SectionMonthlyGoals = "Monthly Goals"

	MaxNameLen = 100
)

// Field is one trackable column of a section. Velocity fields derive their
// value from the section's other fields through Calculation; every other
// type is entered directly.
type Field struct {
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Unit        string             `json:"unit,omitempty"`
	Calculation string             `json:"calculation,omitempty"`
	Schedule    *schedule.Schedule `json:"schedule,omitempty"`
}

type Section struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Schema is a user's whole tracking layout, one document per user. It is the
// configuration every evaluation and completion call reads; values live in
// DayRecord and MonthRecord, never here.
type Schema struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Sections  []Section  `json:"sections"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func validateSchedule(s *schedule.Schedule) error {
	if s == nil {
		return nil
	}

	switch s.Kind {
	case "", schedule.KindEveryday:
		return nil
	case schedule.KindWeekdays:
		if len(s.Days) == 0 {
			return ErrInvalidScheduleDays
		}
		for _, d := range s.Days {
			if d < 0 || d > 6 {
				return ErrInvalidScheduleDays
			}
		}
	case schedule.KindInterval:
		if s.Every < 1 {
			return ErrInvalidScheduleEvery
		}
		if _, _, _, ok := schedule.ParseDateKey(s.Start); !ok {
			return ErrInvalidScheduleStart
		}
	case schedule.KindDates:
		for _, d := range s.Dates {
			if _, _, _, ok := schedule.ParseDateKey(d); !ok {
				return ErrInvalidScheduleDates
			}
		}
	default:
		return ErrInvalidScheduleKind
	}
	return nil
}

func validateField(f Field) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return ErrFieldNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrFieldNameTooLong
	}

	switch f.Type {
	case FieldTypeTime, FieldTypeNumber, FieldTypeCheckbox, FieldTypeVelocity, FieldTypeText:
	default:
		return ErrInvalidFieldType
	}

	if f.Type == FieldTypeVelocity {
		if strings.TrimSpace(f.Calculation) == "" {
			return ErrCalculationRequired
		}
	} else if f.Calculation != "" {
		return ErrCalculationForbidden
	}

	return validateSchedule(f.Schedule)
}

func validateSections(sections []Section) error {
	sectionNames := make(map[string]bool, len(sections))

	for _, sec := range sections {
		name := strings.TrimSpace(sec.Name)
		if name == "" {
			return ErrSectionNameEmpty
		}
		if len(name) > MaxNameLen {
			return ErrSectionNameTooLong
		}
		if sectionNames[name] {
			return ErrDuplicateSection
		}
		sectionNames[name] = true

		if len(sec.Fields) == 0 {
			return ErrSectionNoFields
		}

		fieldNames := make(map[string]bool, len(sec.Fields))
		for _, f := range sec.Fields {
			if err := validateField(f); err != nil {
				return err
			}
			fieldName := strings.TrimSpace(f.Name)
			if fieldNames[fieldName] {
				return ErrDuplicateField
			}
			fieldNames[fieldName] = true
		}
	}

	return nil
}

func NewSchema(userID string, sections []Section) (*Schema, error) {
	if userID == "" {
		return nil, ErrSchemaInvalidUserID
	}
	if err := validateSections(sections); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &Schema{
		ID:        uuid.New().String(),
		UserID:    userID,
		Sections:  sections,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Update replaces the section layout after validation. The persistence layer
// owns the version bump; the domain only moves UpdatedAt.
func (s *Schema) Update(sections []Section) error {
	if err := validateSections(sections); err != nil {
		return err
	}

	s.Sections = sections
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Section returns the named section, or false when the schema has none.
func (s *Schema) Section(name string) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.Name == name {
			return sec, true
		}
	}
	return Section{}, false
}

// FieldNames lists the section's field names in layout order.
func (sec Section) FieldNames() []string {
	names := make([]string, 0, len(sec.Fields))
	for _, f := range sec.Fields {
		names = append(names, f.Name)
	}
	return names
}

// DefaultSections is the out-of-box layout seeded for every new user. It is
// plain data handed to NewSchema by whoever provisions the account, never a
// package-level mutable global.
func DefaultSections() []Section {
	return []Section{
		{
			Name: "Running",
			Fields: []Field{
				{Name: "Running Distance", Type: FieldTypeNumber, Unit: "km"},
				{Name: "Running Time", Type: FieldTypeTime, Unit: "min"},
				{Name: "Pace", Type: FieldTypeVelocity, Unit: "km/h", Calculation: "Running Distance / (Running Time / 60)"},
			},
		},
		{
			Name: "Sleep",
			Fields: []Field{
				{Name: "Bed Time", Type: FieldTypeTime},
				{Name: "Wake Up", Type: FieldTypeTime},
				{Name: "Notes", Type: FieldTypeText},
			},
		},
		{
			Name: SectionDailyGoals,
			Fields: []Field{
				{Name: "Meditate", Type: FieldTypeCheckbox},
				{Name: "Read", Type: FieldTypeCheckbox},
				{Name: "Gym", Type: FieldTypeCheckbox, Schedule: &schedule.Schedule{
					Kind: schedule.KindWeekdays,
					Days: []int{1, 3, 5},
				}},
			},
		},
		{
			Name: SectionMonthlyGoals,
			Fields: []Field{
				{Name: "Save Money", Type: FieldTypeCheckbox},
				{Name: "Run 50 km", Type: FieldTypeCheckbox},
			},
		},
	}
}
