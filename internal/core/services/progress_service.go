package services

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/calc"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/progress"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
)

const (
	streakCacheSize = 1024
	streakCacheTTL  = 30 * time.Second
)

type streakEntry struct {
	current  int
	longest  int
	storedAt time.Time
}

// ProgressService answers the read-heavy aggregation queries: heatmaps,
// chart series and streaks. Streaks are recomputed from the full history on
// demand, so a small TTL cache keeps repeated widget polls off the database.
type ProgressService struct {
	days    domain.DayRecordRepository
	users   domain.UserRepository
	schemas *SchemaService
	streaks *lru.Cache[string, streakEntry]
	ttl     time.Duration
}

func NewProgressService(days domain.DayRecordRepository, users domain.UserRepository, schemas *SchemaService) *ProgressService {
	// lru.New only errors on a non-positive size.
	cache, _ := lru.New[string, streakEntry](streakCacheSize)

	return &ProgressService{
		days:    days,
		users:   users,
		schemas: schemas,
		streaks: cache,
		ttl:     streakCacheTTL,
	}
}

type HeatmapCell struct {
	Date       string  `json:"date"`
	Completion float64 `json:"completion_ratio"`
}

type Heatmap struct {
	Month string        `json:"month"`
	Cells []HeatmapCell `json:"cells"`
}

type ChartInput struct {
	UserID  string
	Section string
	Field   string
	From    string
	To      string
}

type ChartPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type StreakSummary struct {
	Current int `json:"current_streak"`
	Longest int `json:"longest_streak"`
}

// Heatmap computes the daily completion ratio for every day of one month.
// Days without a record render as 0, exactly like days where nothing was
// checked.
func (s *ProgressService) Heatmap(ctx context.Context, userID, monthKey string) (*Heatmap, error) {
	year, month, ok := domain.ParseMonthKey(monthKey)
	if !ok {
		return nil, domain.ErrInvalidMonthKey
	}

	schema, err := s.schemas.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Day 0 of the next month is the last day of this one.
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	from := schedule.DateKey(year, month, 1)
	to := schedule.DateKey(year, month, lastDay)

	records, err := s.days.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*domain.DayRecord, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec
	}

	sec, _ := schema.Section(domain.SectionDailyGoals)
	goals := dailyGoals(sec)

	heatmap := &Heatmap{Month: monthKey, Cells: make([]HeatmapCell, 0, lastDay)}
	for day := 1; day <= lastDay; day++ {
		date := schedule.DateKey(year, month, day)
		rec := byDate[date]

		heatmap.Cells = append(heatmap.Cells, HeatmapCell{
			Date:       date,
			Completion: progress.DailyCompletion(goals, domain.GoalChecks(rec, sec), year, month, day),
		})
	}

	return heatmap, nil
}

// ChartSeries produces one numeric point per day for a single field across
// a date range. Velocity fields are evaluated against each day's snapshot;
// checkboxes chart as 0/1; days without a value carry a nil point so the
// chart can show gaps instead of fake zeros.
func (s *ProgressService) ChartSeries(ctx context.Context, input ChartInput) ([]ChartPoint, error) {
	fromYear, fromMonth, fromDay, ok := schedule.ParseDateKey(input.From)
	if !ok {
		return nil, domain.ErrInvalidDateKey
	}
	toYear, toMonth, toDay, ok := schedule.ParseDateKey(input.To)
	if !ok {
		return nil, domain.ErrInvalidDateKey
	}

	schema, err := s.schemas.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	sec, ok := schema.Section(input.Section)
	if !ok {
		return nil, domain.ErrSectionNotFound
	}

	var field *domain.Field
	for i := range sec.Fields {
		if sec.Fields[i].Name == input.Field {
			field = &sec.Fields[i]
			break
		}
	}
	if field == nil {
		return nil, domain.ErrFieldNotFound
	}

	records, err := s.days.ListByDateRange(ctx, input.UserID, input.From, input.To)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*domain.DayRecord, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec
	}

	var points []ChartPoint
	cursor := time.Date(fromYear, fromMonth, fromDay, 0, 0, 0, 0, time.UTC)
	end := time.Date(toYear, toMonth, toDay, 0, 0, 0, 0, time.UTC)

	for !cursor.After(end) {
		date := schedule.DateKey(cursor.Year(), cursor.Month(), cursor.Day())
		rec := byDate[date]

		point := ChartPoint{Date: date}
		switch field.Type {
		case domain.FieldTypeVelocity:
			if result, ok := calc.Evaluate(field.Calculation, domain.Snapshot(rec, sec)); ok {
				point.Value = &result
			}
		case domain.FieldTypeCheckbox:
			v := 0.0
			if rec != nil {
				if raw, ok := rec.FieldValue(sec.Name, field.Name); ok {
					if checked, _ := raw.(bool); checked {
						v = 1.0
					}
				}
			}
			point.Value = &v
		case domain.FieldTypeTime, domain.FieldTypeNumber:
			if rec != nil {
				if raw, ok := rec.FieldValue(sec.Name, field.Name); ok {
					if n, ok := domain.NumericValue(raw); ok {
						point.Value = &n
					}
				}
			}
		}

		points = append(points, point)
		cursor = cursor.AddDate(0, 0, 1)
	}

	return points, nil
}

// Streaks recomputes the user's perfect-day streaks from the whole history.
// Results are cached briefly; the background worker keeps the persisted
// copy on the user row fresh for sync clients.
func (s *ProgressService) Streaks(ctx context.Context, userID string) (*StreakSummary, error) {
	if entry, ok := s.streaks.Get(userID); ok && time.Since(entry.storedAt) < s.ttl {
		return &StreakSummary{Current: entry.current, Longest: entry.longest}, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	schema, err := s.schemas.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(user.Location())
	today := schedule.DateKey(now.Year(), now.Month(), now.Day())

	current, longest := 0, 0
	if sec, ok := schema.Section(domain.SectionDailyGoals); ok {
		records, err := s.days.ListByDateRange(ctx, userID, "1970-01-01", today)
		if err != nil {
			return nil, err
		}

		goals := dailyGoals(sec)
		var perfect []string
		for _, rec := range records {
			year, month, day, ok := schedule.ParseDateKey(rec.Date)
			if !ok {
				continue
			}
			if progress.DailyCompletion(goals, domain.GoalChecks(rec, sec), year, month, day) == 1.0 {
				perfect = append(perfect, rec.Date)
			}
		}

		current, longest = progress.Streaks(perfect, today)
	}

	s.streaks.Add(userID, streakEntry{current: current, longest: longest, storedAt: time.Now()})

	return &StreakSummary{Current: current, Longest: longest}, nil
}
