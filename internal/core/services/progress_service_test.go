package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/services"
)

func newProgressService(t *testing.T) (*services.ProgressService, *MockDayRepo, *MockUserStore) {
	t.Helper()

	days := NewMockDayRepo()
	users := NewMockUserStore()
	schemas := services.NewSchemaService(NewMockSchemaRepo(), nil)

	user, err := domain.NewUser("user-1", "progress@kaizen.app")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), user))

	return services.NewProgressService(days, users, schemas), days, users
}

// checkedDay stores a day record with the given daily goals ticked.
func checkedDay(t *testing.T, days *MockDayRepo, userID, date string, goals ...string) {
	t.Helper()

	rec, err := domain.NewDayRecord(userID, date)
	require.NoError(t, err)
	for _, g := range goals {
		_, err := rec.ToggleGoal(domain.SectionDailyGoals, g)
		require.NoError(t, err)
	}
	require.NoError(t, days.Create(context.Background(), rec))
}

func TestProgressService_Heatmap(t *testing.T) {
	ctx := context.Background()

	t.Run("Success: One cell per calendar day with scheduled denominators", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		// Monday: Meditate, Read and Gym all active.
		checkedDay(t, days, "user-1", "2026-02-02", "Meditate", "Read", "Gym")
		// Tuesday: only Meditate and Read are active; one of two checked.
		checkedDay(t, days, "user-1", "2026-02-03", "Meditate")

		heatmap, err := svc.Heatmap(ctx, "user-1", "2026-02")

		require.NoError(t, err)
		assert.Equal(t, "2026-02", heatmap.Month)
		require.Len(t, heatmap.Cells, 28)

		byDate := make(map[string]float64, len(heatmap.Cells))
		for _, cell := range heatmap.Cells {
			byDate[cell.Date] = cell.Completion
		}

		assert.Equal(t, "2026-02-01", heatmap.Cells[0].Date)
		assert.Equal(t, "2026-02-28", heatmap.Cells[27].Date)
		assert.Equal(t, 1.0, byDate["2026-02-02"])
		assert.Equal(t, 0.5, byDate["2026-02-03"])
		assert.Equal(t, 0.0, byDate["2026-02-10"], "days without a record render as zero")
	})

	t.Run("Success: Leap month gets 29 cells", func(t *testing.T) {
		svc, _, _ := newProgressService(t)

		heatmap, err := svc.Heatmap(ctx, "user-1", "2028-02")

		require.NoError(t, err)
		assert.Len(t, heatmap.Cells, 29)
	})

	t.Run("Fail: Malformed month key", func(t *testing.T) {
		svc, _, _ := newProgressService(t)

		_, err := svc.Heatmap(ctx, "user-1", "February")

		assert.ErrorIs(t, err, domain.ErrInvalidMonthKey)
	})
}

func TestProgressService_ChartSeries(t *testing.T) {
	ctx := context.Background()

	storeValue := func(t *testing.T, days *MockDayRepo, date, section, field string, value any) {
		t.Helper()
		rec, err := days.GetByDate(ctx, "user-1", date)
		if err != nil {
			rec, err = domain.NewDayRecord("user-1", date)
			require.NoError(t, err)
			require.NoError(t, rec.SetValue(section, field, value))
			require.NoError(t, days.Create(ctx, rec))
			return
		}
		require.NoError(t, rec.SetValue(section, field, value))
		require.NoError(t, days.Update(ctx, rec))
	}

	t.Run("Success: Numeric series keeps gaps as nil points", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		storeValue(t, days, "2026-02-02", "Running", "Running Distance", 10.0)
		storeValue(t, days, "2026-02-04", "Running", "Running Distance", 12.0)

		points, err := svc.ChartSeries(ctx, services.ChartInput{
			UserID: "user-1", Section: "Running", Field: "Running Distance",
			From: "2026-02-01", To: "2026-02-05",
		})

		require.NoError(t, err)
		require.Len(t, points, 5)
		assert.Nil(t, points[0].Value)
		require.NotNil(t, points[1].Value)
		assert.Equal(t, 10.0, *points[1].Value)
		assert.Nil(t, points[2].Value)
		require.NotNil(t, points[3].Value)
		assert.Equal(t, 12.0, *points[3].Value)
		assert.Nil(t, points[4].Value)
	})

	t.Run("Success: Velocity series evaluates per day", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		storeValue(t, days, "2026-02-02", "Running", "Running Distance", 10.0)
		storeValue(t, days, "2026-02-02", "Running", "Running Time", 60.0)
		// Distance alone cannot feed the formula.
		storeValue(t, days, "2026-02-03", "Running", "Running Distance", 8.0)

		points, err := svc.ChartSeries(ctx, services.ChartInput{
			UserID: "user-1", Section: "Running", Field: "Pace",
			From: "2026-02-02", To: "2026-02-03",
		})

		require.NoError(t, err)
		require.Len(t, points, 2)
		require.NotNil(t, points[0].Value)
		assert.Equal(t, 10.0, *points[0].Value)
		assert.Nil(t, points[1].Value)
	})

	t.Run("Success: Checkbox series charts as zeroes and ones", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		checkedDay(t, days, "user-1", "2026-02-02", "Meditate")

		points, err := svc.ChartSeries(ctx, services.ChartInput{
			UserID: "user-1", Section: domain.SectionDailyGoals, Field: "Meditate",
			From: "2026-02-01", To: "2026-02-02",
		})

		require.NoError(t, err)
		require.Len(t, points, 2)
		require.NotNil(t, points[0].Value)
		assert.Equal(t, 0.0, *points[0].Value)
		require.NotNil(t, points[1].Value)
		assert.Equal(t, 1.0, *points[1].Value)
	})

	t.Run("Fail: Unknown section and field", func(t *testing.T) {
		svc, _, _ := newProgressService(t)

		_, err := svc.ChartSeries(ctx, services.ChartInput{
			UserID: "user-1", Section: "Ghost", Field: "Pace",
			From: "2026-02-01", To: "2026-02-02",
		})
		assert.ErrorIs(t, err, domain.ErrSectionNotFound)

		_, err = svc.ChartSeries(ctx, services.ChartInput{
			UserID: "user-1", Section: "Running", Field: "Ghost",
			From: "2026-02-01", To: "2026-02-02",
		})
		assert.ErrorIs(t, err, domain.ErrFieldNotFound)
	})

	t.Run("Fail: Malformed range bounds", func(t *testing.T) {
		svc, _, _ := newProgressService(t)

		_, err := svc.ChartSeries(ctx, services.ChartInput{
			UserID: "user-1", Section: "Running", Field: "Pace",
			From: "last week", To: "2026-02-02",
		})

		assert.ErrorIs(t, err, domain.ErrInvalidDateKey)
	})
}

func TestProgressService_Streaks(t *testing.T) {
	ctx := context.Background()

	dateAgo := func(daysBack int) string {
		d := time.Now().UTC().AddDate(0, 0, -daysBack)
		return schedule.DateKey(d.Year(), d.Month(), d.Day())
	}

	// Checking every goal makes any weekday perfect regardless of which
	// goals its schedule activates.
	allGoals := []string{"Meditate", "Read", "Gym"}

	t.Run("Success: Counts current and longest runs", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		checkedDay(t, days, "user-1", dateAgo(0), allGoals...)
		checkedDay(t, days, "user-1", dateAgo(1), allGoals...)

		checkedDay(t, days, "user-1", dateAgo(4), allGoals...)
		checkedDay(t, days, "user-1", dateAgo(5), allGoals...)
		checkedDay(t, days, "user-1", dateAgo(6), allGoals...)

		summary, err := svc.Streaks(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 2, summary.Current)
		assert.Equal(t, 3, summary.Longest)
	})

	t.Run("Success: Imperfect days break the run", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		checkedDay(t, days, "user-1", dateAgo(0), allGoals...)
		// Yesterday only Meditate was done.
		checkedDay(t, days, "user-1", dateAgo(1), "Meditate")
		checkedDay(t, days, "user-1", dateAgo(2), allGoals...)

		summary, err := svc.Streaks(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 1, summary.Current)
		assert.Equal(t, 1, summary.Longest)
	})

	t.Run("Success: Cached summary survives store churn", func(t *testing.T) {
		svc, days, _ := newProgressService(t)

		checkedDay(t, days, "user-1", dateAgo(0), allGoals...)

		first, err := svc.Streaks(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, first.Current)

		days.store = make(map[string]*domain.DayRecord)

		second, err := svc.Streaks(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, first.Current, second.Current)
		assert.Equal(t, first.Longest, second.Longest)
	})

	t.Run("Fail: Unknown user", func(t *testing.T) {
		svc, _, _ := newProgressService(t)

		_, err := svc.Streaks(ctx, "ghost-user")

		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}
