package workers

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/progress"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
)

// streakEpoch is the lower bound when scanning a user's history. Date keys
// compare lexicographically, so this covers every record ever written.
const streakEpoch = "1970-01-01"

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateStreaks(ctx context.Context, id string, current, longest int) error
}

type RecordRepository interface {
	ListByDateRange(ctx context.Context, userID, from, to string) ([]*domain.DayRecord, error)
}

type SchemaProvider interface {
	Get(ctx context.Context, userID string) (*domain.Schema, error)
}

type RecomputeJob struct {
	UserID string
}

// RecomputeWorker refreshes a user's streak counters in the background after
// every write that can change a day's completion ratio. Jobs are cheap and
// idempotent, so dropping one under load only delays the refresh until the
// user's next write.
type RecomputeWorker struct {
	users   UserRepository
	records RecordRepository
	schemas SchemaProvider
	logger  *zap.Logger
	jobs    chan RecomputeJob

	processed atomic.Uint64
	dropped   atomic.Uint64
}

func NewRecomputeWorker(users UserRepository, records RecordRepository, schemas SchemaProvider, logger *zap.Logger) *RecomputeWorker {
	return &RecomputeWorker{
		users:   users,
		records: records,
		schemas: schemas,
		logger:  logger,
		jobs:    make(chan RecomputeJob, 100),
	}
}

func (w *RecomputeWorker) Start(ctx context.Context) {
	go func() {
		w.logger.Info("recompute worker started")
		for {
			select {
			case job := <-w.jobs:
				w.processJob(ctx, job)
				w.processed.Add(1)
			case <-ctx.Done():
				w.logger.Info("recompute worker shutting down")
				return
			}
		}
	}()
}

func (w *RecomputeWorker) Enqueue(userID string) {
	select {
	case w.jobs <- RecomputeJob{UserID: userID}:
	default:
		w.dropped.Add(1)
		w.logger.Warn("recompute queue full, dropping job", zap.String("user_id", userID))
	}
}

// QueueDepth reports how many jobs are waiting in the buffer.
func (w *RecomputeWorker) QueueDepth() int { return len(w.jobs) }

// Processed reports how many jobs the worker has handled since start.
func (w *RecomputeWorker) Processed() uint64 { return w.processed.Load() }

// Dropped reports how many jobs were discarded on a full buffer.
func (w *RecomputeWorker) Dropped() uint64 { return w.dropped.Load() }

func (w *RecomputeWorker) processJob(ctx context.Context, job RecomputeJob) {
	user, err := w.users.GetByID(ctx, job.UserID)
	if err != nil {
		w.logger.Warn("recompute: fetch user failed", zap.String("user_id", job.UserID), zap.Error(err))
		return
	}

	schema, err := w.schemas.Get(ctx, job.UserID)
	if err != nil {
		w.logger.Warn("recompute: fetch schema failed", zap.String("user_id", job.UserID), zap.Error(err))
		return
	}

	now := time.Now().In(user.Location())
	today := schedule.DateKey(now.Year(), now.Month(), now.Day())

	current, longest := 0, 0
	if sec, ok := schema.Section(domain.SectionDailyGoals); ok {
		records, err := w.records.ListByDateRange(ctx, job.UserID, streakEpoch, today)
		if err != nil {
			w.logger.Warn("recompute: list records failed", zap.String("user_id", job.UserID), zap.Error(err))
			return
		}

		goals := make([]progress.Goal, 0, len(sec.Fields))
		for _, f := range sec.Fields {
			if f.Type == domain.FieldTypeCheckbox {
				goals = append(goals, progress.Goal{Name: f.Name, Schedule: f.Schedule})
			}
		}

		var perfect []string
		for _, rec := range records {
			year, month, day, ok := schedule.ParseDateKey(rec.Date)
			if !ok {
				continue
			}
			checks := domain.GoalChecks(rec, sec)
			if progress.DailyCompletion(goals, checks, year, month, day) == 1.0 {
				perfect = append(perfect, rec.Date)
			}
		}

		current, longest = progress.Streaks(perfect, today)
	}

	if user.CurrentStreak != current || user.LongestStreak != longest {
		if err := w.users.UpdateStreaks(ctx, user.ID, current, longest); err != nil {
			w.logger.Error("recompute: update streaks failed", zap.String("user_id", user.ID), zap.Error(err))
			return
		}
		w.logger.Info("streaks updated",
			zap.String("user_id", user.ID),
			zap.Int("current", current),
			zap.Int("longest", longest),
		)
	}
}
