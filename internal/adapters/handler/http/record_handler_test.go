package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	adapterHTTP "github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http"
	"github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http/middleware"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/services"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/workers"
)

// getTestWorker builds a recompute worker that is never started, so enqueued
// jobs just sit in its buffer.
func getTestWorker() *workers.RecomputeWorker {
	return workers.NewRecomputeWorker(nil, nil, nil, zap.NewNop())
}

type MockDayStore struct {
	store map[string]*domain.DayRecord
}

func NewMockDayStore() *MockDayStore {
	return &MockDayStore{store: make(map[string]*domain.DayRecord)}
}

func (m *MockDayStore) Create(ctx context.Context, rec *domain.DayRecord) error {
	if rec.Version == 0 {
		rec.Version = 1
	}
	clone := *rec
	m.store[rec.ID] = &clone
	return nil
}

func (m *MockDayStore) Update(ctx context.Context, rec *domain.DayRecord) error {
	stored, ok := m.store[rec.ID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	rec.Version = stored.Version + 1
	rec.UpdatedAt = time.Now().UTC()
	clone := *rec
	m.store[rec.ID] = &clone
	return nil
}

func (m *MockDayStore) Delete(ctx context.Context, id string, userID string) error {
	rec, ok := m.store[id]
	if !ok || rec.UserID != userID || rec.DeletedAt != nil {
		return domain.ErrRecordNotFound
	}
	now := time.Now().UTC()
	rec.DeletedAt = &now
	rec.UpdatedAt = now
	rec.Version++
	return nil
}

func (m *MockDayStore) GetByDate(ctx context.Context, userID, date string) (*domain.DayRecord, error) {
	for _, rec := range m.store {
		if rec.UserID == userID && rec.Date == date && rec.DeletedAt == nil {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MockDayStore) ListByDateRange(ctx context.Context, userID, from, to string) ([]*domain.DayRecord, error) {
	var list []*domain.DayRecord
	for _, rec := range m.store {
		if rec.UserID == userID && rec.DeletedAt == nil && rec.Date >= from && rec.Date <= to {
			clone := *rec
			list = append(list, &clone)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	return list, nil
}

func (m *MockDayStore) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.DayRecord, error) {
	var changes []*domain.DayRecord
	for _, rec := range m.store {
		if rec.UserID == userID && rec.UpdatedAt.After(since) {
			clone := *rec
			changes = append(changes, &clone)
		}
	}
	return changes, nil
}

type MockMonthStore struct {
	store map[string]*domain.MonthRecord
}

func NewMockMonthStore() *MockMonthStore {
	return &MockMonthStore{store: make(map[string]*domain.MonthRecord)}
}

func (m *MockMonthStore) Create(ctx context.Context, rec *domain.MonthRecord) error {
	if rec.Version == 0 {
		rec.Version = 1
	}
	clone := *rec
	m.store[rec.ID] = &clone
	return nil
}

func (m *MockMonthStore) Update(ctx context.Context, rec *domain.MonthRecord) error {
	stored, ok := m.store[rec.ID]
	if !ok {
		return domain.ErrMonthNotFound
	}
	rec.Version = stored.Version + 1
	rec.UpdatedAt = time.Now().UTC()
	clone := *rec
	m.store[rec.ID] = &clone
	return nil
}

func (m *MockMonthStore) GetByMonth(ctx context.Context, userID, month string) (*domain.MonthRecord, error) {
	for _, rec := range m.store {
		if rec.UserID == userID && rec.Month == month && rec.DeletedAt == nil {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, domain.ErrMonthNotFound
}

func (m *MockMonthStore) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.MonthRecord, error) {
	var changes []*domain.MonthRecord
	for _, rec := range m.store {
		if rec.UserID == userID && rec.UpdatedAt.After(since) {
			clone := *rec
			changes = append(changes, &clone)
		}
	}
	return changes, nil
}

func setupRecordRouter() (*gin.Engine, *MockDayStore, *MockMonthStore) {
	gin.SetMode(gin.TestMode)

	days := NewMockDayStore()
	months := NewMockMonthStore()
	schemas := services.NewSchemaService(NewMockSchemaStore(), nil)
	svc := services.NewRecordService(days, months, schemas, getTestWorker())
	handler := adapterHTTP.NewRecordHandler(svc)

	r := gin.New()

	r.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r, days, months
}

func seedDay(t *testing.T, days *MockDayStore, userID, date string) *domain.DayRecord {
	t.Helper()
	rec, err := domain.NewDayRecord(userID, date)
	if err != nil {
		t.Fatalf("failed to build day fixture: %v", err)
	}
	if err := days.Create(context.Background(), rec); err != nil {
		t.Fatalf("failed to store day fixture: %v", err)
	}
	return rec
}

func TestListDays(t *testing.T) {
	t.Run("Success: 200 lists the days inside the range", func(t *testing.T) {
		router, days, _ := setupRecordRouter()

		seedDay(t, days, "user-1", "2026-02-01")
		seedDay(t, days, "user-1", "2026-02-03")
		seedDay(t, days, "user-1", "2026-03-10")

		req, _ := http.NewRequest("GET", "/api/v1/days?from=2026-02-01&to=2026-02-28", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"date":"2026-02-01"`)
		assert.Contains(t, w.Body.String(), `"date":"2026-02-03"`)
		assert.NotContains(t, w.Body.String(), "2026-03-10")
	})

	t.Run("Success: 200 returns an empty list for a quiet range", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/days?from=2026-02-01&to=2026-02-28", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("Fail: 400 when from or to is missing", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/days?from=2026-02-01", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "from and to query params are required")
	})

	t.Run("Fail: 400 for a malformed date", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/days?from=02-01-2026&to=2026-02-28", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid from format")
	})

	t.Run("Fail: 400 when from is after to", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/days?from=2026-03-01&to=2026-02-01", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "from cannot be after to")
	})

	t.Run("Fail: 400 when the range exceeds a year", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/days?from=2025-01-01&to=2026-06-01", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "date range too large")
	})
}

func TestDayView(t *testing.T) {
	t.Run("Success: 200 renders an empty day from the schema", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		// 2026-02-02 is a Monday.
		req, _ := http.NewRequest("GET", "/api/v1/days/2026-02-02", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"date":"2026-02-02"`)
		assert.Contains(t, w.Body.String(), "Running")
		assert.Contains(t, w.Body.String(), `"completion_ratio":0`)
		assert.Contains(t, w.Body.String(), `"version":0`)
	})

	t.Run("Success: 200 computes the pace from stored values", func(t *testing.T) {
		router, days, _ := setupRecordRouter()

		rec, err := domain.NewDayRecord("user-1", "2026-02-02")
		assert.NoError(t, err)
		assert.NoError(t, rec.SetValue("Running", "Running Distance", 10.0))
		assert.NoError(t, rec.SetValue("Running", "Running Time", 60.0))
		assert.NoError(t, days.Create(context.Background(), rec))

		req, _ := http.NewRequest("GET", "/api/v1/days/2026-02-02", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"Pace"`)
		assert.Contains(t, w.Body.String(), `"value":10`)
	})

	t.Run("Fail: 400 for a malformed date", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/days/02-02-2026", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSetDayValue(t *testing.T) {
	t.Run("Success: 200 creates the record on first write", func(t *testing.T) {
		router, days, _ := setupRecordRouter()

		body := `{"section": "Running", "field": "Running Distance", "value": 5.5}`

		req, _ := http.NewRequest("PUT", "/api/v1/days/2026-02-02/values", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"version":1`)
		assert.Len(t, days.store, 1)
	})

	t.Run("Success: 200 updates an existing record and bumps the version", func(t *testing.T) {
		router, days, _ := setupRecordRouter()
		seedDay(t, days, "user-1", "2026-02-02")

		body := `{"section": "Running", "field": "Running Distance", "value": 7.5, "version": 1}`

		req, _ := http.NewRequest("PUT", "/api/v1/days/2026-02-02/values", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"version":2`)
	})

	t.Run("Fail: 409 when the client version is stale", func(t *testing.T) {
		router, days, _ := setupRecordRouter()
		seedDay(t, days, "user-1", "2026-02-02")

		body := `{"section": "Running", "field": "Running Distance", "value": 7.5, "version": 5}`

		req, _ := http.NewRequest("PUT", "/api/v1/days/2026-02-02/values", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "version conflict")
	})

	t.Run("Fail: 404 for a field the schema does not know", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		body := `{"section": "Running", "field": "Ghost Field", "value": 1}`

		req, _ := http.NewRequest("PUT", "/api/v1/days/2026-02-02/values", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Fail: 400 for a non-scalar value", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		body := `{"section": "Running", "field": "Running Distance", "value": {"nested": true}}`

		req, _ := http.NewRequest("PUT", "/api/v1/days/2026-02-02/values", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "scalar")
	})
}

func TestToggleGoal(t *testing.T) {
	t.Run("Success: 200 checks the goal and reports the day ratio", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		// Section omitted on purpose: it must default to Daily Goals.
		body := `{"name": "Meditate"}`

		req, _ := http.NewRequest("POST", "/api/v1/days/2026-02-02/goals/toggle", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Checked bool    `json:"checked"`
			Ratio   float64 `json:"completion_ratio"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Checked)
		// Monday schedules Meditate, Read and Gym; one of three is done.
		assert.InDelta(t, 1.0/3.0, resp.Ratio, 1e-9)
	})

	t.Run("Success: toggling twice unchecks the goal", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		body := `{"name": "Meditate"}`

		req, _ := http.NewRequest("POST", "/api/v1/days/2026-02-02/goals/toggle", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		req, _ = http.NewRequest("POST", "/api/v1/days/2026-02-02/goals/toggle", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"checked":false`)
	})

	t.Run("Fail: 404 for a goal the schema does not know", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		body := `{"name": "Ghost Goal"}`

		req, _ := http.NewRequest("POST", "/api/v1/days/2026-02-02/goals/toggle", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Fail: 400 when the goal name is missing", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("POST", "/api/v1/days/2026-02-02/goals/toggle", bytes.NewBufferString(`{}`))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteDayRecord(t *testing.T) {
	t.Run("Success: 204 soft-deletes and keeps the tombstone", func(t *testing.T) {
		router, days, _ := setupRecordRouter()
		rec := seedDay(t, days, "user-1", "2026-02-02")

		req, _ := http.NewRequest("DELETE", "/api/v1/days/2026-02-02", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NotNil(t, days.store[rec.ID].DeletedAt, "the row must survive as a tombstone")
	})

	t.Run("Fail: 404 when the day has no record", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("DELETE", "/api/v1/days/2026-02-02", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Fail: 400 for a malformed date", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("DELETE", "/api/v1/days/not-a-date", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMonthView(t *testing.T) {
	t.Run("Success: 200 renders unchecked goals for an empty month", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/months/2026-02", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Save Money")
		assert.Contains(t, w.Body.String(), `"completion_ratio":0`)
	})

	t.Run("Fail: 400 for a malformed month", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		req, _ := http.NewRequest("GET", "/api/v1/months/Feb-2026", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSetMonthGoal(t *testing.T) {
	t.Run("Success: 200 checks a monthly goal on first write", func(t *testing.T) {
		router, _, months := setupRecordRouter()

		body := `{"name": "Save Money", "done": true}`

		req, _ := http.NewRequest("PUT", "/api/v1/months/2026-02/goals", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Save Money":true`)
		assert.Len(t, months.store, 1)
	})

	t.Run("Fail: 409 when the client version is stale", func(t *testing.T) {
		router, _, months := setupRecordRouter()

		rec, err := domain.NewMonthRecord("user-1", "2026-02")
		assert.NoError(t, err)
		assert.NoError(t, months.Create(context.Background(), rec))

		body := `{"name": "Save Money", "done": true, "version": 9}`

		req, _ := http.NewRequest("PUT", "/api/v1/months/2026-02/goals", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Fail: 400 for a malformed month", func(t *testing.T) {
		router, _, _ := setupRecordRouter()

		body := `{"name": "Save Money", "done": true}`

		req, _ := http.NewRequest("PUT", "/api/v1/months/2026-99/goals", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
