package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	adapterHTTP "github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http"
	"github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http/middleware"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/services"
	"github.com/kaizen-app/kaizen-sync-engine/internal/observability"
)

type syncResponse struct {
	SchemaChanges []json.RawMessage `json:"schema_changes"`
	DayChanges    []json.RawMessage `json:"day_changes"`
	MonthChanges  []json.RawMessage `json:"month_changes"`
	Timestamp     time.Time         `json:"timestamp"`
}

func setupSyncRouter() (*gin.Engine, *MockSchemaStore, *MockDayStore, *MockMonthStore, *observability.Metrics) {
	gin.SetMode(gin.TestMode)

	schemaStore := NewMockSchemaStore()
	days := NewMockDayStore()
	months := NewMockMonthStore()
	metrics := observability.NewMetrics()

	schemas := services.NewSchemaService(schemaStore, nil)
	records := services.NewRecordService(days, months, schemas, getTestWorker())
	handler := adapterHTTP.NewSyncHandler(schemas, records, metrics)

	r := gin.New()

	r.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r, schemaStore, days, months, metrics
}

func TestSync(t *testing.T) {
	t.Run("Success: first sync without last_sync returns everything", func(t *testing.T) {
		router, schemaStore, days, months, metrics := setupSyncRouter()
		ctx := context.Background()

		schema, err := domain.NewSchema("user-1", domain.DefaultSections())
		assert.NoError(t, err)
		assert.NoError(t, schemaStore.Create(ctx, schema))

		rec, err := domain.NewDayRecord("user-1", "2026-02-02")
		assert.NoError(t, err)
		assert.NoError(t, days.Create(ctx, rec))

		monthRec, err := domain.NewMonthRecord("user-1", "2026-02")
		assert.NoError(t, err)
		assert.NoError(t, months.Create(ctx, monthRec))

		req, _ := http.NewRequest("GET", "/api/v1/sync", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp syncResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.SchemaChanges, 1)
		assert.Len(t, resp.DayChanges, 1)
		assert.Len(t, resp.MonthChanges, 1)
		assert.False(t, resp.Timestamp.IsZero(), "the response must hand back the next checkpoint")

		assert.Equal(t, 3, testutil.CollectAndCount(metrics.SyncBatchSize), "one batch size sample per collection")
	})

	t.Run("Success: changes before the checkpoint are not re-sent", func(t *testing.T) {
		router, _, days, _, _ := setupSyncRouter()
		ctx := context.Background()

		recOld, err := domain.NewDayRecord("user-1", "2026-02-01")
		assert.NoError(t, err)
		recOld.UpdatedAt = time.Now().UTC().Add(-24 * time.Hour)
		assert.NoError(t, days.Create(ctx, recOld))

		recNew, err := domain.NewDayRecord("user-1", "2026-02-02")
		assert.NoError(t, err)
		assert.NoError(t, days.Create(ctx, recNew))

		since := time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339)

		req, _ := http.NewRequest("GET", "/api/v1/sync?last_sync="+url.QueryEscape(since), nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), recNew.ID)
		assert.NotContains(t, w.Body.String(), recOld.ID)
	})

	t.Run("Success: tombstones ride the delta feed", func(t *testing.T) {
		router, _, days, _, _ := setupSyncRouter()
		ctx := context.Background()

		rec, err := domain.NewDayRecord("user-1", "2026-02-02")
		assert.NoError(t, err)
		assert.NoError(t, days.Create(ctx, rec))

		since := time.Now().UTC().Format(time.RFC3339)
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, days.Delete(ctx, rec.ID, "user-1"))

		req, _ := http.NewRequest("GET", "/api/v1/sync?last_sync="+url.QueryEscape(since), nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp syncResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		if assert.Len(t, resp.DayChanges, 1) {
			assert.Contains(t, string(resp.DayChanges[0]), "deleted_at")
		}
	})

	t.Run("Success: another user's changes never leak", func(t *testing.T) {
		router, _, days, _, _ := setupSyncRouter()
		ctx := context.Background()

		rec, err := domain.NewDayRecord("user-2", "2026-02-02")
		assert.NoError(t, err)
		assert.NoError(t, days.Create(ctx, rec))

		req, _ := http.NewRequest("GET", "/api/v1/sync", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), rec.ID)
	})

	t.Run("Fail: 400 for a malformed last_sync", func(t *testing.T) {
		router, _, _, _, _ := setupSyncRouter()

		req, _ := http.NewRequest("GET", "/api/v1/sync?last_sync=yesterday", nil)
		req.Header.Set("X-User-ID", "user-1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "RFC3339")
	})
}
