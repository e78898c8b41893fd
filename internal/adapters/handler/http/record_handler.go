package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http/middleware"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/services"
)

type RecordHandler struct {
	svc *services.RecordService
}

func NewRecordHandler(svc *services.RecordService) *RecordHandler {
	return &RecordHandler{
		svc: svc,
	}
}

type setValueRequest struct {
	Section string `json:"section" binding:"required"`
	Field   string `json:"field" binding:"required"`
	Value   any    `json:"value"`
	Version int    `json:"version"`
}

type toggleGoalRequest struct {
	Section string `json:"section"`
	Name    string `json:"name" binding:"required"`
	Version int    `json:"version"`
}

type setMonthGoalRequest struct {
	Name    string `json:"name" binding:"required"`
	Done    bool   `json:"done"`
	Version int    `json:"version"`
}

func (h *RecordHandler) RegisterRoutes(router *gin.RouterGroup) {
	days := router.Group("/days")
	{
		days.GET("", h.ListDays)
		days.GET("/:date", h.DayView)
		days.PUT("/:date/values", h.SetValue)
		days.POST("/:date/goals/toggle", h.ToggleGoal)
		days.DELETE("/:date", h.DeleteDay)
	}

	months := router.Group("/months")
	{
		months.GET("/:month", h.MonthView)
		months.PUT("/:month/goals", h.SetMonthGoal)
	}
}

// handleRecordError maps service failures onto HTTP statuses shared by
// every record endpoint.
func handleRecordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordConflict), errors.Is(err, domain.ErrMonthConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "version conflict",
			"message": "Data has been modified elsewhere. Please sync.",
		})
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrMonthNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, domain.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
	case errors.Is(err, domain.ErrFieldNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "field not found"})
	case errors.Is(err, domain.ErrInvalidDateKey),
		errors.Is(err, domain.ErrInvalidMonthKey),
		errors.Is(err, domain.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *RecordHandler) DayView(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	view, err := h.svc.DayView(c.Request.Context(), userID, c.Param("date"))
	if err != nil {
		handleRecordError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *RecordHandler) ListDays(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to query params are required"})
		return
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from format, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to format, expected YYYY-MM-DD"})
		return
	}

	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from cannot be after to"})
		return
	}
	const maxDaysRange = 366
	if to.Sub(from).Hours()/24 > maxDaysRange {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date range too large, max 1 year allowed"})
		return
	}

	records, err := h.svc.ListDays(c.Request.Context(), userID, fromStr, toStr)
	if err != nil {
		handleRecordError(c, err)
		return
	}
	if records == nil {
		records = []*domain.DayRecord{}
	}

	c.JSON(http.StatusOK, records)
}

func (h *RecordHandler) SetValue(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req setValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.SetValue(c.Request.Context(), services.SetValueInput{
		UserID:  userID,
		Date:    c.Param("date"),
		Section: req.Section,
		Field:   req.Field,
		Value:   req.Value,
		Version: req.Version,
	})
	if err != nil {
		handleRecordError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *RecordHandler) ToggleGoal(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req toggleGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checked, ratio, err := h.svc.ToggleGoal(c.Request.Context(), services.ToggleGoalInput{
		UserID:  userID,
		Date:    c.Param("date"),
		Section: req.Section,
		Name:    req.Name,
		Version: req.Version,
	})
	if err != nil {
		handleRecordError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":          checked,
		"completion_ratio": ratio,
	})
}

func (h *RecordHandler) DeleteDay(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	err := h.svc.DeleteDayByDate(c.Request.Context(), userID, c.Param("date"))
	if err != nil {
		handleRecordError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RecordHandler) MonthView(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	view, err := h.svc.MonthView(c.Request.Context(), userID, c.Param("month"))
	if err != nil {
		handleRecordError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *RecordHandler) SetMonthGoal(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req setMonthGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.SetMonthGoal(c.Request.Context(), services.SetMonthGoalInput{
		UserID:  userID,
		Month:   c.Param("month"),
		Name:    req.Name,
		Done:    req.Done,
		Version: req.Version,
	})
	if err != nil {
		handleRecordError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}
