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

type ProgressHandler struct {
	svc *services.ProgressService
}

func NewProgressHandler(svc *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

func (h *ProgressHandler) RegisterRoutes(r *gin.RouterGroup) {
	progress := r.Group("/progress")
	{
		progress.GET("/heatmap", h.Heatmap)
		progress.GET("/chart", h.Chart)
		progress.GET("/streaks", h.Streaks)
	}
}

func (h *ProgressHandler) Heatmap(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	month := c.Query("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}

	heatmap, err := h.svc.Heatmap(c.Request.Context(), userID, month)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMonthKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month format, expected YYYY-MM"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, heatmap)
}

func (h *ProgressHandler) Chart(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	section := c.Query("section")
	field := c.Query("field")
	if section == "" || field == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "section and field query params are required"})
		return
	}

	toStr := c.Query("to")
	fromStr := c.Query("from")

	var to, from time.Time
	var err error

	if toStr == "" {
		to = time.Now().UTC()
		toStr = to.Format("2006-01-02")
	} else {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to format, expected YYYY-MM-DD"})
			return
		}
	}

	if fromStr == "" {
		from = to.AddDate(0, 0, -29)
		fromStr = from.Format("2006-01-02")
	} else {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from format, expected YYYY-MM-DD"})
			return
		}
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

	points, err := h.svc.ChartSeries(c.Request.Context(), services.ChartInput{
		UserID:  userID,
		Section: section,
		Field:   field,
		From:    fromStr,
		To:      toStr,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidDateKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrSectionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
		case errors.Is(err, domain.ErrFieldNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "field not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"section": section,
		"field":   field,
		"points":  points,
	})
}

func (h *ProgressHandler) Streaks(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	streaks, err := h.svc.Streaks(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute streaks"})
		return
	}

	c.JSON(http.StatusOK, streaks)
}
