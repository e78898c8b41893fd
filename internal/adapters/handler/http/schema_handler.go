package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http/middleware"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/services"
)

type SchemaHandler struct {
	svc *services.SchemaService
}

func NewSchemaHandler(svc *services.SchemaService) *SchemaHandler {
	return &SchemaHandler{
		svc: svc,
	}
}

type saveSchemaRequest struct {
	Sections []domain.Section `json:"sections" binding:"required"`
	Version  int              `json:"version"`
}

func (h *SchemaHandler) RegisterRoutes(router *gin.RouterGroup) {
	schema := router.Group("/schema")
	{
		schema.GET("", h.Get)
		schema.PUT("", h.Save)
		schema.GET("/field-info", h.FieldInfo)
	}
}

func (h *SchemaHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	schema, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, schema)
}

func (h *SchemaHandler) Save(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req saveSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schema, err := h.svc.Save(c.Request.Context(), services.SaveSchemaInput{
		UserID:   userID,
		Sections: req.Sections,
		Version:  req.Version,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSchemaConflict):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "version conflict",
				"message": "Layout has been modified elsewhere. Please sync.",
			})
		case domain.IsLayoutError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, schema)
}

func (h *SchemaHandler) FieldInfo(c *gin.Context) {
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

	info, err := h.svc.FieldInfo(c.Request.Context(), userID, section, field)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSectionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
		case errors.Is(err, domain.ErrFieldNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "field not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, info)
}
