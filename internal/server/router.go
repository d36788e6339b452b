// Package server exposes the backend store over the JSON API consumed by the
// remote client.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/store"
)

const subjectContextKey = "unipilot_subject"

var (
	errMissingStore         = errors.New("store dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenValidator resolves a bearer token to its subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Resource is the per-kind persistence surface the routes need.
type Resource[E any] interface {
	List(ctx context.Context, filter entities.Filter) ([]E, error)
	Get(ctx context.Context, id int64) (E, error)
	Create(ctx context.Context, entity E) (E, error)
	Update(ctx context.Context, entity E, field, value string) error
	Delete(ctx context.Context, entity E) error
}

type Dependencies struct {
	Store        *store.Store
	TokenManager TokenValidator
	Logger       *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		tokens: deps.TokenManager,
		store:  deps.Store,
		logger: logger,
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	registerResource[entities.Course](protected, "/courses", handler, deps.Store.Courses())
	registerResource[entities.Assignment](protected, "/assignments", handler, deps.Store.Assignments())
	registerResource[entities.Document](protected, "/documents", handler, deps.Store.Documents())
	registerResource[entities.Note](protected, "/notes", handler, deps.Store.Notes())
	protected.GET("/storage", handler.handleStorage)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	tokens TokenValidator
	store  *store.Store
	logger *zap.Logger
}

type listResponsePayload[E any] struct {
	Items []E `json:"items"`
}

type updateRequestPayload struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// registerResource mounts list, create, update, and delete routes for one kind.
func registerResource[E any](group *gin.RouterGroup, path string, h *httpHandler, resource Resource[E]) {
	group.GET(path, func(c *gin.Context) {
		filter, err := parseFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
			return
		}
		items, err := resource.List(c.Request.Context(), filter)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, listResponsePayload[E]{Items: items})
	})

	group.POST(path, func(c *gin.Context) {
		var entity E
		if err := c.ShouldBindJSON(&entity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		created, err := resource.Create(c.Request.Context(), entity)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	group.PATCH(path+"/:id", func(c *gin.Context) {
		var request updateRequestPayload
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		entity, ok := loadEntity(c, h, resource)
		if !ok {
			return
		}
		if err := resource.Update(c.Request.Context(), entity, request.Field, request.Value); err != nil {
			h.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	group.DELETE(path+"/:id", func(c *gin.Context) {
		entity, ok := loadEntity(c, h, resource)
		if !ok {
			return
		}
		if err := resource.Delete(c.Request.Context(), entity); err != nil {
			h.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// loadEntity resolves the :id path parameter to a stored record.
func loadEntity[E any](c *gin.Context, h *httpHandler, resource Resource[E]) (E, bool) {
	var zero E
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return zero, false
	}
	entity, err := resource.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return zero, false
	}
	return entity, true
}

func (h *httpHandler) handleStorage(c *gin.Context) {
	info, err := h.store.Storage(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func parseFilter(c *gin.Context) (entities.Filter, error) {
	var filter entities.Filter
	if raw := strings.TrimSpace(c.Query("assignment_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return entities.Filter{}, errors.New("invalid assignment id")
		}
		filter.AssignmentID = id
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		documentType := entities.DocumentType(raw)
		if !documentType.Known() {
			return entities.Filter{}, errors.New("unknown document type")
		}
		filter.DocumentType = documentType
	}
	return filter, nil
}

// writeError maps store failures onto HTTP statuses. The body carries the
// store's error code.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	code := "internal_error"
	var serviceErr *store.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrUnknownField),
		errors.Is(err, store.ErrInvalidValue),
		errors.Is(err, store.ErrInvalidRecord):
		status = http.StatusBadRequest
	case errors.Is(err, entities.ErrFileTooLarge),
		errors.Is(err, entities.ErrAssignmentFull),
		errors.Is(err, entities.ErrQuotaExceeded):
		status = http.StatusRequestEntityTooLarge
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}
