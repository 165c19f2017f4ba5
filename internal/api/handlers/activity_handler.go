package handlers

import (
	"net/http"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/services"

	"github.com/gin-gonic/gin"
)

// ActivityHandler reads and appends the activity log
type ActivityHandler struct {
	activity *services.ActivityLog
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity *services.ActivityLog) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// LogActionRequest is a manual activity entry
type LogActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// HandleList returns entries newest first, optionally bounded by the
// RFC 3339 from and to query parameters
func (h *ActivityHandler) HandleList(c *gin.Context) {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.activity.List(requestContext(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Activity", entries)
}

// HandleLogAction appends a manual entry
func (h *ActivityHandler) HandleLogAction(c *gin.Context) {
	var req LogActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.activity.Append(requestContext(c), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Action logged", entry)
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.InvalidArgument("%s must be an RFC 3339 timestamp", key)
	}
	t = t.UTC()
	return &t, nil
}

// RegisterRoutes registers the handler's routes
func (h *ActivityHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/activity", h.HandleList)
	router.POST("/activity", h.HandleLogAction)
}
