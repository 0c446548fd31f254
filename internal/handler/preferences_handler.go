package handler

import (
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/middleware"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// PreferencesHandler handles user preference requests
type PreferencesHandler struct {
	preferencesService service.PreferencesService
}

// NewPreferencesHandler creates a new PreferencesHandler
func NewPreferencesHandler(preferencesService service.PreferencesService) *PreferencesHandler {
	return &PreferencesHandler{preferencesService: preferencesService}
}

// Get handles GET /preferences
func (h *PreferencesHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
		return
	}
	response.Success(c, h.preferencesService.GetPreferences(c.Request.Context(), user))
}

// Update handles PATCH /preferences
func (h *PreferencesHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
		return
	}

	var req dto.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	prefs, err := h.preferencesService.UpdatePreferences(c.Request.Context(), user, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, prefs)
}
