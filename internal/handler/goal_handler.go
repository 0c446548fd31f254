package handler

import (
	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/middleware"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// GoalHandler handles goal HTTP requests
type GoalHandler struct {
	goalService service.GoalService
}

// NewGoalHandler creates a new GoalHandler
func NewGoalHandler(goalService service.GoalService) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

// Create handles POST /goals
func (h *GoalHandler) Create(c *gin.Context) {
	var req dto.CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	goal, err := h.goalService.CreateGoal(c.Request.Context(), c.GetString(middleware.ContextUserID), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, goal)
}

// List handles GET /goals?status=
func (h *GoalHandler) List(c *gin.Context) {
	var status *domain.GoalStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.GoalStatus(raw)
		if !s.IsValid() {
			response.ValidationError(c, "status must be one of: active, completed")
			return
		}
		status = &s
	}

	goals, err := h.goalService.ListGoals(c.Request.Context(), c.GetString(middleware.ContextUserID), status)
	if err != nil {
		respondError(c, err)
		return
	}
	if goals == nil {
		goals = []*domain.Goal{}
	}
	response.Success(c, goals)
}

// Get handles GET /goals/:id
func (h *GoalHandler) Get(c *gin.Context) {
	goal, err := h.goalService.GetGoal(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, goal)
}

// Update handles PUT /goals/:id
func (h *GoalHandler) Update(c *gin.Context) {
	var req dto.UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	goal, err := h.goalService.UpdateGoal(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, goal)
}

// Delete handles DELETE /goals/:id
func (h *GoalHandler) Delete(c *gin.Context) {
	if err := h.goalService.DeleteGoal(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}
