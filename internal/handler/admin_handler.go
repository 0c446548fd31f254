package handler

import (
	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/middleware"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles user administration requests
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListUsers handles GET /admin/users?page=&limit=&search=&role=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var query dto.ListUsersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := query.Normalize(); !valid {
		response.ValidationError(c, msg)
		return
	}

	users, total, err := h.adminService.ListUsers(c.Request.Context(), &query)
	if err != nil {
		respondError(c, err)
		return
	}

	totalPages := int((total + int64(query.Limit) - 1) / int64(query.Limit))
	response.SuccessWithMeta(c, users, &response.Meta{
		Page:       query.Page,
		Limit:      query.Limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// UpdateRole handles PATCH /admin/users/:id/role
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	var req dto.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	user, err := h.adminService.UpdateRole(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id"), domain.Role(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, user)
}

// DeleteUser handles DELETE /admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.adminService.DeleteUser(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}
