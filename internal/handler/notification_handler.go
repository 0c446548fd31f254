package handler

import (
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/middleware"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// NotificationHandler handles push subscription and test notification requests
type NotificationHandler struct {
	notificationService service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// Subscribe handles POST /notifications/subscribe
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	var req dto.PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	sub, err := h.notificationService.Subscribe(c.Request.Context(), c.GetString(middleware.ContextUserID), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, sub)
}

// GetSubscription handles GET /notifications/subscription; data is null when not subscribed
func (h *NotificationHandler) GetSubscription(c *gin.Context) {
	sub, err := h.notificationService.GetSubscription(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, sub)
}

// Unsubscribe handles DELETE /notifications/unsubscribe
func (h *NotificationHandler) Unsubscribe(c *gin.Context) {
	if err := h.notificationService.Unsubscribe(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.MessageResponse{Message: "Successfully unsubscribed from notifications"})
}

// SendTest handles POST /notifications/send-test
func (h *NotificationHandler) SendTest(c *gin.Context) {
	if err := h.notificationService.SendTest(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.MessageResponse{Message: "Test notification sent successfully"})
}

// TestMorningReminder handles POST /notifications/test-morning-reminder
func (h *NotificationHandler) TestMorningReminder(c *gin.Context) {
	h.sendTestReminder(c, "morning", "Test morning reminder sent successfully")
}

// TestEveningReminder handles POST /notifications/test-evening-reminder
func (h *NotificationHandler) TestEveningReminder(c *gin.Context) {
	h.sendTestReminder(c, "evening", "Test evening reminder sent successfully")
}

func (h *NotificationHandler) sendTestReminder(c *gin.Context, kind, message string) {
	if err := h.notificationService.SendTestReminder(c.Request.Context(), c.GetString(middleware.ContextUserID), kind); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.MessageResponse{Message: message})
}
