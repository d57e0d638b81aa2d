package handlers

import (
	"net/http"

	"auction-site/internal/api/middleware"
	"auction-site/pkg/logger"

	"github.com/labstack/echo/v4"
)

type notificationRoutesHandler struct {
	notifications NotificationLister
	log           logger.Logger
}

func newNotificationRoutesHandler(outer *echo.Group, svc Services, requireUser echo.MiddlewareFunc,
	log logger.Logger) *notificationRoutesHandler {
	h := &notificationRoutesHandler{notifications: svc.Notifications, log: log}
	outer.GET("/notifications", h.List, requireUser)
	return h
}

// GET /notifications returns the caller's unread notifications and marks
// them read.
func (h *notificationRoutesHandler) List(c echo.Context) error {
	notifications, err := h.notifications.ListForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, notifications)
}
