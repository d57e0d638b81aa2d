package handlers

import (
	"auction-site/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// SetupRoutes mounts the REST API on api, normally the /api/v1 group.
// requireUser guards the routes that act on behalf of a caller.
func SetupRoutes(api *echo.Group, svc Services, requireUser echo.MiddlewareFunc, log logger.Logger) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	newUserRoutesHandler(api, svc, validate, log)
	newItemRoutesHandler(api, svc, validate, requireUser, log)
	newBidRoutesHandler(api, svc, validate, requireUser, log)
	newNotificationRoutesHandler(api, svc, requireUser, log)
	newCurrencyRoutesHandler(api, svc, log)
}
