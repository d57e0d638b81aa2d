package handlers

import (
	"net/http"

	"auction-site/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type userRoutesHandler struct {
	users    UserService
	validate *validator.Validate
	log      logger.Logger
}

func newUserRoutesHandler(outer *echo.Group, svc Services, v *validator.Validate, log logger.Logger) *userRoutesHandler {
	h := &userRoutesHandler{users: svc.Users, validate: v, log: log}

	outer.POST("/users", h.Register)
	outer.GET("/users/:id/profile", h.Profile)

	return h
}

type registerInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// POST /users
func (h *userRoutesHandler) Register(c echo.Context) error {
	var input registerInput
	if ok, err := bindAndValidate(c, h.validate, &input); !ok {
		return err
	}

	user, err := h.users.RegisterUser(c.Request().Context(), input.Email)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// GET /users/:id/profile
func (h *userRoutesHandler) Profile(c echo.Context) error {
	profile, err := h.users.Profile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, profile)
}
