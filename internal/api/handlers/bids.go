package handlers

import (
	"net/http"

	"auction-site/internal/api/middleware"
	"auction-site/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type bidRoutesHandler struct {
	bids     BidService
	currency CurrencyConverter
	validate *validator.Validate
	log      logger.Logger
}

func newBidRoutesHandler(outer *echo.Group, svc Services, v *validator.Validate,
	requireUser echo.MiddlewareFunc, log logger.Logger) *bidRoutesHandler {
	h := &bidRoutesHandler{bids: svc.Bids, currency: svc.Currency, validate: v, log: log}

	outer.GET("/items/:id/bids", h.ListBids)
	outer.POST("/items/:id/bids", h.PlaceBid, requireUser)

	return h
}

// Amount is given in Currency, or in the reference currency when Currency
// is empty.
type placeBidInput struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3,alpha"`
}

// GET /items/:id/bids
func (h *bidRoutesHandler) ListBids(c echo.Context) error {
	bids, err := h.bids.ListBids(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if bids == nil {
		return c.JSON(http.StatusOK, []struct{}{})
	}
	return c.JSON(http.StatusOK, bids)
}

// POST /items/:id/bids
func (h *bidRoutesHandler) PlaceBid(c echo.Context) error {
	var input placeBidInput
	if ok, err := bindAndValidate(c, h.validate, &input); !ok {
		return err
	}

	amount, err := toReference(h.currency, input.Amount, input.Currency)
	if err != nil {
		return respondError(c, h.log, err)
	}

	bid, err := h.bids.PlaceBid(c.Request().Context(), c.Param("id"), middleware.UserID(c), amount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, bid)
}
