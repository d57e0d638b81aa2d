package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"auction-site/internal/api/middleware"
	"auction-site/internal/currency"
	"auction-site/internal/domain"
	"auction-site/internal/services"
	"auction-site/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type itemRoutesHandler struct {
	items    ItemService
	pricing  PriceQuoter
	currency CurrencyConverter
	validate *validator.Validate
	log      logger.Logger
}

func newItemRoutesHandler(outer *echo.Group, svc Services, v *validator.Validate,
	requireUser echo.MiddlewareFunc, log logger.Logger) *itemRoutesHandler {
	h := &itemRoutesHandler{
		items:    svc.Items,
		pricing:  svc.Pricing,
		currency: svc.Currency,
		validate: v,
		log:      log,
	}

	outer.GET("/items", h.ListItems)
	outer.GET("/items/:id", h.GetItem)
	outer.POST("/items", h.CreateItem, requireUser)
	outer.PUT("/items/:id", h.UpdateItem, requireUser)
	outer.DELETE("/items/:id", h.DeleteItem, requireUser)

	return h
}

type itemResponse struct {
	*domain.Item
	CurrentPrice int64  `json:"current_price"`
	DisplayPrice string `json:"display_price,omitempty"`
}

// StartingBid is given in Currency, or in the reference currency when
// Currency is empty.
type createItemInput struct {
	Title       string     `json:"title" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=2000"`
	StartingBid float64    `json:"starting_bid" validate:"required,gt=0"`
	Currency    string     `json:"currency" validate:"omitempty,len=3,alpha"`
	ClosesAt    *time.Time `json:"closes_at"`
}

type updateItemInput struct {
	Title       *string    `json:"title" validate:"omitempty,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	ClosesAt    *time.Time `json:"closes_at"`
}

// GET /items?page=&currency=
func (h *itemRoutesHandler) ListItems(c echo.Context) error {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, errorResponse{Reason: "page should be a positive integer"})
		}
		page = n
	}

	ctx := c.Request().Context()
	items, err := h.items.ListOpenItems(ctx, page)
	if err != nil {
		return respondError(c, h.log, err)
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp, err := h.toResponse(ctx, item, c.QueryParam("currency"))
		if err != nil {
			return respondError(c, h.log, err)
		}
		out = append(out, resp)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"page":  page,
		"items": out,
	})
}

// GET /items/:id?currency=
func (h *itemRoutesHandler) GetItem(c echo.Context) error {
	ctx := c.Request().Context()
	item, err := h.items.GetItem(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}

	resp, err := h.toResponse(ctx, item, c.QueryParam("currency"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// POST /items
func (h *itemRoutesHandler) CreateItem(c echo.Context) error {
	var input createItemInput
	if ok, err := bindAndValidate(c, h.validate, &input); !ok {
		return err
	}

	startingBid, err := toReference(h.currency, input.StartingBid, input.Currency)
	if err != nil {
		return respondError(c, h.log, err)
	}

	ctx := c.Request().Context()
	item, err := h.items.CreateItem(ctx, middleware.UserID(c), services.NewItem{
		Title:       input.Title,
		Description: input.Description,
		StartingBid: startingBid,
		ClosesAt:    input.ClosesAt,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	resp, err := h.toResponse(ctx, item, "")
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// PUT /items/:id
func (h *itemRoutesHandler) UpdateItem(c echo.Context) error {
	var input updateItemInput
	if ok, err := bindAndValidate(c, h.validate, &input); !ok {
		return err
	}

	ctx := c.Request().Context()
	item, err := h.items.UpdateItem(ctx, middleware.UserID(c), c.Param("id"), services.ItemChanges{
		Title:       input.Title,
		Description: input.Description,
		ClosesAt:    input.ClosesAt,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	resp, err := h.toResponse(ctx, item, "")
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DELETE /items/:id
func (h *itemRoutesHandler) DeleteItem(c echo.Context) error {
	if err := h.items.DeleteItem(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *itemRoutesHandler) toResponse(ctx context.Context, item *domain.Item, code string) (itemResponse, error) {
	resp := itemResponse{Item: item, CurrentPrice: h.pricing.CurrentPrice(ctx, item)}
	if code == "" {
		return resp, nil
	}

	converted, err := h.currency.Convert(resp.CurrentPrice, code)
	if err != nil {
		return itemResponse{}, err
	}
	resp.DisplayPrice = currency.Format(converted, code)
	return resp, nil
}
