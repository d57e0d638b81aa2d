package handlers

import (
	"net/http"

	"auction-site/pkg/logger"

	"github.com/labstack/echo/v4"
)

type currencyRoutesHandler struct {
	currency CurrencyConverter
	log      logger.Logger
}

func newCurrencyRoutesHandler(outer *echo.Group, svc Services, log logger.Logger) *currencyRoutesHandler {
	h := &currencyRoutesHandler{currency: svc.Currency, log: log}
	outer.GET("/currencies", h.List)
	return h
}

// GET /currencies
func (h *currencyRoutesHandler) List(c echo.Context) error {
	codes, err := h.currency.Currencies()
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reference":  h.currency.Reference(),
		"currencies": codes,
	})
}
