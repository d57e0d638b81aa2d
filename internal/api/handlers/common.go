package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"auction-site/internal/currency"
	"auction-site/internal/domain"
	"auction-site/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Reason  string `json:"reason"`
	Minimum *int64 `json:"minimum,omitempty"`
}

// bindAndValidate answers 400 itself and returns false when the body is
// malformed or fails validation.
func bindAndValidate(c echo.Context, validate *validator.Validate, input interface{}) (bool, error) {
	if err := c.Bind(input); err != nil {
		return false, c.JSON(http.StatusBadRequest, errorResponse{Reason: "Input data is not formed correctly"})
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return false, c.JSON(http.StatusBadRequest, errorResponse{Reason: getAllErrorMessages(verrs)})
		}
		return false, c.JSON(http.StatusBadRequest, errorResponse{Reason: err.Error()})
	}
	return true, nil
}

// respondError maps domain errors to statuses. Anything unknown is logged
// and reported as a 500 without details.
func respondError(c echo.Context, log logger.Logger, err error) error {
	var tooLow *domain.BidTooLowError
	if errors.As(err, &tooLow) {
		minimum := tooLow.Minimum
		return c.JSON(http.StatusBadRequest, errorResponse{Reason: err.Error(), Minimum: &minimum})
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidItem):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrItemClosed),
		errors.Is(err, domain.ErrItemNotOnSale),
		errors.Is(err, domain.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, currency.ErrUnknownCurrency):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error("Request failed", "path", c.Path(), "error", err)
		return c.JSON(status, errorResponse{Reason: "internal error"})
	}
	return c.JSON(status, errorResponse{Reason: err.Error()})
}

func getAllErrorMessages(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		messages = append(messages, fmt.Sprintf("'%s': %s", fe.Field(), getMessage(fe)))
	}
	return strings.Join(messages, "; ")
}

func getMessage(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return getMessageForString(fe)
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float64:
		return getMessageForNumber(fe)
	}
	return "incorrect value passed"
}

func getMessageForNumber(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		return "should be less or equal than " + fe.Param()
	case "gte", "min":
		return "should be greater or equal than " + fe.Param()
	case "gt":
		return "should be greater than " + fe.Param()
	}
	return "incorrect value passed"
}

func getMessageForString(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		return "length should be less or equal than " + fe.Param()
	case "gte", "min":
		return "length should be greater or equal than " + fe.Param()
	case "len":
		return "length should be " + fe.Param()
	case "email":
		return "should be a valid email address"
	case "alpha":
		return "should contain letters only"
	}
	return "incorrect value passed"
}

// toReference converts amount, given in code or in the reference currency
// when code is empty, to whole reference units.
func toReference(conv CurrencyConverter, amount float64, code string) (int64, error) {
	if code == "" {
		code = conv.Reference()
	}
	return conv.ConvertFrom(amount, code)
}
