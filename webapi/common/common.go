// Package common holds the response helpers shared by the HTTP handlers.
package common

import (
	"errors"
	"strconv"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	provider "github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/amirasaad/creditcore/pkg/service/payment"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// RetryAfterSeconds is advertised on retryable failures.
const RetryAfterSeconds = 1

var validate = validator.New()

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type      string `json:"type,omitempty"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

// ErrorResponseJSON writes a Problem Details response.
func ErrorResponseJSON(c *fiber.Ctx, status int, title string, detail any) error {
	pd := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
	}
	if detail != nil {
		if s, ok := detail.(string); ok {
			pd.Detail = s
		} else {
			pd.Errors = detail
		}
	}
	pd.Instance = c.OriginalURL()
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ProblemDetailsJSON writes err as Problem Details, choosing the status from
// the error. Retryable errors carry a Retry-After header.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error) error {
	status := ErrorToStatusCode(err)
	pd := ProblemDetails{
		Type:      "about:blank",
		Title:     title,
		Status:    status,
		Instance:  c.OriginalURL(),
		Retryable: credit.IsRetryable(err),
	}
	if err != nil {
		pd.Detail = err.Error()
	}
	if status >= fiber.StatusInternalServerError && !pd.Retryable {
		// Internal details stay in the logs.
		pd.Detail = ""
	}
	if pd.Retryable {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds))
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.Is(err, credit.ErrInvalidAmount),
		errors.Is(err, credit.ErrInvalidRequest),
		errors.Is(err, credit.ErrBypassNotAllowed),
		errors.Is(err, credit.ErrUnknownTier),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrAmountExceedsMaxSafeInt),
		errors.Is(err, money.ErrRateUnavailable),
		errors.Is(err, provider.ErrMalformedCallback):
		return fiber.StatusBadRequest
	case errors.Is(err, provider.ErrInvalidSignature):
		return fiber.StatusUnauthorized
	case errors.Is(err, credit.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, credit.ErrDuplicateOperation),
		errors.Is(err, credit.ErrAlreadyReversed),
		errors.Is(err, credit.ErrInvalidState):
		return fiber.StatusConflict
	case errors.Is(err, credit.ErrInsufficientFunds):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return fiber.StatusBadGateway
	case errors.Is(err, credit.ErrStorageFailure):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// On failure the error response is already written and the returned pointer is nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return nil, ErrorResponseJSON(c, fiber.StatusBadRequest, "Validation failed", fields)
		}
		return nil, ErrorResponseJSON(c, fiber.StatusBadRequest, "Validation failed", err.Error())
	}
	return &input, nil
}

// ParseUserID reads a positive user id from the named route parameter.
func ParseUserID(c *fiber.Ctx, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid user ID", "user id must be a positive integer")
	}
	return id, nil
}
