package middleware

import (
	"errors"

	"auction-backend/internal/domain"
	"auction-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Domain errors map to their status codes;
// everything else is a 500 in the standard error format.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		fe *fiber.Error
		ve *domain.ValidationError
		se *domain.StateError
		ce *domain.ConflictError
		ie *domain.InsufficientFundsError
	)
	switch {
	case errors.As(err, &fe):
		return response.Error(c, fe.Message, fe.Code, nil)
	case errors.As(err, &ve):
		return response.Error(c, ve.Message, fiber.StatusBadRequest, nil)
	case errors.As(err, &se):
		return response.Error(c, se.Message, fiber.StatusConflict, fiber.Map{"code": "STATE"})
	case errors.As(err, &ce):
		return response.Conflict(c, ce.Error(), ce.CurrentHighestBid, ce.HighestBidderID)
	case errors.As(err, &ie):
		return response.Error(c, ie.Error(), fiber.StatusPaymentRequired, fiber.Map{
			"code":      "INSUFFICIENT_FUNDS",
			"required":  ie.Required,
			"spendable": ie.Spendable,
		})
	}

	log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}
