package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/payment"
)

// ErrorHandler renders every error as the JSON envelope used by the API.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		logger.SW("component", "http").Errorw("unhandled error",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// mapPaymentError converts payment errors into HTTP errors. Messages of
// configuration and upstream failures are kept generic; details go to the log.
func mapPaymentError(err error) *fiber.Error {
	switch {
	case errors.Is(err, payment.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	case errors.Is(err, payment.ErrNoQRRecord):
		return fiber.NewError(fiber.StatusNotFound, payment.ErrNoQRRecord.Error())
	case errors.Is(err, payment.ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, payment.ErrPermissionDenied.Error())
	case errors.Is(err, payment.ErrAlreadyPaid):
		return fiber.NewError(fiber.StatusConflict, payment.ErrAlreadyPaid.Error())
	case errors.Is(err, payment.ErrUnsupportedCurrency), errors.Is(err, payment.ErrInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrConfiguration):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Bakong KHQR is not configured")
	case errors.Is(err, payment.ErrGatewayDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, payment.ErrGatewayDisabled.Error())
	case errors.Is(err, payment.ErrGeneration):
		return fiber.NewError(fiber.StatusBadGateway, "KHQR generation failed")
	case errors.Is(err, payment.ErrReconciliationQuery):
		return fiber.NewError(fiber.StatusBadGateway, payment.ErrReconciliationQuery.Error())
	}
	logger.SW("component", "http").Errorw("payment error", "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
}
