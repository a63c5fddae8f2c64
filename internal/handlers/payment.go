package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/qrimage"
)

// PaymentHandler serves checkout and the customer-facing receipt.
type PaymentHandler struct {
	registry *payment.Registry
	orders   payment.OrderStore
	renderer payment.Renderer
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(registry *payment.Registry, orders payment.OrderStore, renderer payment.Renderer) *PaymentHandler {
	return &PaymentHandler{registry: registry, orders: orders, renderer: renderer}
}

// ListProviders returns the enabled payment gateways.
func (h *PaymentHandler) ListProviders(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.registry.List(c.UserContext(), false),
	})
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Checkout initiates payment for an order. Failures come back as a
// user-visible notice rather than a bare status.
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req checkoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = payment.GatewayID
	}

	gateway, ok := h.registry.Get(req.PaymentMethod)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown payment method")
	}

	result, err := gateway.Initiate(c.UserContext(), id)
	if err != nil {
		fe := mapPaymentError(err)
		logger.SW("component", "checkout", "order_id", id.String()).Warnw("checkout failed", "error", err)
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"result":  "failure",
			"error":   "Payment error: " + fe.Message,
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"result":   "success",
		"redirect": result.Redirect,
	})
}

// Receipt shows the stored QR for an order along with payment instructions.
func (h *PaymentHandler) Receipt(c *fiber.Ctx) error {
	id, gateway, err := h.orderGateway(c)
	if err != nil {
		return err
	}

	receipt, err := gateway.Receipt(c.UserContext(), id)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"receipt":      receipt,
			"image_url":    "/api/orders/" + id.String() + "/khqr.png",
			"heading":      "Scan to Pay with Bakong",
			"instructions": "Please scan this QR code using your Bakong mobile app to complete the payment. After payment, your order will be processed once we receive confirmation.",
		},
	})
}

// QRImage renders the stored QR as a PNG.
func (h *PaymentHandler) QRImage(c *fiber.Ctx) error {
	id, gateway, err := h.orderGateway(c)
	if err != nil {
		return err
	}

	receipt, err := gateway.Receipt(c.UserContext(), id)
	if err != nil {
		return mapPaymentError(err)
	}

	png, err := h.renderer.Render(receipt.QR, c.QueryInt("size", qrimage.DefaultSize))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

func (h *PaymentHandler) orderGateway(c *fiber.Ctx) (uuid.UUID, payment.Gateway, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.Get(c.UserContext(), id)
	if err != nil {
		return uuid.Nil, nil, mapPaymentError(err)
	}
	if order.PaymentMethod == "" {
		return uuid.Nil, nil, mapPaymentError(payment.ErrNoQRRecord)
	}

	gateway, ok := h.registry.Get(order.PaymentMethod)
	if !ok {
		return uuid.Nil, nil, fiber.NewError(fiber.StatusNotFound, "payment method not available")
	}
	return id, gateway, nil
}
