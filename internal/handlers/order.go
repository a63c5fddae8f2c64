package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/services"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	telegram *services.TelegramService
}

// NewOrderHandler constructs OrderHandler. telegram may be nil.
func NewOrderHandler(db *gorm.DB, telegram *services.TelegramService) *OrderHandler {
	return &OrderHandler{db: db, telegram: telegram}
}

type orderProductRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	Currency      string                `json:"currency"`
	Products      []orderProductRequest `json:"products"`
}

// CreateOrder places a pending order. Every line must reference an active
// catalog product and is priced from the database, never from the request.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Currency == "" {
		req.Currency = string(payment.KHR)
	}
	currency, err := payment.ParseCurrency(req.Currency)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if len(req.Products) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "order has no products")
	}

	order := models.Order{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Currency:      string(currency),
		Status:        string(payment.StatusPending),
		PlacedAt:      time.Now(),
		OrderNumber:   h.generateOrderNumber(),
	}

	total := decimal.Zero
	for _, p := range req.Products {
		if p.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
		}

		id, err := uuid.Parse(p.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
		}
		var product models.Product
		if err := h.db.First(&product, "id = ? AND is_active = ?", id, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, "product not found")
			}
			return err
		}
		if product.Currency != "" && !strings.EqualFold(product.Currency, string(currency)) {
			return fiber.NewError(fiber.StatusBadRequest, "product currency does not match order currency")
		}
		if product.InventoryQuantity < p.Quantity {
			return fiber.NewError(fiber.StatusConflict, "insufficient stock for "+product.Name)
		}
		if !product.Price.IsPositive() {
			return fiber.NewError(fiber.StatusBadRequest, "product has no price")
		}

		item := models.OrderItem{
			ProductID:   &product.ID,
			ProductName: product.Name,
			Quantity:    p.Quantity,
			UnitPrice:   product.Price,
		}
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.LineTotal)
		order.Items = append(order.Items, item)
	}
	order.TotalAmount = total

	if err := h.db.Create(&order).Error; err != nil {
		return err
	}

	if h.telegram != nil {
		go h.notifyNewOrder(order)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"placed_at":    order.PlacedAt,
			"total":        order.TotalAmount,
			"currency":     order.Currency,
		},
	})
}

func (h *OrderHandler) notifyNewOrder(order models.Order) {
	items := make([]services.OrderItemNotification, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, services.OrderItemNotification{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := h.telegram.NotifyNewOrder(ctx, services.OrderNotification{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		PaymentMethod: order.PaymentMethod,
	}); err != nil {
		logger.SW("component", "order", "order_id", order.ID.String()).Warnw("telegram notification failed", "error", err)
	}
}

// GetOrder returns a single order with its items and notes.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

func (h *OrderHandler) generateOrderNumber() string {
	return fmt.Sprintf("#%d", time.Now().UnixNano()%1000000000)
}
