package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/utils"
)

// ProductHandler manages the catalog orders are priced from.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// ListProducts returns paginated active products.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{}).Where("is_active = ?", true)

	if currency := strings.ToUpper(c.Query("currency")); currency != "" {
		query = query.Where("currency = ?", currency)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		q := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", q, q)
	}
	if c.QueryBool("in_stock") {
		query = query.Where("in_stock = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetProduct loads a single product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	InventoryQuantity int             `json:"inventory_quantity"`
	IsActive          *bool           `json:"is_active"`
}

func (r productRequest) apply(p *models.Product) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if !r.Price.IsPositive() {
		return errors.New("price must be positive")
	}
	if r.InventoryQuantity < 0 {
		return errors.New("inventory_quantity must not be negative")
	}
	if r.Currency == "" {
		r.Currency = string(payment.KHR)
	}
	currency, err := payment.ParseCurrency(r.Currency)
	if err != nil {
		return err
	}

	p.SKU = strings.TrimSpace(r.SKU)
	p.Name = name
	p.Price = r.Price
	p.Currency = string(currency)
	p.InventoryQuantity = r.InventoryQuantity
	p.InStock = r.InventoryQuantity > 0
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	return nil
}

// CreateProduct adds a product. New products are active unless stated otherwise.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product := models.Product{IsActive: true}
	if err := req.apply(&product); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if product.SKU == "" {
		product.SKU = "SKU-" + strings.ToUpper(uuid.NewString()[:8])
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct replaces the editable fields of a product.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	product, err := h.find(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.SKU == "" {
		req.SKU = product.SKU
	}
	if err := req.apply(product); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.db.Save(product).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product. Order lines keep their copied name and price.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	res := h.db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) find(c *fiber.Ctx) (*models.Product, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}
