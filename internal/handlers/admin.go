package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/middleware"
	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/store"
	"github.com/example/bakongpay/internal/utils"
	"github.com/example/bakongpay/internal/worker"
)

// AdminHandler manages admin-only endpoints. Every route is mounted behind
// AuthMiddleware and RequireAdmin.
type AdminHandler struct {
	db       *gorm.DB
	settings *store.SettingsStore
	harness  *payment.Harness
	worker   *worker.ReconcileWorker
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, settings *store.SettingsStore, harness *payment.Harness, w *worker.ReconcileWorker) *AdminHandler {
	return &AdminHandler{db: db, settings: settings, harness: harness, worker: w}
}

// CSRFToken hands out the token admin forms must echo on writes.
func (h *AdminHandler) CSRFToken(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token":  middleware.CSRFToken(c),
			"header": middleware.CSRFHeader,
		},
	})
}

type bakongSettingsPayload struct {
	Enabled       bool   `json:"enabled"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	APIToken      string `json:"api_token,omitempty"`
	AccountID     string `json:"account_id"`
	MerchantName  string `json:"merchant_name"`
	MerchantCity  string `json:"merchant_city"`
	MobileNumber  string `json:"mobile_number"`
	AcquiringBank string `json:"acquiring_bank"`
	MerchantID    string `json:"merchant_id"`
	Currency      string `json:"currency"`
}

func settingsResponse(s *payment.GatewaySettings) fiber.Map {
	return fiber.Map{
		"enabled":        s.Enabled,
		"title":          s.Title,
		"description":    s.Description,
		"api_token_set":  strings.TrimSpace(s.APIToken) != "",
		"account_id":     s.Profile.AccountID,
		"merchant_name":  s.Profile.MerchantName,
		"merchant_city":  s.Profile.MerchantCity,
		"mobile_number":  s.Profile.MobileNumber,
		"acquiring_bank": s.Profile.AcquiringBank,
		"merchant_id":    s.Profile.MerchantID,
		"currency":       s.Profile.Currency,
	}
}

// GetBakongSettings returns the gateway settings. The API token is never echoed.
func (h *AdminHandler) GetBakongSettings(c *fiber.Ctx) error {
	s, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": settingsResponse(s)})
}

// UpdateBakongSettings replaces the gateway settings. A blank api_token keeps
// the stored one.
func (h *AdminHandler) UpdateBakongSettings(c *fiber.Ctx) error {
	var req bakongSettingsPayload
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings := payment.GatewaySettings{
		Enabled:     req.Enabled,
		Title:       req.Title,
		Description: req.Description,
		APIToken:    req.APIToken,
		Profile: payment.MerchantProfile{
			AccountID:     req.AccountID,
			MerchantName:  req.MerchantName,
			MerchantCity:  req.MerchantCity,
			MobileNumber:  req.MobileNumber,
			AcquiringBank: req.AcquiringBank,
			MerchantID:    req.MerchantID,
			Currency:      payment.Currency(req.Currency),
		},
	}
	if settings.Enabled {
		if err := settings.Profile.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	saved, err := h.settings.Save(c.UserContext(), settings)
	if err != nil {
		var cfgErr *payment.ConfigurationError
		if errors.As(err, &cfgErr) {
			return fiber.NewError(fiber.StatusBadRequest, cfgErr.Error())
		}
		return err
	}

	auditLog(c).Infow("gateway settings updated",
		"enabled", saved.Enabled,
		"account_id", saved.Profile.AccountID,
		"token_rotated", strings.TrimSpace(req.APIToken) != "",
	)
	return c.JSON(fiber.Map{"success": true, "data": settingsResponse(saved)})
}

type khqrTestRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CheckStatus bool            `json:"check_status"`
	MD5         string          `json:"md5"`
	MD5s        []string        `json:"md5s"`
	ImageSize   int             `json:"image_size"`
}

// TestKHQR runs the diagnostic harness against the live profile.
func (h *AdminHandler) TestKHQR(c *fiber.Ctx) error {
	var req khqrTestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Currency == "" {
		req.Currency = string(payment.KHR)
	}

	result, err := h.harness.Run(c.UserContext(), payment.HarnessRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		CheckStatus: req.CheckStatus,
		MD5:         req.MD5,
		MD5s:        req.MD5s,
		ImageSize:   req.ImageSize,
	})
	if err != nil {
		var cfgErr *payment.ConfigurationError
		if errors.As(err, &cfgErr) {
			return fiber.NewError(fiber.StatusBadRequest, cfgErr.Error())
		}
		return mapPaymentError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}

// RunSweep triggers a reconciliation sweep immediately.
func (h *AdminHandler) RunSweep(c *fiber.Ctx) error {
	report, err := h.worker.RunOnce(c.UserContext())
	if err != nil {
		if errors.Is(err, worker.ErrSweepInProgress) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}

	auditLog(c).Infow("manual sweep", "checked", report.Checked, "paid", report.Paid, "failed", report.Failed)
	return c.JSON(fiber.Map{"success": true, "data": report})
}

// auditLog attributes admin actions to the user in the token.
func auditLog(c *fiber.Ctx) *zap.SugaredLogger {
	adminID := "unknown"
	if id, ok := middleware.GetCurrentUserID(c); ok {
		adminID = id.String()
	}
	return logger.SW("component", "admin", "admin_id", adminID)
}

// DashboardStats returns order counts by status and paid revenue per currency.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var paid []models.Order
	if err := h.db.Select("total_amount, currency").
		Where("status = ?", string(payment.StatusPaid)).
		Find(&paid).Error; err != nil {
		return err
	}
	revenue := make(map[string]decimal.Decimal)
	for _, o := range paid {
		revenue[o.Currency] = revenue[o.Currency].Add(o.TotalAmount)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_orders":     totalOrders,
			"orders_by_status": ordersByStatus,
			"paid_revenue":     revenue,
		},
	})
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if method := c.Query("payment_method"); method != "" {
		query = query.Where("payment_method = ?", method)
	}
	if search := strings.ToLower(c.Query("search")); search != "" {
		query = query.Where(
			"LOWER(order_number) LIKE ? OR LOWER(customer_name) LIKE ? OR customer_phone LIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%",
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
