package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/bakongpay/internal/config"
	"github.com/example/bakongpay/internal/handlers"
	"github.com/example/bakongpay/internal/middleware"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/services"
	"github.com/example/bakongpay/internal/store"
	"github.com/example/bakongpay/internal/worker"
)

// Deps are the long-lived services the HTTP layer needs.
type Deps struct {
	Registry *payment.Registry
	Orders   *store.OrderStore
	Settings *store.SettingsStore
	Harness  *payment.Harness
	Renderer payment.Renderer
	Worker   *worker.ReconcileWorker
	Telegram *services.TelegramService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	orderHandler := handlers.NewOrderHandler(db, deps.Telegram)
	paymentHandler := handlers.NewPaymentHandler(deps.Registry, deps.Orders, deps.Renderer)
	productHandler := handlers.NewProductHandler(db)
	adminHandler := handlers.NewAdminHandler(db, deps.Settings, deps.Harness, deps.Worker)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)

	api.Get("/payment-providers", paymentHandler.ListProviders)

	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Storefront orders
	orders := api.Group("/orders")
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Post("/:id/checkout", paymentHandler.Checkout)
	orders.Get("/:id/receipt", paymentHandler.Receipt)
	orders.Get("/:id/khqr.png", paymentHandler.QRImage)

	// Back office
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.RequireAdmin(), middleware.CSRF())
	admin.Get("/csrf", adminHandler.CSRFToken)
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/settings/bakong", adminHandler.GetBakongSettings)
	admin.Put("/settings/bakong", adminHandler.UpdateBakongSettings)
	admin.Post("/khqr/test", adminHandler.TestKHQR)
	admin.Post("/sweep", adminHandler.RunSweep)
	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)
}
