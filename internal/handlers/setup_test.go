package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/bakongpay/internal/bakong"
	"github.com/example/bakongpay/internal/config"
	"github.com/example/bakongpay/internal/database"
	"github.com/example/bakongpay/internal/handlers"
	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/qrimage"
	"github.com/example/bakongpay/internal/routes"
	"github.com/example/bakongpay/internal/services"
	"github.com/example/bakongpay/internal/store"
	"github.com/example/bakongpay/internal/utils"
	"github.com/example/bakongpay/internal/worker"
)

const (
	testSecret   = "test-secret"
	adminPhone   = "+85512000001"
	adminPass    = "admin-pass"
	apiToken     = "bakong-token"
	receiptBase  = "https://shop.example"
	settledHash  = "5f1d0c1e"
	payerAccount = "payer@aclb"
)

// fakeBakong answers status checks. Every hash is unsettled until settle is set.
type fakeBakong struct {
	srv    *httptest.Server
	settle atomic.Bool
	calls  atomic.Int32
	token  atomic.Value
}

func newFakeBakong(t *testing.T) *fakeBakong {
	t.Helper()
	f := &fakeBakong{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.token.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if !f.settle.Load() {
			_, _ = io.WriteString(w, `{"responseCode":1,"responseMessage":"Transaction could not be found.","errorCode":3,"data":null}`)
			return
		}
		_, _ = io.WriteString(w, `{"responseCode":0,"responseMessage":"Getting transaction successfully.","errorCode":null,"data":{"hash":"`+settledHash+`","fromAccountId":"`+payerAccount+`","toAccountId":"shop@aclb","currency":"KHR","amount":1000,"acknowledgedDateMs":1700000000000}}`)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	cfg      *config.Config
	bakong   *fakeBakong
	settings *store.SettingsStore
	admin    models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedAdmin(db, adminPhone, adminPass))

	var admin models.User
	require.NoError(t, db.Where("phone = ?", adminPhone).First(&admin).Error)

	cfg := &config.Config{
		JWTSecret:    testSecret,
		TokenExpires: time.Hour,
	}

	fb := newFakeBakong(t)
	settings := store.NewSettingsStore(db)
	require.NoError(t, settings.Seed(context.Background(), payment.GatewaySettings{
		Enabled:     true,
		Title:       "Bakong KHQR Payment",
		Description: "Pay with any Bakong app.",
		APIToken:    apiToken,
		Profile: payment.MerchantProfile{
			AccountID:    "shop@aclb",
			MerchantName: "Angkor Books",
			MerchantCity: "Phnom Penh",
		},
	}))

	orders := store.NewOrderStore(db)
	qr := bakong.NewClient(fb.srv.URL)
	renderer := qrimage.New()

	registry := payment.NewRegistry()
	require.NoError(t, registry.Register(context.Background(), payment.NewOrchestrator(settings, qr, orders, func(id uuid.UUID) string {
		return receiptBase + "/api/orders/" + id.String() + "/receipt"
	})))

	reconciler := payment.NewReconciler(settings, qr, orders, nil, 10)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	routes.Register(app, db, cfg, routes.Deps{
		Registry: registry,
		Orders:   orders,
		Settings: settings,
		Harness:  payment.NewHarness(settings, qr, renderer),
		Renderer: renderer,
		Worker:   worker.NewReconcileWorker(reconciler, time.Minute),
		Telegram: services.NewTelegramService("", ""),
	})

	return &testEnv{app: app, db: db, cfg: cfg, bakong: fb, settings: settings, admin: admin}
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, e.admin.ID, true, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) customerToken(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, uuid.New(), false, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedProduct(t *testing.T, price int64, qty int) models.Product {
	t.Helper()
	p := models.Product{
		SKU:               "SKU-" + uuid.NewString()[:8],
		Name:              "Khmer Cookbook",
		Price:             decimal.NewFromInt(price),
		Currency:          "KHR",
		InventoryQuantity: qty,
		IsActive:          true,
		InStock:           qty > 0,
	}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

type request struct {
	method  string
	path    string
	body    interface{}
	token   string
	headers map[string]string
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, r request) (*http.Response, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

// csrf fetches a token and its cookie the way the admin screen does.
func (e *testEnv) csrf(t *testing.T, token string) (string, []*http.Cookie) {
	t.Helper()
	resp, body := e.do(t, request{method: http.MethodGet, path: "/api/admin/csrf", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	csrfToken, _ := data["token"].(string)
	require.NotEmpty(t, csrfToken)
	return csrfToken, resp.Cookies()
}

func (e *testEnv) adminWrite(t *testing.T, method, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	token := e.adminToken(t)
	csrfToken, cookies := e.csrf(t, token)
	return e.do(t, request{
		method:  method,
		path:    path,
		body:    payload,
		token:   token,
		headers: map[string]string{"X-CSRF-Token": csrfToken},
		cookies: cookies,
	})
}

func (e *testEnv) createOrder(t *testing.T, product models.Product, qty int) string {
	t.Helper()
	resp, body := e.do(t, request{
		method: http.MethodPost,
		path:   "/api/orders",
		body: map[string]interface{}{
			"customer_name":  "Sokha",
			"customer_phone": "+85512345678",
			"products": []map[string]interface{}{
				{"product_id": product.ID.String(), "quantity": qty},
			},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["data"].(map[string]interface{})["id"].(string)
}
