package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/example/bakongpay/internal/payment"
)

// CSRFContextKey is where the csrf middleware leaves the current token.
const CSRFContextKey = "csrf"

// CSRFHeader carries the token on state-changing admin requests.
const CSRFHeader = "X-CSRF-Token"

// CSRF protects admin actions with a double-submit cookie. Safe methods
// issue a token; unsafe ones must echo it in CSRFHeader.
func CSRF() fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "header:" + CSRFHeader,
		CookieName:     "csrf_",
		CookieSameSite: "Strict",
		CookieHTTPOnly: true,
		Expiration:     time.Hour,
		ContextKey:     CSRFContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fiber.NewError(fiber.StatusForbidden, payment.ErrPermissionDenied.Error())
		},
	})
}

// CSRFToken returns the token issued for this request, if any.
func CSRFToken(c *fiber.Ctx) string {
	token, _ := c.Locals(CSRFContextKey).(string)
	return token
}
