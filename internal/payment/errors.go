package payment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration       = errors.New("payment gateway is not configured")
	ErrGatewayDisabled     = errors.New("payment gateway is disabled")
	ErrGeneration          = errors.New("khqr generation failed")
	ErrReconciliationQuery = errors.New("transaction check failed")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrOrderNotFound       = errors.New("order not found")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrNoQRRecord          = errors.New("order has no khqr record")
)

// ConfigurationError lists the merchant settings that block payment.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrConfiguration, strings.Join(parts, "; "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// GenerationError wraps a rejected or failed QR generation call.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrGeneration, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrGeneration, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

// QueryError wraps a failed settlement lookup for one hash.
type QueryError struct {
	MD5 string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrReconciliationQuery, e.MD5, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Is(target error) bool {
	return target == ErrReconciliationQuery
}

// UnsupportedCurrencyError names the rejected currency.
type UnsupportedCurrencyError struct {
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedCurrency, e.Currency)
}

func (e *UnsupportedCurrencyError) Is(target error) bool {
	return target == ErrUnsupportedCurrency
}
