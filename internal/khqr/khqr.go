// Package khqr builds and parses KHQR payloads, the EMV merchant-presented QR
// format used by the Bakong instant-payment network.
package khqr

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a KHQR transaction currency.
type Currency string

const (
	KHR Currency = "KHR"
	USD Currency = "USD"
)

// numeric ISO 4217 codes carried in tag 53.
var currencyCodes = map[Currency]string{
	KHR: "116",
	USD: "840",
}

// NumericCode returns the ISO 4217 numeric code for the currency.
func (c Currency) NumericCode() (string, bool) {
	code, ok := currencyCodes[c]
	return code, ok
}

func currencyFromCode(code string) (Currency, bool) {
	for cur, c := range currencyCodes {
		if c == code {
			return cur, true
		}
	}
	return "", false
}

// AccountType selects the merchant account template: 29 for individuals, 30 for merchants.
type AccountType int

const (
	Individual AccountType = iota
	Merchant
)

func (t AccountType) String() string {
	if t == Merchant {
		return "merchant"
	}
	return "individual"
}

// Top level EMV tags.
const (
	tagPayloadFormat     = "00"
	tagPointOfInitiation = "01"
	tagIndividualAccount = "29"
	tagMerchantAccount   = "30"
	tagMerchantCategory  = "52"
	tagCurrency          = "53"
	tagAmount            = "54"
	tagCountryCode       = "58"
	tagMerchantName      = "59"
	tagMerchantCity      = "60"
	tagAdditionalData    = "62"
	tagTimestamp         = "99"
	tagCRC               = "63"
)

// Sub tags of 29/30.
const (
	subAccountID          = "00"
	subAccountInformation = "01"
	subMerchantID         = "01"
	subAcquiringBank      = "02"
)

// Sub tags of 62.
const (
	subBillNumber    = "01"
	subMobileNumber  = "02"
	subStoreLabel    = "03"
	subTerminalLabel = "07"
)

const (
	payloadFormatIndicator = "01"
	staticQR               = "11"
	dynamicQR              = "12"
	defaultMCC             = "5999"
	countryCambodia        = "KH"
)

// Field limits.
const (
	maxAccountID     = 32
	maxMerchantName  = 25
	maxMerchantCity  = 15
	maxMerchantID    = 32
	maxAcquiringBank = 32
	maxAccountInfo   = 32
	maxAdditional    = 25
	maxAmount        = 13
)

var (
	ErrRequiredField       = errors.New("khqr: required field missing")
	ErrFieldTooLong        = errors.New("khqr: field too long")
	ErrUnsupportedCurrency = errors.New("khqr: unsupported currency")
	ErrInvalidAmount       = errors.New("khqr: invalid amount")
	ErrInvalidPayload      = errors.New("khqr: invalid payload")
	ErrCRCMismatch         = errors.New("khqr: crc mismatch")
)

// FieldError names the field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Info is the input to Generate.
type Info struct {
	Type               AccountType
	AccountID          string
	MerchantName       string
	MerchantCity       string
	MerchantID         string
	AcquiringBank      string
	AccountInformation string
	MobileNumber       string
	BillNumber         string
	StoreLabel         string
	TerminalLabel      string
	Currency           Currency
	// Amount of zero produces a static QR without tag 54.
	Amount    decimal.Decimal
	Timestamp time.Time
}

// QR is a generated payload and its MD5 fingerprint, the lookup key for
// settlement checks.
type QR struct {
	Payload string
	MD5     string
}

// Decoded holds the fields recovered from a payload.
type Decoded struct {
	PayloadFormatIndicator string
	PointOfInitiation      string
	Type                   AccountType
	AccountID              string
	MerchantID             string
	AccountInformation     string
	AcquiringBank          string
	MerchantCategoryCode   string
	Currency               Currency
	Amount                 decimal.Decimal
	HasAmount              bool
	CountryCode            string
	MerchantName           string
	MerchantCity           string
	BillNumber             string
	MobileNumber           string
	StoreLabel             string
	TerminalLabel          string
	Timestamp              time.Time
	CRC                    string
}

// Dynamic reports whether the payload carries a fixed amount.
func (d *Decoded) Dynamic() bool {
	return d.PointOfInitiation == dynamicQR
}
