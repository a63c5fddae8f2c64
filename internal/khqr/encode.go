package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Generate validates info and builds a KHQR payload.
func Generate(info Info) (*QR, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}

	currencyCode, _ := info.Currency.NumericCode()
	amount, err := formatAmount(info.Currency, info.Amount)
	if err != nil {
		return nil, err
	}

	poi := staticQR
	if amount != "" {
		poi = dynamicQR
	}

	accountTag, account := info.accountTemplate()

	ts := info.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	writeTLV(&b, tagPayloadFormat, payloadFormatIndicator)
	writeTLV(&b, tagPointOfInitiation, poi)
	writeTLV(&b, accountTag, account)
	writeTLV(&b, tagMerchantCategory, defaultMCC)
	writeTLV(&b, tagCurrency, currencyCode)
	writeTLV(&b, tagAmount, amount)
	writeTLV(&b, tagCountryCode, countryCambodia)
	writeTLV(&b, tagMerchantName, info.MerchantName)
	writeTLV(&b, tagMerchantCity, info.MerchantCity)
	writeTLV(&b, tagAdditionalData, encodeTemplate(
		field{subBillNumber, info.BillNumber},
		field{subMobileNumber, info.MobileNumber},
		field{subStoreLabel, info.StoreLabel},
		field{subTerminalLabel, info.TerminalLabel},
	))
	writeTLV(&b, tagTimestamp, encodeTemplate(
		field{"00", strconv.FormatInt(ts.UnixMilli(), 10)},
	))
	b.WriteString(tagCRC + "04")

	payload := b.String()
	payload += checksum(payload)

	return &QR{Payload: payload, MD5: MD5(payload)}, nil
}

// MD5 returns the hex MD5 of a payload.
func MD5(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (info Info) accountTemplate() (string, string) {
	if info.Type == Merchant {
		return tagMerchantAccount, encodeTemplate(
			field{subAccountID, info.AccountID},
			field{subMerchantID, info.MerchantID},
			field{subAcquiringBank, info.AcquiringBank},
		)
	}
	return tagIndividualAccount, encodeTemplate(
		field{subAccountID, info.AccountID},
		field{subAccountInformation, info.AccountInformation},
		field{subAcquiringBank, info.AcquiringBank},
	)
}

func (info Info) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"account_id", info.AccountID},
		{"merchant_name", info.MerchantName},
		{"merchant_city", info.MerchantCity},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &FieldError{Field: r.name, Err: ErrRequiredField}
		}
	}

	if info.Type == Merchant {
		if strings.TrimSpace(info.MerchantID) == "" {
			return &FieldError{Field: "merchant_id", Err: ErrRequiredField}
		}
		if strings.TrimSpace(info.AcquiringBank) == "" {
			return &FieldError{Field: "acquiring_bank", Err: ErrRequiredField}
		}
	}

	limits := []struct {
		name  string
		value string
		max   int
	}{
		{"account_id", info.AccountID, maxAccountID},
		{"merchant_name", info.MerchantName, maxMerchantName},
		{"merchant_city", info.MerchantCity, maxMerchantCity},
		{"merchant_id", info.MerchantID, maxMerchantID},
		{"acquiring_bank", info.AcquiringBank, maxAcquiringBank},
		{"account_information", info.AccountInformation, maxAccountInfo},
		{"mobile_number", info.MobileNumber, maxAdditional},
		{"bill_number", info.BillNumber, maxAdditional},
		{"store_label", info.StoreLabel, maxAdditional},
		{"terminal_label", info.TerminalLabel, maxAdditional},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return &FieldError{Field: l.name, Err: ErrFieldTooLong}
		}
	}

	if _, ok := info.Currency.NumericCode(); !ok {
		return &FieldError{Field: string(info.Currency), Err: ErrUnsupportedCurrency}
	}

	return nil
}

// formatAmount renders tag 54. KHR has no minor unit; USD carries cents.
func formatAmount(cur Currency, amount decimal.Decimal) (string, error) {
	if amount.IsNegative() {
		return "", &FieldError{Field: "amount", Err: ErrInvalidAmount}
	}
	if amount.IsZero() {
		return "", nil
	}

	var s string
	switch cur {
	case KHR:
		if !amount.Equal(amount.Truncate(0)) {
			return "", &FieldError{Field: "amount", Err: ErrInvalidAmount}
		}
		s = amount.StringFixed(0)
	default:
		if !amount.Equal(amount.Truncate(2)) {
			return "", &FieldError{Field: "amount", Err: ErrInvalidAmount}
		}
		s = amount.StringFixed(2)
	}

	if len(s) > maxAmount {
		return "", &FieldError{Field: "amount", Err: ErrFieldTooLong}
	}
	return s, nil
}
