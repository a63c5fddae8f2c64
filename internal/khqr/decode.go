package khqr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Verify reports whether payload is well formed and its CRC matches.
func Verify(payload string) bool {
	return verifyCRC(payload) == nil
}

func verifyCRC(payload string) error {
	idx := len(payload) - 8
	if idx < 0 || payload[idx:idx+4] != tagCRC+"04" {
		return fmt.Errorf("%w: missing crc", ErrInvalidPayload)
	}
	want := strings.ToUpper(payload[idx+4:])
	if got := checksum(payload[:idx+4]); got != want {
		return fmt.Errorf("%w: got %s want %s", ErrCRCMismatch, got, want)
	}
	return nil
}

// Decode parses a payload and checks its CRC.
func Decode(payload string) (*Decoded, error) {
	payload = strings.TrimSpace(payload)
	if err := verifyCRC(payload); err != nil {
		return nil, err
	}

	fields, err := parseTLV(payload)
	if err != nil {
		return nil, err
	}
	top := toMap(fields)

	d := &Decoded{
		PayloadFormatIndicator: top[tagPayloadFormat],
		PointOfInitiation:      top[tagPointOfInitiation],
		MerchantCategoryCode:   top[tagMerchantCategory],
		CountryCode:            top[tagCountryCode],
		MerchantName:           top[tagMerchantName],
		MerchantCity:           top[tagMerchantCity],
		CRC:                    top[tagCRC],
	}

	if d.PayloadFormatIndicator != payloadFormatIndicator {
		return nil, fmt.Errorf("%w: payload format indicator %q", ErrInvalidPayload, d.PayloadFormatIndicator)
	}

	switch {
	case top[tagIndividualAccount] != "":
		sub, err := parseTLV(top[tagIndividualAccount])
		if err != nil {
			return nil, err
		}
		m := toMap(sub)
		d.Type = Individual
		d.AccountID = m[subAccountID]
		d.AccountInformation = m[subAccountInformation]
		d.AcquiringBank = m[subAcquiringBank]
	case top[tagMerchantAccount] != "":
		sub, err := parseTLV(top[tagMerchantAccount])
		if err != nil {
			return nil, err
		}
		m := toMap(sub)
		d.Type = Merchant
		d.AccountID = m[subAccountID]
		d.MerchantID = m[subMerchantID]
		d.AcquiringBank = m[subAcquiringBank]
	default:
		return nil, fmt.Errorf("%w: no merchant account template", ErrInvalidPayload)
	}

	cur, ok := currencyFromCode(top[tagCurrency])
	if !ok {
		return nil, &FieldError{Field: top[tagCurrency], Err: ErrUnsupportedCurrency}
	}
	d.Currency = cur

	if raw, ok := top[tagAmount]; ok {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &FieldError{Field: "amount", Err: ErrInvalidAmount}
		}
		d.Amount = amount
		d.HasAmount = true
	}

	if raw := top[tagAdditionalData]; raw != "" {
		sub, err := parseTLV(raw)
		if err != nil {
			return nil, err
		}
		m := toMap(sub)
		d.BillNumber = m[subBillNumber]
		d.MobileNumber = m[subMobileNumber]
		d.StoreLabel = m[subStoreLabel]
		d.TerminalLabel = m[subTerminalLabel]
	}

	if raw := top[tagTimestamp]; raw != "" {
		sub, err := parseTLV(raw)
		if err != nil {
			return nil, err
		}
		if ms, err := strconv.ParseInt(toMap(sub)["00"], 10, 64); err == nil {
			d.Timestamp = time.UnixMilli(ms)
		}
	}

	return d, nil
}
