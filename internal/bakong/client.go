// Package bakong talks to the Bakong open API and generates KHQR codes for
// the payment core.
package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/bakongpay/internal/khqr"
	"github.com/example/bakongpay/internal/payment"
)

// DefaultBaseURL is the production Bakong open API.
const DefaultBaseURL = "https://api-bakong.nbc.gov.kh"

const (
	pathCheckByMD5     = "/v1/check_transaction_by_md5"
	pathCheckByMD5List = "/v1/check_transaction_by_md5_list"

	responseFound    = 0
	responseNotFound = 1

	// maxBulk is the most hashes the list endpoint accepts in one call.
	maxBulk = 50
)

// APIError is a non-success answer from the Bakong API.
type APIError struct {
	StatusCode int
	Code       int
	ErrorCode  int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bakong api: status %d, response code %d, error code %d", e.StatusCode, e.Code, e.ErrorCode)
	}
	return fmt.Sprintf("bakong api: %s (status %d, response code %d, error code %d)", e.Message, e.StatusCode, e.Code, e.ErrorCode)
}

// Client implements payment.QRService. Generation is local; only status
// lookups go over the network.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

// NewClient returns a client for baseURL, falling back to DefaultBaseURL.
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Now:        time.Now,
	}
}

// Generate builds a dynamic KHQR for req using the merchant profile.
func (c *Client) Generate(_ context.Context, profile payment.MerchantProfile, req payment.PaymentRequest) (*payment.QRRecord, error) {
	now := c.now()
	info := khqr.Info{
		Type:          khqr.Individual,
		AccountID:     strings.TrimSpace(profile.AccountID),
		MerchantName:  strings.TrimSpace(profile.MerchantName),
		MerchantCity:  strings.TrimSpace(profile.MerchantCity),
		AcquiringBank: strings.TrimSpace(profile.AcquiringBank),
		MobileNumber:  strings.TrimSpace(profile.MobileNumber),
		BillNumber:    truncate(req.CorrelationID, 25),
		Currency:      khqr.Currency(req.Currency),
		Amount:        req.Amount,
		Timestamp:     now,
	}
	if id := strings.TrimSpace(profile.MerchantID); id != "" {
		info.Type = khqr.Merchant
		info.MerchantID = id
	}

	qr, err := khqr.Generate(info)
	if err != nil {
		return nil, &payment.GenerationError{Reason: "khqr encode", Err: err}
	}
	return &payment.QRRecord{
		Payload:   qr.Payload,
		MD5:       qr.MD5,
		Currency:  req.Currency,
		CreatedAt: now,
	}, nil
}

// Decode parses a payload back into its display fields.
func (c *Client) Decode(_ context.Context, payload string) (*payment.DecodedQR, error) {
	d, err := khqr.Decode(payload)
	if err != nil {
		return nil, err
	}
	return &payment.DecodedQR{
		AccountID:     d.AccountID,
		MerchantName:  d.MerchantName,
		MerchantCity:  d.MerchantCity,
		AcquiringBank: d.AcquiringBank,
		MobileNumber:  d.MobileNumber,
		BillNumber:    d.BillNumber,
		Currency:      payment.Currency(d.Currency),
		Amount:        d.Amount,
		Dynamic:       d.Dynamic(),
	}, nil
}

type checkRequest struct {
	MD5 string `json:"md5"`
}

type envelope struct {
	ResponseCode    int             `json:"responseCode"`
	ResponseMessage string          `json:"responseMessage"`
	ErrorCode       *int            `json:"errorCode"`
	Data            json.RawMessage `json:"data"`
}

type transaction struct {
	Hash               string          `json:"hash"`
	FromAccountID      string          `json:"fromAccountId"`
	ToAccountID        string          `json:"toAccountId"`
	Currency           string          `json:"currency"`
	Amount             decimal.Decimal `json:"amount"`
	TransactionStatus  string          `json:"transactionStatus"`
	AcknowledgedDateMs int64           `json:"acknowledgedDateMs"`
}

func (t transaction) settlement() *payment.Settlement {
	s := &payment.Settlement{
		Settled:       true,
		Hash:          t.Hash,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Currency:      t.Currency,
	}
	if t.AcknowledgedDateMs > 0 {
		at := time.UnixMilli(t.AcknowledgedDateMs).UTC()
		s.AcknowledgedAt = &at
	}
	return s
}

// CheckStatus asks Bakong whether the payment identified by md5 has settled.
func (c *Client) CheckStatus(ctx context.Context, token, md5 string) (*payment.Settlement, error) {
	md5 = strings.TrimSpace(md5)
	if md5 == "" {
		return nil, errors.New("bakong check: empty md5")
	}

	env, err := c.post(ctx, token, pathCheckByMD5, checkRequest{MD5: md5})
	if err != nil {
		return nil, err
	}

	switch env.ResponseCode {
	case responseFound:
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return &payment.Settlement{}, nil
		}
		var tx transaction
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return nil, fmt.Errorf("bakong check unmarshal: %w", err)
		}
		if tx.TransactionStatus != "" && !strings.EqualFold(tx.TransactionStatus, "SUCCESS") {
			return &payment.Settlement{Hash: tx.Hash}, nil
		}
		return tx.settlement(), nil
	case responseNotFound:
		return &payment.Settlement{}, nil
	default:
		return nil, env.apiError(http.StatusOK)
	}
}

type bulkItem struct {
	MD5     string `json:"md5"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CheckBulk looks up several hashes at once. The result maps every
// requested hash to whether it has settled.
func (c *Client) CheckBulk(ctx context.Context, token string, md5s []string) (map[string]bool, error) {
	out := make(map[string]bool, len(md5s))
	var batch []string
	for _, h := range md5s {
		if h = strings.TrimSpace(h); h != "" {
			batch = append(batch, h)
			out[h] = false
		}
	}

	for start := 0; start < len(batch); start += maxBulk {
		end := start + maxBulk
		if end > len(batch) {
			end = len(batch)
		}
		env, err := c.post(ctx, token, pathCheckByMD5List, batch[start:end])
		if err != nil {
			return nil, err
		}
		if env.ResponseCode != responseFound {
			if env.ResponseCode == responseNotFound {
				continue
			}
			return nil, env.apiError(http.StatusOK)
		}
		var items []bulkItem
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, &items); err != nil {
				return nil, fmt.Errorf("bakong bulk check unmarshal: %w", err)
			}
		}
		for _, it := range items {
			if _, ok := out[it.MD5]; ok {
				out[it.MD5] = strings.EqualFold(it.Status, "SUCCESS")
			}
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, token, path string, body any) (*envelope, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("bakong: api token is empty")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("bakong request marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("bakong request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("bakong request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("bakong response read: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: -1, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("bakong response unmarshal: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, env.apiError(resp.StatusCode)
	}
	return &env, nil
}

func (e *envelope) apiError(status int) *APIError {
	apiErr := &APIError{StatusCode: status, Code: e.ResponseCode, Message: e.ResponseMessage}
	if e.ErrorCode != nil {
		apiErr.ErrorCode = *e.ErrorCode
	}
	return apiErr
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > n {
		return string(r[:n])
	}
	return string(r)
}
