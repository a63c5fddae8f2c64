package bakong

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bakongpay/internal/khqr"
	"github.com/example/bakongpay/internal/payment"
)

func testProfile() payment.MerchantProfile {
	return payment.MerchantProfile{
		AccountID:    "shop@aclb",
		MerchantName: "Angkor Books",
		MerchantCity: "Phnom Penh",
	}
}

func TestGenerate_ProducesVerifiablePayload(t *testing.T) {
	c := NewClient("")
	c.Now = func() time.Time { return time.UnixMilli(1700000000000) }

	rec, err := c.Generate(context.Background(), testProfile(), payment.PaymentRequest{
		Amount:        decimal.NewFromInt(1000),
		Currency:      payment.KHR,
		CorrelationID: "#1001",
	})
	require.NoError(t, err)

	assert.True(t, khqr.Verify(rec.Payload))
	assert.Equal(t, khqr.MD5(rec.Payload), rec.MD5)
	assert.Equal(t, payment.KHR, rec.Currency)
	assert.Equal(t, int64(1700000000000), rec.CreatedAt.UnixMilli())

	decoded, err := c.Decode(context.Background(), rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, "shop@aclb", decoded.AccountID)
	assert.Equal(t, "#1001", decoded.BillNumber)
	assert.True(t, decoded.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, decoded.Dynamic)
}

func TestGenerate_MerchantProfileUsesMerchantTemplate(t *testing.T) {
	profile := testProfile()
	profile.MerchantID = "M-0042"
	profile.AcquiringBank = "Dev Bank"

	rec, err := NewClient("").Generate(context.Background(), profile, payment.PaymentRequest{
		Amount:   decimal.RequireFromString("2.5"),
		Currency: payment.USD,
	})
	require.NoError(t, err)

	d, err := khqr.Decode(rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, khqr.Merchant, d.Type)
	assert.Equal(t, "M-0042", d.MerchantID)
}

func TestGenerate_EncodeErrorIsGenerationError(t *testing.T) {
	profile := testProfile()
	profile.MerchantName = "A merchant name that is far too long for KHQR"

	_, err := NewClient("").Generate(context.Background(), profile, payment.PaymentRequest{
		Amount:   decimal.NewFromInt(1),
		Currency: payment.KHR,
	})
	assert.ErrorIs(t, err, payment.ErrGeneration)
	assert.ErrorIs(t, err, khqr.ErrFieldTooLong)
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body []byte)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestCheckStatus_Settled(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, body []byte) {
		var req checkRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "abc", req.MD5)
		_, _ = w.Write([]byte(`{"responseCode":0,"responseMessage":"Getting transaction successfully.","errorCode":null,
			"data":{"hash":"f00d","fromAccountId":"payer@abaa","toAccountId":"shop@aclb","currency":"KHR","amount":1000,"acknowledgedDateMs":1700000000000}}`))
	})

	s, err := c.CheckStatus(context.Background(), "token-1", "abc")
	require.NoError(t, err)
	assert.True(t, s.Settled)
	assert.Equal(t, "f00d", s.Hash)
	assert.Equal(t, "payer@abaa", s.FromAccountID)
	assert.True(t, s.Amount.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, s.AcknowledgedAt)
	assert.Equal(t, int64(1700000000000), s.AcknowledgedAt.UnixMilli())
}

func TestCheckStatus_NotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ []byte) {
		_, _ = w.Write([]byte(`{"responseCode":1,"responseMessage":"Transaction could not be found.","errorCode":1,"data":null}`))
	})

	s, err := c.CheckStatus(context.Background(), "token-1", "abc")
	require.NoError(t, err)
	assert.False(t, s.Settled)
}

func TestCheckStatus_FailedTransactionIsNotSettled(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ []byte) {
		_, _ = w.Write([]byte(`{"responseCode":0,"data":{"hash":"f00d","transactionStatus":"FAILED"}}`))
	})

	s, err := c.CheckStatus(context.Background(), "token-1", "abc")
	require.NoError(t, err)
	assert.False(t, s.Settled)
}

func TestCheckStatus_Unauthorized(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ []byte) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"responseCode":1,"responseMessage":"Unauthorized","errorCode":6,"data":null}`))
	})

	_, err := c.CheckStatus(context.Background(), "token-1", "abc")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, 6, apiErr.ErrorCode)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestCheckStatus_NonJSONErrorBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ []byte) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := c.CheckStatus(context.Background(), "token-1", "abc")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestCheckStatus_UnknownResponseCode(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ []byte) {
		_, _ = w.Write([]byte(`{"responseCode":3,"responseMessage":"Something odd","errorCode":11}`))
	})

	_, err := c.CheckStatus(context.Background(), "token-1", "abc")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 3, apiErr.Code)
}

func TestCheckStatus_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).CheckStatus(context.Background(), "token-1", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bakong request")
}

func TestCheckStatus_RejectsEmptyInputs(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.CheckStatus(context.Background(), "", "abc")
	assert.Error(t, err)
	_, err = c.CheckStatus(context.Background(), "token-1", " ")
	assert.Error(t, err)
}

func TestCheckBulk(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, body []byte) {
		var hashes []string
		require.NoError(t, json.Unmarshal(body, &hashes))
		assert.Equal(t, []string{"a", "b"}, hashes)
		_, _ = w.Write([]byte(`{"responseCode":0,"data":[
			{"md5":"a","status":"SUCCESS","message":"Transaction found"},
			{"md5":"b","status":"NOT_FOUND","message":"Transaction not found"}]}`))
	})

	got, err := c.CheckBulk(context.Background(), "token-1", []string{"a", " ", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": false}, got)
}
