package payment_test

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bakongpay/internal/payment"
)

type fakeSettings struct {
	settings *payment.GatewaySettings
	err      error
	loads    int
}

func (f *fakeSettings) Load(context.Context) (*payment.GatewaySettings, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	s := *f.settings
	return &s, nil
}

func configuredSettings() *fakeSettings {
	return &fakeSettings{settings: &payment.GatewaySettings{
		Enabled:  true,
		Title:    "Bakong KHQR",
		APIToken: "token-1",
		Profile: payment.MerchantProfile{
			AccountID:    "shop@aclb",
			MerchantName: "Angkor Books",
			MerchantCity: "Phnom Penh",
		},
	}}
}

type fakeQR struct {
	generateFn func(payment.MerchantProfile, payment.PaymentRequest) (*payment.QRRecord, error)
	checkFn    func(token, md5 string) (*payment.Settlement, error)
	bulkFn     func(md5s []string) (map[string]bool, error)
	checked    []string
	bulk       [][]string
	tokens     []string
}

func (f *fakeQR) Generate(_ context.Context, p payment.MerchantProfile, r payment.PaymentRequest) (*payment.QRRecord, error) {
	if f.generateFn != nil {
		return f.generateFn(p, r)
	}
	return &payment.QRRecord{Payload: "000201-" + r.CorrelationID, MD5: "md5-" + r.CorrelationID, Currency: r.Currency}, nil
}

func (f *fakeQR) CheckStatus(_ context.Context, token, md5 string) (*payment.Settlement, error) {
	f.checked = append(f.checked, md5)
	f.tokens = append(f.tokens, token)
	if f.checkFn != nil {
		return f.checkFn(token, md5)
	}
	return &payment.Settlement{Settled: false}, nil
}

func (f *fakeQR) CheckBulk(_ context.Context, token string, md5s []string) (map[string]bool, error) {
	f.bulk = append(f.bulk, md5s)
	f.tokens = append(f.tokens, token)
	if f.bulkFn != nil {
		return f.bulkFn(md5s)
	}
	out := make(map[string]bool, len(md5s))
	for _, h := range md5s {
		out[h] = false
	}
	return out, nil
}

func (f *fakeQR) Decode(_ context.Context, payload string) (*payment.DecodedQR, error) {
	return &payment.DecodedQR{MerchantName: "Angkor Books", Currency: payment.KHR}, nil
}

type memOrder struct {
	order        payment.Order
	notes        []string
	stockReduced int
	settlement   *payment.Settlement
}

type memStore struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*memOrder
	listLimit   int
	noteErr     error
	markPaidErr error
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[uuid.UUID]*memOrder)}
}

func (s *memStore) add(status payment.Status, total int64, currency string, meta map[string]string) uuid.UUID {
	id := uuid.New()
	if meta == nil {
		meta = map[string]string{}
	}
	s.orders[id] = &memOrder{order: payment.Order{
		ID:       id,
		Number:   "#" + id.String()[:6],
		Status:   status,
		Total:    decimal.NewFromInt(total),
		Currency: currency,
		Meta:     meta,
	}}
	return id
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*payment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, payment.ErrOrderNotFound
	}
	cp := o.order
	cp.Meta = make(map[string]string, len(o.order.Meta))
	for k, v := range o.order.Meta {
		cp.Meta[k] = v
	}
	return &cp, nil
}

func (s *memStore) AttachQR(_ context.Context, id uuid.UUID, rec payment.QRRecord, status payment.Status, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return payment.ErrOrderNotFound
	}
	if o.order.Status == payment.StatusPaid {
		return payment.ErrAlreadyPaid
	}
	o.order.Meta[payment.MetaQRCode] = rec.Payload
	o.order.Meta[payment.MetaMD5] = rec.MD5
	o.order.Meta[payment.MetaCurrency] = string(rec.Currency)
	if o.order.Status != status {
		o.notes = append(o.notes, note)
	}
	o.order.Status = status
	if o.stockReduced == 0 {
		o.stockReduced++
	}
	return nil
}

func (s *memStore) ListAwaiting(_ context.Context, limit int) ([]payment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listLimit = limit
	var out []payment.Order
	for _, o := range s.orders {
		if o.order.Status == payment.StatusAwaitingPayment && o.order.Meta[payment.MetaMD5] != "" {
			out = append(out, o.order)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) MarkPaid(_ context.Context, id uuid.UUID, _ payment.QRRecord, settlement payment.Settlement, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markPaidErr != nil {
		return s.markPaidErr
	}
	o, ok := s.orders[id]
	if !ok {
		return payment.ErrOrderNotFound
	}
	if o.order.Status != payment.StatusAwaitingPayment {
		return payment.ErrAlreadyPaid
	}
	o.order.Status = payment.StatusPaid
	o.settlement = &settlement
	o.notes = append(o.notes, note)
	return nil
}

func (s *memStore) AddNote(_ context.Context, id uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noteErr != nil {
		return s.noteErr
	}
	o, ok := s.orders[id]
	if !ok {
		return payment.ErrOrderNotFound
	}
	o.notes = append(o.notes, note)
	return nil
}

type fakeNotifier struct {
	notices []payment.PaidNotice
	err     error
}

func (f *fakeNotifier) NotifyPaymentConfirmed(_ context.Context, n payment.PaidNotice) error {
	f.notices = append(f.notices, n)
	return f.err
}

type fakeRenderer struct{}

func (fakeRenderer) Render(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty payload")
	}
	return []byte("\x89PNG"), nil
}
