package paymentgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// FakeGateway is an in-memory provider for local runs and tests.
// Charges settle with the next scripted status (default succeeded);
// the same idempotency key always returns the same charge.
type FakeGateway struct {
	mu        sync.Mutex
	seq       int
	byKey     map[string]*PaymentInfo
	byID      map[string]*PaymentInfo
	refunds   map[string]*RefundInfo
	outcomes  []string
	createErr []error
	Requests  []CreatePaymentRequest
	Refunds   []CreateRefundRequest
	Cancelled []string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		byKey:   make(map[string]*PaymentInfo),
		byID:    make(map[string]*PaymentInfo),
		refunds: make(map[string]*RefundInfo),
	}
}

// QueueOutcomes scripts the statuses of the next created charges.
func (g *FakeGateway) QueueOutcomes(statuses ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes = append(g.outcomes, statuses...)
}

// QueueCreateErrors scripts errors returned by the next CreatePayment calls.
func (g *FakeGateway) QueueCreateErrors(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = append(g.createErr, errs...)
}

// SetStatus changes a charge status as the provider would.
func (g *FakeGateway) SetStatus(providerPaymentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.byID[providerPaymentID]; ok {
		p.Status = status
		p.Paid = status == "succeeded" || status == "waiting_for_capture"
	}
}

func (g *FakeGateway) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)
	if len(g.createErr) > 0 {
		err := g.createErr[0]
		g.createErr = g.createErr[1:]
		if err != nil {
			return nil, err
		}
	}
	if existing, ok := g.byKey[req.IdempotencyKey]; ok {
		return clonePayment(existing), nil
	}

	g.seq++
	status := "succeeded"
	if !req.Capture {
		status = "waiting_for_capture"
	}
	if req.PaymentMethodID == "" {
		status = "pending"
	}
	if len(g.outcomes) > 0 {
		status = g.outcomes[0]
		g.outcomes = g.outcomes[1:]
	}

	info := &PaymentInfo{
		ID:       fmt.Sprintf("fake_pay_%d", g.seq),
		Status:   status,
		Paid:     status == "succeeded" || status == "waiting_for_capture",
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	if req.PaymentMethodID == "" {
		info.ConfirmationURL = fmt.Sprintf("https://pay.example.test/confirm/%s", info.ID)
	}
	if req.SavePaymentMethod {
		info.PaymentMethod = &SavedPaymentMethod{ID: "fake_pm_" + info.ID, Saved: true}
	}
	g.byKey[req.IdempotencyKey] = info
	g.byID[info.ID] = info
	return clonePayment(info), nil
}

func (g *FakeGateway) CapturePayment(ctx context.Context, providerPaymentID string, amount decimal.Decimal, currency, idempotencyKey string) (*PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[providerPaymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", providerPaymentID)
	}
	p.Status = "succeeded"
	p.Paid = true
	return clonePayment(p), nil
}

func (g *FakeGateway) CancelPayment(ctx context.Context, providerPaymentID, idempotencyKey string) (*PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[providerPaymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", providerPaymentID)
	}
	p.Status = "canceled"
	p.Paid = false
	g.Cancelled = append(g.Cancelled, providerPaymentID)
	return clonePayment(p), nil
}

func (g *FakeGateway) GetPayment(ctx context.Context, providerPaymentID string) (*PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[providerPaymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", providerPaymentID)
	}
	return clonePayment(p), nil
}

func (g *FakeGateway) CreateRefund(ctx context.Context, req CreateRefundRequest) (*RefundInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Refunds = append(g.Refunds, req)
	if existing, ok := g.refunds[req.IdempotencyKey]; ok {
		cp := *existing
		return &cp, nil
	}
	g.seq++
	info := &RefundInfo{
		ID:        fmt.Sprintf("fake_refund_%d", g.seq),
		PaymentID: req.ProviderPaymentID,
		Status:    "succeeded",
		Amount:    req.Amount,
		Currency:  req.Currency,
	}
	g.refunds[req.IdempotencyKey] = info
	cp := *info
	return &cp, nil
}

// CreateCalls returns how many CreatePayment requests were received.
func (g *FakeGateway) CreateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

func clonePayment(p *PaymentInfo) *PaymentInfo {
	cp := *p
	if p.PaymentMethod != nil {
		pm := *p.PaymentMethod
		cp.PaymentMethod = &pm
	}
	return &cp
}
