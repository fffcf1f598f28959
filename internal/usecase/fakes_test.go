package usecase

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/events"
	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

// memStore backs every fake repository. Each method is atomic on its own;
// WithinTx does not serialize callbacks.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*entity.User
	bookings  map[uuid.UUID]*entity.Booking
	payments  map[uuid.UUID]*entity.Payment
	invoices  map[uuid.UUID]*entity.Invoice
	sequences map[string]int64

	applyCalls atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]*entity.User{},
		bookings:  map[uuid.UUID]*entity.Booking{},
		payments:  map[uuid.UUID]*entity.Payment{},
		invoices:  map[uuid.UUID]*entity.Invoice{},
		sequences: map[string]int64{},
	}
}

func (m *memStore) repository() *repository.Repository {
	return repository.New(memUsers{m}, memBookings{m}, memPayments{m}, memInvoices{m}, nil)
}

func (m *memStore) addBooking(userID uuid.UUID, amount int64, status entity.BookingStatus) *entity.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		m.users[userID] = &entity.User{
			BaseNoDelete: entity.BaseNoDelete{ID: userID},
			Name:         "Wanjiku",
			Email:        "wanjiku@example.com",
			Role:         entity.RoleCustomer,
		}
	}
	b := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		UserID:       userID,
		TotalAmount:  decimal.NewFromInt(amount),
		Status:       status,
	}
	m.bookings[b.ID] = b
	return cloneBooking(b)
}

// addCompletedPayment records a settled payment without touching the invoice.
func (m *memStore) addCompletedPayment(booking *entity.Booking, reference string) *entity.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()

	paidAt := testNow
	p := &entity.Payment{
		BaseNoDelete:  entity.BaseNoDelete{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		Amount:        booking.TotalAmount,
		Currency:      "kes",
		Status:        entity.PaymentStatusCompleted,
		Method:        entity.PaymentMethodCash,
		TransactionID: reference,
		PaidAt:        &paidAt,
	}
	m.payments[p.ID] = p
	return clonePayment(p)
}

func (m *memStore) booking(id uuid.UUID) *entity.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBooking(m.bookings[id])
}

func (m *memStore) payment(id uuid.UUID) *entity.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePayment(m.payments[id])
}

func (m *memStore) invoiceFor(bookingID uuid.UUID) *entity.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.BookingID == bookingID {
			return cloneInvoice(inv)
		}
	}
	return nil
}

func (m *memStore) invoiceCount(bookingID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.invoices {
		if inv.BookingID == bookingID {
			n++
		}
	}
	return n
}

func (m *memStore) setPaymentStatus(id uuid.UUID, status entity.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[id].Status = status
}

func cloneBooking(b *entity.Booking) *entity.Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func clonePayment(p *entity.Payment) *entity.Payment {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func cloneInvoice(i *entity.Invoice) *entity.Invoice {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

type memUsers struct{ m *memStore }

func (r memUsers) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

type memBookings struct{ m *memStore }

func (r memBookings) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.m.booking(id), nil
}

func (r memBookings) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.m.booking(id), nil
}

func (r memBookings) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

type memPayments struct{ m *memStore }

func (r memPayments) Create(ctx context.Context, payment *entity.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.BookingID == payment.BookingID && p.Method == payment.Method && p.Status.IsActive() {
			return apperror.DuplicateActivePayment(payment.BookingID.String(), string(payment.Method))
		}
	}
	r.m.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r memPayments) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.m.payment(id), nil
}

func (r memPayments) FindByCorrelationID(ctx context.Context, correlationID string) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.TransactionID == correlationID ||
			(p.MpesaCheckoutRequestID != nil && *p.MpesaCheckoutRequestID == correlationID) ||
			(p.StripeSessionID != nil && *p.StripeSessionID == correlationID) ||
			(p.StripePaymentIntentID != nil && *p.StripePaymentIntentID == correlationID) {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (r memPayments) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Payment
	for _, p := range r.m.payments {
		if p.BookingID == bookingID {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (r memPayments) FindActiveByBookingAndMethod(ctx context.Context, bookingID uuid.UUID, method entity.PaymentMethod) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.BookingID == bookingID && p.Method == method && p.Status.IsActive() {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (r memPayments) FindCompletedByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.BookingID == bookingID && p.Status == entity.PaymentStatusCompleted {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (r memPayments) ApplyOutcome(ctx context.Context, id uuid.UUID, update repository.OutcomeUpdate) (bool, error) {
	r.m.applyCalls.Add(1)
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok || !p.Status.IsActive() {
		return false, nil
	}
	p.Status = update.Status
	p.UpdatedAt = update.UpdatedAt
	if update.PaidAt != nil {
		p.PaidAt = update.PaidAt
	}
	if update.FailureReason != nil {
		p.FailureReason = update.FailureReason
	}
	if update.ReceiptNumber != nil {
		p.MpesaReceiptNumber = update.ReceiptNumber
	}
	if update.PaymentIntentID != nil {
		p.StripePaymentIntentID = update.PaymentIntentID
	}
	return true, nil
}

func (r memPayments) TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.PaymentStatus, to entity.PaymentStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r memPayments) MarkRefunded(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok || p.Status != entity.PaymentStatusCompleted {
		return false, nil
	}
	p.Status = entity.PaymentStatusRefunded
	p.RefundReason = &reason
	p.RefundedAt = &at
	return true, nil
}

func (r memPayments) Stats(ctx context.Context, groupBy string, from, to *time.Time) ([]entity.PaymentStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	totals := map[string]*entity.PaymentStats{}
	for _, p := range r.m.payments {
		key := string(p.Status)
		if groupBy == "payment_method" {
			key = string(p.Method)
		}
		s, ok := totals[key]
		if !ok {
			s = &entity.PaymentStats{Key: key}
			totals[key] = s
		}
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(p.Amount)
	}
	out := make([]entity.PaymentStats, 0, len(totals))
	for _, s := range totals {
		out = append(out, *s)
	}
	return out, nil
}

type memInvoices struct{ m *memStore }

func (r memInvoices) NextSequence(ctx context.Context, period string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.sequences[period]++
	return r.m.sequences[period], nil
}

func (r memInvoices) CreateIfAbsent(ctx context.Context, invoice *entity.Invoice) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invoices {
		if inv.BookingID == invoice.BookingID {
			return false, nil
		}
	}
	r.m.invoices[invoice.ID] = cloneInvoice(invoice)
	return true, nil
}

func (r memInvoices) find(match func(*entity.Invoice) bool) *entity.Invoice {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invoices {
		if match(inv) {
			return cloneInvoice(inv)
		}
	}
	return nil
}

func (r memInvoices) FindByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	return r.find(func(inv *entity.Invoice) bool { return inv.ID == id }), nil
}

func (r memInvoices) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Invoice, error) {
	return r.find(func(inv *entity.Invoice) bool { return inv.BookingID == bookingID }), nil
}

func (r memInvoices) FindByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	return r.find(func(inv *entity.Invoice) bool { return inv.InvoiceNumber == number }), nil
}

func (r memInvoices) List(ctx context.Context, status entity.InvoiceStatus, limit, offset int) ([]*entity.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.m.invoices {
		if status == "" || inv.Status == status {
			out = append(out, cloneInvoice(inv))
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memInvoices) Count(ctx context.Context, status entity.InvoiceStatus) (int64, error) {
	all, _ := r.List(ctx, status, 1<<30, 0)
	return int64(len(all)), nil
}

func (r memInvoices) ListByUser(ctx context.Context, userID uuid.UUID, status entity.InvoiceStatus, limit, offset int) ([]*entity.Invoice, error) {
	all, _ := r.List(ctx, status, 1<<30, 0)
	var out []*entity.Invoice
	for _, inv := range all {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memInvoices) CountByUser(ctx context.Context, userID uuid.UUID, status entity.InvoiceStatus) (int64, error) {
	all, _ := r.ListByUser(ctx, userID, status, 1<<30, 0)
	return int64(len(all)), nil
}

func (r memInvoices) FindOverdue(ctx context.Context) ([]*entity.Invoice, error) {
	return r.List(ctx, entity.InvoiceStatusOverdue, 1<<30, 0)
}

func (r memInvoices) Stats(ctx context.Context) (*entity.InvoiceStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &entity.InvoiceStats{}
	for _, inv := range r.m.invoices {
		stats.Total++
		switch inv.Status {
		case entity.InvoiceStatusPaid:
			stats.Paid++
			stats.PaidAmount = stats.PaidAmount.Add(inv.TotalAmount)
		case entity.InvoiceStatusPending:
			stats.Pending++
			stats.OutstandingAmount = stats.OutstandingAmount.Add(inv.TotalAmount)
		}
	}
	return stats, nil
}

func (r memInvoices) update(id uuid.UUID, from []entity.InvoiceStatus, apply func(*entity.Invoice)) bool {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	inv, ok := r.m.invoices[id]
	if !ok {
		return false
	}
	for _, s := range from {
		if inv.Status == s {
			apply(inv)
			return true
		}
	}
	return false
}

func (r memInvoices) UpdateDetails(ctx context.Context, invoice *entity.Invoice) (bool, error) {
	ok := r.update(invoice.ID, []entity.InvoiceStatus{entity.InvoiceStatusPending, entity.InvoiceStatusSent},
		func(inv *entity.Invoice) {
			inv.TaxAmount = invoice.TaxAmount
			inv.TotalAmount = invoice.TotalAmount
			inv.DueDate = invoice.DueDate
			inv.Notes = invoice.Notes
			inv.UpdatedAt = invoice.UpdatedAt
		})
	return ok, nil
}

func (r memInvoices) MarkPaid(ctx context.Context, id, paymentID uuid.UUID, at time.Time) (bool, error) {
	ok := r.update(id, []entity.InvoiceStatus{entity.InvoiceStatusPending, entity.InvoiceStatusSent, entity.InvoiceStatusOverdue},
		func(inv *entity.Invoice) {
			inv.Status = entity.InvoiceStatusPaid
			inv.PaymentID = &paymentID
			inv.PaidAt = &at
		})
	return ok, nil
}

func (r memInvoices) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ok := r.update(id, []entity.InvoiceStatus{entity.InvoiceStatusPending}, func(inv *entity.Invoice) {
		inv.Status = entity.InvoiceStatusSent
		inv.SentAt = &at
	})
	return ok, nil
}

func (r memInvoices) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ok := r.update(id, []entity.InvoiceStatus{entity.InvoiceStatusPending, entity.InvoiceStatusSent, entity.InvoiceStatusOverdue},
		func(inv *entity.Invoice) { inv.Status = entity.InvoiceStatusCancelled })
	return ok, nil
}

func (r memInvoices) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, inv := range r.m.invoices {
		if inv.Status == entity.InvoiceStatusPending && inv.DueDate.Before(now) {
			inv.Status = entity.InvoiceStatusOverdue
			n++
		}
	}
	return n, nil
}

// fakeProvider answers with canned results and counts calls.
type fakeProvider struct {
	name        string
	checkoutID  string
	merchantID  string
	initErr     error
	query       *gateway.Result
	queryErr    error
	callback    *gateway.Result
	callbackErr error

	initCalls  atomic.Int32
	queryCalls atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	p.initCalls.Add(1)
	if p.initErr != nil {
		return nil, p.initErr
	}
	if req.Payer.Phone != "" {
		phone, ok := utils.NormalizeKenyanPhone(req.Payer.Phone)
		if !ok {
			return nil, apperror.Validation("invalid phone number")
		}
		return &gateway.InitiateResult{
			CheckoutID: p.checkoutID,
			MerchantID: p.merchantID,
			Message:    "Check your phone",
			PayerPhone: phone,
		}, nil
	}
	return &gateway.InitiateResult{CheckoutID: p.checkoutID, MerchantID: p.merchantID, ClientSecret: "secret"}, nil
}

func (p *fakeProvider) QueryStatus(ctx context.Context, checkoutID string) (*gateway.Result, error) {
	p.queryCalls.Add(1)
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	res := *p.query
	res.CheckoutID = checkoutID
	return &res, nil
}

func (p *fakeProvider) NormalizeCallback(ctx context.Context, payload []byte, header http.Header) (*gateway.Result, error) {
	if p.callbackErr != nil {
		return nil, p.callbackErr
	}
	res := *p.callback
	return &res, nil
}

// refundingProvider is a fakeProvider that can refund.
type refundingProvider struct {
	*fakeProvider
	refunds []gateway.RefundRequest
}

func (p *refundingProvider) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	p.refunds = append(p.refunds, req)
	return &gateway.RefundResult{RefundID: "re_1", Status: "succeeded"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingVerifier struct {
	mu   sync.Mutex
	refs []string
}

func (v *recordingVerifier) ScheduleVerify(ctx context.Context, correlationID string, delay time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refs = append(v.refs, correlationID)
	return nil
}

type memDeliveries struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeliveries) Seen(ctx context.Context, provider, eventID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[provider+":"+eventID]
}

func (d *memDeliveries) Remember(ctx context.Context, provider, eventID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[provider+":"+eventID] = true
}

type harness struct {
	store      *memStore
	svc        *Service
	mpesa      *fakeProvider
	card       *refundingProvider
	notifier   *recordingNotifier
	verifier   *recordingVerifier
	deliveries *memDeliveries
}

func newHarness() *harness {
	h := &harness{
		store:      newMemStore(),
		mpesa:      &fakeProvider{name: "mpesa", checkoutID: "CKO1", merchantID: "MR1"},
		card:       &refundingProvider{fakeProvider: &fakeProvider{name: "stripe", checkoutID: "pi_1", merchantID: "pi_1"}},
		notifier:   &recordingNotifier{},
		verifier:   &recordingVerifier{},
		deliveries: &memDeliveries{seen: map[string]bool{}},
	}

	config := &utils.Config{
		App:     utils.AppConfig{Name: "Sparkle Car Wash"},
		Payment: utils.PaymentConfig{Currency: "kes", InvoiceDueDays: 30},
	}
	h.svc = NewService(h.store.repository(), config, Dependencies{
		Providers: gateway.Registry{
			entity.PaymentMethodMobileMoney: h.mpesa,
			entity.PaymentMethodCard:        h.card,
		},
		Notifier:   h.notifier,
		Verifier:   h.verifier,
		Deliveries: h.deliveries,
		Clock:      func() time.Time { return testNow },
	}, zap.NewNop())
	return h
}

func success(receipt string) *gateway.Result {
	amount := decimal.NewFromInt(1000)
	return &gateway.Result{
		ResultCode:        "0",
		ResultDescription: "The service request is processed successfully.",
		ReceiptID:         receipt,
		Amount:            &amount,
		Outcome:           gateway.OutcomeSuccess,
	}
}
