package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/events"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCreateInvoiceIsIdempotentPerBooking(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	tax := decimal.NewFromInt(160)

	first, created, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{
		BookingID: booking.ID.String(),
		TaxAmount: &tax,
		DueDate:   "2025-02-01",
	})
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	if first.InvoiceNumber != "INV-202501-0001" {
		t.Fatalf("number = %s", first.InvoiceNumber)
	}
	if !first.TotalAmount.Equal(decimal.NewFromInt(1160)) {
		t.Fatalf("total = %s", first.TotalAmount)
	}
	if first.Status != entity.InvoiceStatusPending {
		t.Fatalf("status = %s", first.Status)
	}
	if !first.DueDate.Equal(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("due date = %s", first.DueDate)
	}

	second, created, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
	if err != nil || created {
		t.Fatalf("repeat create: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("repeat create returned a different invoice")
	}
}

func TestConcurrentInvoiceCreationYieldsOneInvoice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			ids[inv.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 1 {
		t.Fatalf("callers saw %d different invoices", len(ids))
	}
	if h.store.invoiceCount(booking.ID) != 1 {
		t.Fatalf("expected exactly one stored invoice")
	}
}

func TestInvoiceNumbersIncreaseWithinMonth(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := uuid.New()

	var numbers []string
	for i := 0; i < 3; i++ {
		booking := h.store.addBooking(user, 500, entity.BookingStatusPending)
		inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		numbers = append(numbers, inv.InvoiceNumber)
	}

	want := []string{"INV-202501-0001", "INV-202501-0002", "INV-202501-0003"}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("numbers = %v, want %v", numbers, want)
		}
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	cancelled := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusCancelled)
	open := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name string
		req  *request.CreateInvoiceRequest
		want error
	}{
		{"cancelled booking", &request.CreateInvoiceRequest{BookingID: cancelled.ID.String()}, apperror.ErrInvalidState},
		{"negative tax", &request.CreateInvoiceRequest{BookingID: open.ID.String(), TaxAmount: &negative}, apperror.ErrValidation},
		{"bad due date", &request.CreateInvoiceRequest{BookingID: open.ID.String(), DueDate: "01/02/2025"}, apperror.ErrValidation},
		{"missing booking", &request.CreateInvoiceRequest{BookingID: uuid.NewString()}, apperror.ErrNotFound},
		{"malformed booking id", &request.CreateInvoiceRequest{BookingID: "B1"}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.svc.Invoice.CreateInvoice(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInvoiceForAlreadyPaidBookingIsPaid(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	id := initMpesa(t, h, booking)

	h.mpesa.query = success("RCPT1")
	if _, err := h.svc.Payment.VerifyPayment(ctx, "CKO1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	inv, created, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created {
		t.Fatalf("settlement already created the invoice")
	}
	if inv.Status != entity.InvoiceStatusPaid || inv.PaymentID == nil || *inv.PaymentID != id {
		t.Fatalf("invoice = %+v", inv)
	}
}

func TestSweepOverdueConverges(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := uuid.New()

	late := h.store.addBooking(user, 1000, entity.BookingStatusPending)
	if _, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: late.ID.String(), DueDate: "2025-01-01"}); err != nil {
		t.Fatalf("create late: %v", err)
	}
	onTime := h.store.addBooking(user, 1000, entity.BookingStatusPending)
	if _, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: onTime.ID.String()}); err != nil {
		t.Fatalf("create on time: %v", err)
	}

	res, err := h.svc.Invoice.SweepOverdue(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("updated = %d, want 1", res.Updated)
	}

	res, err = h.svc.Invoice.SweepOverdue(ctx)
	if err != nil || res.Updated != 0 {
		t.Fatalf("second sweep: %+v %v", res, err)
	}

	overdue, err := h.svc.Invoice.ListOverdue(ctx)
	if err != nil || len(overdue) != 1 || overdue[0].BookingID != late.ID.String() {
		t.Fatalf("overdue = %+v %v", overdue, err)
	}
}

func TestOverdueInvoiceIsPaidBySettlement(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	if _, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String(), DueDate: "2025-01-01"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.svc.Invoice.SweepOverdue(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	initMpesa(t, h, booking)
	h.mpesa.query = success("RCPT1")
	if _, err := h.svc.Payment.VerifyPayment(ctx, "CKO1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if inv := h.store.invoiceFor(booking.ID); inv.Status != entity.InvoiceStatusPaid {
		t.Fatalf("status = %s, want paid", inv.Status)
	}
}

func TestMarkSentAndCancel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := h.svc.Invoice.MarkSent(ctx, inv.ID)
	if err != nil || sent.Status != entity.InvoiceStatusSent || sent.SentAt == nil {
		t.Fatalf("mark sent: %+v %v", sent, err)
	}
	if _, err := h.svc.Invoice.MarkSent(ctx, inv.ID); err != nil {
		t.Fatalf("repeat mark sent: %v", err)
	}
	if got := h.notifier.types(); len(got) != 1 || got[0] != events.InvoiceSent {
		t.Fatalf("notifications = %v", got)
	}

	cancelled, err := h.svc.Invoice.CancelInvoice(ctx, inv.ID)
	if err != nil || cancelled.Status != entity.InvoiceStatusCancelled {
		t.Fatalf("cancel: %+v %v", cancelled, err)
	}
	if _, err := h.svc.Invoice.MarkSent(ctx, inv.ID); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("send cancelled err = %v", err)
	}
}

func TestCancelPaidInvoiceIsRejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	initMpesa(t, h, booking)
	h.mpesa.query = success("RCPT1")
	if _, err := h.svc.Payment.VerifyPayment(ctx, "CKO1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	inv := h.store.invoiceFor(booking.ID)
	if _, err := h.svc.Invoice.CancelInvoice(ctx, inv.ID.String()); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateInvoiceRecomputesTotal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	tax := decimal.NewFromInt(160)
	inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String(), TaxAmount: &tax})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newTax := decimal.NewFromInt(200)
	notes := "Full valet, interior shampoo"
	updated, err := h.svc.Invoice.UpdateInvoice(ctx, inv.ID, &request.UpdateInvoiceRequest{
		TaxAmount: &newTax,
		DueDate:   "2025-03-01",
		Notes:     &notes,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromInt(1200)) || !updated.TaxAmount.Equal(newTax) {
		t.Fatalf("amounts = %s + %s = %s", updated.Amount, updated.TaxAmount, updated.TotalAmount)
	}
	if !updated.DueDate.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("due date = %s", updated.DueDate)
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Fatalf("notes = %v", updated.Notes)
	}

	// sent invoices stay editable and untouched fields keep their value
	if _, err := h.svc.Invoice.MarkSent(ctx, inv.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	later, err := h.svc.Invoice.UpdateInvoice(ctx, inv.ID, &request.UpdateInvoiceRequest{DueDate: "2025-03-15"})
	if err != nil {
		t.Fatalf("update sent: %v", err)
	}
	if later.Status != entity.InvoiceStatusSent || !later.TotalAmount.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("sent update = %+v", later)
	}

	negative := decimal.NewFromInt(-1)
	if _, err := h.svc.Invoice.UpdateInvoice(ctx, inv.ID, &request.UpdateInvoiceRequest{TaxAmount: &negative}); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("negative tax err = %v", err)
	}
	if _, err := h.svc.Invoice.UpdateInvoice(ctx, inv.ID, &request.UpdateInvoiceRequest{DueDate: "01/03/2025"}); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("bad date err = %v", err)
	}

	if _, err := h.svc.Invoice.CancelInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.svc.Invoice.UpdateInvoice(ctx, inv.ID, &request.UpdateInvoiceRequest{Notes: &notes}); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("update cancelled err = %v", err)
	}
}

func TestUpdatePaidInvoiceIsRejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	initMpesa(t, h, booking)
	h.mpesa.query = success("RCPT1")
	if _, err := h.svc.Payment.VerifyPayment(ctx, "CKO1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	inv := h.store.invoiceFor(booking.ID)
	tax := decimal.NewFromInt(50)
	if _, err := h.svc.Invoice.UpdateInvoice(ctx, inv.ID.String(), &request.UpdateInvoiceRequest{TaxAmount: &tax}); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("err = %v", err)
	}
	if got := h.store.invoiceFor(booking.ID); !got.TotalAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("paid invoice total changed to %s", got.TotalAmount)
	}
}

func TestMarkInvoicePaidByStaff(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{}); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("no payment err = %v", err)
	}

	pending := initMpesa(t, h, booking)
	if _, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{PaymentID: pending}); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("pending payment err = %v", err)
	}

	other := h.store.addBooking(booking.UserID, 500, entity.BookingStatusPending)
	foreign := h.store.addCompletedPayment(other, "TILL-7")
	if _, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{PaymentID: foreign.ID.String()}); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("foreign payment err = %v", err)
	}
	if _, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{PaymentID: uuid.NewString()}); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("unknown payment err = %v", err)
	}

	cash := h.store.addCompletedPayment(booking, "TILL-8")
	paid, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != entity.InvoiceStatusPaid || paid.PaymentID == nil || *paid.PaymentID != cash.ID.String() || paid.PaidAt == nil {
		t.Fatalf("invoice = %+v", paid)
	}
	if got := h.notifier.types(); len(got) != 1 || got[0] != events.InvoicePaid {
		t.Fatalf("notifications = %v", got)
	}

	again, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{PaymentID: cash.ID.String()})
	if err != nil || again.Status != entity.InvoiceStatusPaid {
		t.Fatalf("repeat mark paid: %+v %v", again, err)
	}
	if got := h.notifier.types(); len(got) != 1 {
		t.Fatalf("repeat mark paid notified again: %v", got)
	}
}

func TestMarkCancelledInvoicePaidIsRejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.svc.Invoice.CancelInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cash := h.store.addCompletedPayment(booking, "TILL-9")
	if _, err := h.svc.Invoice.MarkInvoicePaid(ctx, inv.ID, &request.MarkInvoicePaidRequest{PaymentID: cash.ID.String()}); !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("err = %v", err)
	}
}

func TestListMyInvoicesScopesToCaller(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	for _, owner := range []uuid.UUID{alice, alice, bob} {
		booking := h.store.addBooking(owner, 1000, entity.BookingStatusPending)
		if _, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	aliceCtx := utils.SetUserContext(ctx, alice, utils.RoleCustomer, "alice@example.com")
	page, err := h.svc.Invoice.ListMyInvoices(aliceCtx, &request.ListInvoicesRequest{
		PaginatedRequest: request.PaginatedRequest{Page: 1, PerPage: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Data) != 2 || page.Pagination.Total != 2 {
		t.Fatalf("page = %+v", page)
	}
	for _, inv := range page.Data {
		if inv.UserID != alice.String() {
			t.Fatalf("foreign invoice listed: %+v", inv)
		}
	}

	paid, err := h.svc.Invoice.ListMyInvoices(aliceCtx, &request.ListInvoicesRequest{
		PaginatedRequest: request.PaginatedRequest{Page: 1, PerPage: 10},
		Status:           "paid",
	})
	if err != nil || len(paid.Data) != 0 {
		t.Fatalf("paid filter: %+v %v", paid, err)
	}

	if _, err := h.svc.Invoice.ListMyInvoices(ctx, &request.ListInvoicesRequest{
		PaginatedRequest: request.PaginatedRequest{Page: 1, PerPage: 10},
	}); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("anonymous err = %v", err)
	}
}

func TestSecondPaymentOnPaidInvoiceIsFlagged(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	r := newInvoiceReconciler(utils.PaymentConfig{Currency: "kes"}, func() time.Time { return testNow }, zap.New(core))
	repo := h.store.repository()

	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	inv, _, err := r.EnsureInvoiceForBooking(ctx, repo, booking, invoiceOptions{TaxAmount: decimal.Zero})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	first := h.store.addCompletedPayment(booking, "TILL-1")
	paid, changed, err := r.MarkPaidFromPayment(ctx, repo, inv, first)
	if err != nil || !changed {
		t.Fatalf("first payment: changed=%v err=%v", changed, err)
	}

	// the settling payment replayed is not a duplicate
	if _, _, err := r.MarkPaidFromPayment(ctx, repo, paid, first); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("replay logged %d warnings", logs.Len())
	}

	second := h.store.addCompletedPayment(booking, "TILL-2")
	again, changed, err := r.MarkPaidFromPayment(ctx, repo, paid, second)
	if err != nil || changed {
		t.Fatalf("second payment: changed=%v err=%v", changed, err)
	}
	if again.PaymentID == nil || *again.PaymentID != first.ID {
		t.Fatalf("invoice relinked to %v", again.PaymentID)
	}

	entries := logs.FilterMessageSnippet("Second payment").All()
	if len(entries) != 1 {
		t.Fatalf("warnings = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["paid_by_payment_id"] != first.ID.String() || fields["payment_id"] != second.ID.String() {
		t.Fatalf("fields = %v", fields)
	}
}

func TestInvoiceLookupsAndStats(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	inv, _, err := h.svc.Invoice.CreateInvoice(ctx, &request.CreateInvoiceRequest{BookingID: booking.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byNumber, err := h.svc.Invoice.GetInvoiceByNumber(ctx, "INV-202501-0001")
	if err != nil || byNumber.ID != inv.ID {
		t.Fatalf("by number: %+v %v", byNumber, err)
	}
	byBooking, err := h.svc.Invoice.GetInvoiceByBooking(ctx, booking.ID.String())
	if err != nil || byBooking.ID != inv.ID {
		t.Fatalf("by booking: %+v %v", byBooking, err)
	}
	if _, err := h.svc.Invoice.GetInvoiceByNumber(ctx, "INV-209912-9999"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("missing number err = %v", err)
	}

	page, err := h.svc.Invoice.ListInvoices(ctx, &request.ListInvoicesRequest{
		PaginatedRequest: request.PaginatedRequest{Page: 1, PerPage: 10},
		Status:           "pending",
	})
	if err != nil || len(page.Data) != 1 {
		t.Fatalf("list: %+v %v", page, err)
	}

	stats, err := h.svc.Invoice.GetStats(ctx)
	if err != nil || stats.Total != 1 || stats.Pending != 1 {
		t.Fatalf("stats: %+v %v", stats, err)
	}
}

func TestRenderInvoicePDF(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)
	initMpesa(t, h, booking)
	h.mpesa.query = success("RCPT1")
	if _, err := h.svc.Payment.VerifyPayment(ctx, "CKO1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	inv := h.store.invoiceFor(booking.ID)
	doc, name, err := h.svc.Invoice.RenderPDF(ctx, inv.ID.String())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if name != "INV-202501-0001.pdf" {
		t.Fatalf("filename = %s", name)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
}

func TestBookingStatusTransitions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := h.store.addBooking(uuid.New(), 1000, entity.BookingStatusPending)

	tests := []struct {
		to   string
		want error
	}{
		{"pending", apperror.ErrInvalidTransition},
		{"completed", apperror.ErrInvalidTransition},
		{"confirmed", nil},
		{"completed", nil},
		{"cancelled", apperror.ErrInvalidTransition},
		{"washed", apperror.ErrValidation},
	}

	for _, tt := range tests {
		res, err := h.svc.Booking.UpdateStatus(ctx, booking.ID.String(), &request.UpdateBookingStatusRequest{Status: tt.to})
		if tt.want == nil {
			if err != nil {
				t.Fatalf("to %s: %v", tt.to, err)
			}
			if string(res.Status) != tt.to {
				t.Fatalf("status = %s, want %s", res.Status, tt.to)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Fatalf("to %s: err = %v, want %v", tt.to, err, tt.want)
		}
	}
}
