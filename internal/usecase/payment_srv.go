package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/dto/response"
	"carwash-payments/internal/events"
	"carwash-payments/internal/gateway"
	"carwash-payments/internal/gateway/card"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultVerifyDelay = 90 * time.Second

type PaymentService interface {
	InitializePayment(ctx context.Context, userID string, req *request.InitializePaymentRequest) (*response.InitializePaymentResponse, error)
	VerifyPayment(ctx context.Context, correlationID string) (*response.PaymentResponse, error)
	// ProcessCallback applies a provider-pushed result. Only a failed
	// signature check is returned as an error; everything else is acknowledged.
	ProcessCallback(ctx context.Context, provider string, payload []byte, header http.Header) (*response.CallbackResponse, error)

	CancelPendingPayment(ctx context.Context, paymentID string) (*response.PaymentResponse, error)
	RefundPayment(ctx context.Context, paymentID string, req *request.RefundPaymentRequest) (*response.RefundPaymentResponse, error)
	ConfirmManualPayment(ctx context.Context, paymentID string, req *request.ConfirmManualPaymentRequest) (*response.PaymentResponse, error)

	GetPayment(ctx context.Context, paymentID string) (*response.PaymentResponse, error)
	GetPaymentByTransaction(ctx context.Context, correlationID string) (*response.PaymentResponse, error)
	ListBookingPayments(ctx context.Context, bookingID string) ([]response.PaymentResponse, error)
	GetStats(ctx context.Context, req *request.PaymentStatsRequest) (*response.PaymentStatsResponse, error)
}

type paymentService struct {
	repo       *repository.Repository
	ledger     *paymentLedger
	bridge     *bookingBridge
	reconciler *invoiceReconciler

	providers   gateway.Registry
	notifier    Notifier
	verifier    VerifyScheduler
	deliveries  DeliveryLog
	currency    string
	verifyDelay time.Duration
	now         func() time.Time
	log         *zap.Logger
}

func newPaymentService(
	repo *repository.Repository,
	ledger *paymentLedger,
	bridge *bookingBridge,
	reconciler *invoiceReconciler,
	cfg utils.PaymentConfig,
	deps Dependencies,
	log *zap.Logger,
) PaymentService {
	deps = deps.withDefaults()

	delay := time.Duration(cfg.VerifyDelaySeconds) * time.Second
	if delay <= 0 {
		delay = defaultVerifyDelay
	}

	return &paymentService{
		repo:        repo,
		ledger:      ledger,
		bridge:      bridge,
		reconciler:  reconciler,
		providers:   deps.Providers,
		notifier:    deps.Notifier,
		verifier:    deps.Verifier,
		deliveries:  deps.Deliveries,
		currency:    strings.ToLower(cfg.Currency),
		verifyDelay: delay,
		now:         deps.Clock,
		log:         log.With(zap.String("service", "payment")),
	}
}

// callerMayAccess allows the owner and staff. Contexts without a user are
// internal callers such as the verification worker.
func callerMayAccess(ctx context.Context, ownerID uuid.UUID) bool {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return true
	}
	return userID == ownerID || utils.IsStaff(ctx)
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation(fmt.Sprintf("invalid %s id %q", kind, raw))
	}
	return id, nil
}

func (s *paymentService) findPayment(ctx context.Context, paymentID string) (*entity.Payment, error) {
	id, err := parseID("payment", paymentID)
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.Payment.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil || !callerMayAccess(ctx, payment.UserID) {
		return nil, apperror.NotFound("payment", paymentID)
	}
	return payment, nil
}

func (s *paymentService) InitializePayment(ctx context.Context, userID string, req *request.InitializePaymentRequest) (*response.InitializePaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Initialize payment validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	callerID, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	bookingID, err := parseID("booking", req.BookingID)
	if err != nil {
		return nil, err
	}
	method := entity.PaymentMethod(req.PaymentMethod)

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || !callerMayAccess(ctx, booking.UserID) {
		return nil, apperror.NotFound("booking", req.BookingID)
	}
	if booking.Status == entity.BookingStatusCancelled || booking.Status == entity.BookingStatusCompleted {
		return nil, apperror.InvalidState(fmt.Sprintf("booking is %s and cannot be paid", booking.Status))
	}
	if !booking.TotalAmount.IsPositive() {
		return nil, apperror.InvalidState("booking has no amount to pay")
	}

	paid, err := s.repo.Payment.FindCompletedByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if paid != nil {
		return nil, apperror.InvalidState("booking is already paid")
	}

	// fail before charging anyone
	if err := s.ledger.EnsureNoActive(ctx, s.repo, bookingID, method); err != nil {
		return nil, err
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.currency
	}

	payment := &entity.Payment{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		BookingID:    bookingID,
		UserID:       booking.UserID,
		Amount:       booking.TotalAmount,
		Currency:     currency,
		Method:       method,
	}

	var initiated *gateway.InitiateResult
	if method.IsManual() {
		payment.TransactionID = utils.GenerateManualReference(string(method))
	} else {
		provider, err := s.providers.For(method)
		if err != nil {
			return nil, apperror.Validation(fmt.Sprintf("payment method %s is not available", method))
		}

		email := req.Email
		if email == "" {
			email, _ = utils.GetEmailFromContext(ctx)
		}

		initiated, err = provider.Initiate(ctx, gateway.InitiateRequest{
			PaymentID: payment.ID,
			BookingID: bookingID,
			UserID:    callerID,
			Amount:    payment.Amount,
			Currency:  currency,
			Reference: utils.AccountReference(bookingID),
			Narrative: "Car wash",
			Payer: gateway.Payer{
				Phone:      req.PhoneNumber,
				Email:      email,
				SuccessURL: req.SuccessURL,
				CancelURL:  req.CancelURL,
			},
		})
		if err != nil {
			s.log.Warn("Provider rejected payment initiation",
				zap.Error(err),
				zap.String("booking_id", req.BookingID),
				zap.String("provider", provider.Name()),
			)
			return nil, err
		}
		applyCorrelation(payment, initiated)
	}

	if err := s.ledger.CreatePending(ctx, s.repo, payment); err != nil {
		if errors.Is(err, apperror.ErrDuplicateActivePayment) && initiated != nil {
			// lost the race after the provider accepted; that attempt will never be applied
			s.log.Warn("Orphaned provider checkout after duplicate payment race",
				zap.String("booking_id", req.BookingID),
				zap.String("checkout_id", initiated.CheckoutID),
			)
		}
		return nil, err
	}

	if method == entity.PaymentMethodMobileMoney {
		if err := s.verifier.ScheduleVerify(ctx, payment.TransactionID, s.verifyDelay); err != nil {
			s.log.Error("Failed to schedule payment verification",
				zap.Error(err),
				zap.String("payment_id", payment.ID.String()),
			)
		}
	}

	res := &response.InitializePaymentResponse{
		CorrelationID: payment.TransactionID,
		Payment:       response.PaymentToResponse(payment),
	}
	if initiated != nil {
		res.Message = initiated.Message
		res.ClientSecret = initiated.ClientSecret
		res.RedirectURL = initiated.RedirectURL
	} else {
		res.Message = "Payment recorded; staff will confirm it once received"
	}
	return res, nil
}

// applyCorrelation stores the provider ids a later callback will be matched on.
func applyCorrelation(payment *entity.Payment, res *gateway.InitiateResult) {
	payment.TransactionID = res.CheckoutID

	switch payment.Method {
	case entity.PaymentMethodMobileMoney:
		checkout := res.CheckoutID
		payment.MpesaCheckoutRequestID = &checkout
		if res.MerchantID != "" {
			merchant := res.MerchantID
			payment.MpesaMerchantRequestID = &merchant
		}
		if res.PayerPhone != "" {
			phone := res.PayerPhone
			payment.PhoneNumber = &phone
		}
	case entity.PaymentMethodCard:
		if card.IsSessionID(res.CheckoutID) {
			session := res.CheckoutID
			payment.StripeSessionID = &session
		}
		if card.IsIntentID(res.MerchantID) {
			intent := res.MerchantID
			payment.StripePaymentIntentID = &intent
		}
	}
}

func (s *paymentService) VerifyPayment(ctx context.Context, correlationID string) (*response.PaymentResponse, error) {
	payment, err := s.repo.Payment.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if payment == nil || !callerMayAccess(ctx, payment.UserID) {
		return nil, apperror.NotFound("payment", correlationID)
	}

	if payment.Status.IsSettled() || payment.Method.IsManual() {
		res := response.PaymentToResponse(payment)
		return &res, nil
	}

	provider, err := s.providers.For(payment.Method)
	if err != nil {
		return nil, apperror.ProviderUnavailable(string(payment.Method), err)
	}

	result, err := provider.QueryStatus(ctx, payment.TransactionID)
	if err != nil {
		s.log.Warn("Payment status query failed",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
		return nil, err
	}

	settled, err := s.settle(ctx, payment, result)
	if err != nil {
		return nil, err
	}

	res := response.PaymentToResponse(settled)
	return &res, nil
}

func (s *paymentService) ProcessCallback(ctx context.Context, providerName string, payload []byte, header http.Header) (*response.CallbackResponse, error) {
	accepted := &response.CallbackResponse{Accepted: true}
	log := s.log.With(zap.String("provider", providerName))

	provider, ok := s.providers.ByName(providerName)
	if !ok {
		log.Warn("Callback for unconfigured provider")
		return accepted, nil
	}

	result, err := provider.NormalizeCallback(ctx, payload, header)
	switch {
	case errors.Is(err, apperror.ErrInvalidSignature):
		return nil, err
	case errors.Is(err, apperror.ErrUnrecognizedPayload):
		log.Warn("Unrecognized callback payload acknowledged", zap.Error(err), zap.Int("size", len(payload)))
		return accepted, nil
	case err != nil:
		log.Error("Callback normalization failed", zap.Error(err))
		return accepted, nil
	}

	log = log.With(
		zap.String("checkout_id", result.CheckoutID),
		zap.String("event_id", result.EventID),
		zap.String("outcome", string(result.Outcome)),
	)

	if result.EventID != "" && s.deliveries.Seen(ctx, providerName, result.EventID) {
		log.Debug("Replayed delivery acknowledged")
		return accepted, nil
	}

	payment, err := s.ledger.Resolve(ctx, s.repo, result)
	if err != nil {
		log.Error("Failed to look up callback payment", zap.Error(err))
		return accepted, nil
	}
	if payment == nil {
		log.Warn("Callback for unknown payment")
		return accepted, nil
	}

	if _, err := s.settle(ctx, payment, result); err != nil {
		log.Error("Failed to apply callback outcome; needs manual reconciliation",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
		return accepted, nil
	}

	if result.EventID != "" {
		s.deliveries.Remember(ctx, providerName, result.EventID)
	}
	return accepted, nil
}

// settle applies an outcome and, on the first successful completion, confirms
// the booking and pays its invoice in the same transaction.
func (s *paymentService) settle(ctx context.Context, payment *entity.Payment, result *gateway.Result) (*entity.Payment, error) {
	var (
		settled *entity.Payment
		applied bool
		invoice *entity.Invoice
	)

	err := s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		p, ok, err := s.ledger.ApplyOutcome(ctx, tx, payment, result)
		if err != nil {
			return err
		}
		settled, applied = p, ok
		if !ok || p.Status != entity.PaymentStatusCompleted {
			return nil
		}

		booking, err := s.bridge.AdvanceOnPaymentCompleted(ctx, tx, p.BookingID)
		if err != nil {
			return err
		}
		inv, _, err := s.reconciler.EnsureInvoiceForBooking(ctx, tx, booking, invoiceOptions{})
		if err != nil {
			return err
		}
		invoice, _, err = s.reconciler.MarkPaidFromPayment(ctx, tx, inv, p)
		return err
	})
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidTransition) {
			s.log.Error("Provider settled a payment whose booking cannot be confirmed",
				zap.Error(err),
				zap.String("payment_id", payment.ID.String()),
				zap.String("booking_id", payment.BookingID.String()),
			)
		}
		return nil, err
	}

	if applied {
		s.afterSettlement(ctx, settled, invoice)
	}
	return settled, nil
}

// afterSettlement publishes notifications; failures never reach the caller.
func (s *paymentService) afterSettlement(ctx context.Context, payment *entity.Payment, invoice *entity.Invoice) {
	now := s.now()

	var batch []events.Event
	switch payment.Status {
	case entity.PaymentStatusCompleted:
		batch = append(batch, events.ForPayment(events.PaymentCompleted, payment, now))
		if invoice != nil && invoice.Status == entity.InvoiceStatusPaid {
			batch = append(batch, events.ForInvoice(events.InvoicePaid, invoice, now))
		}
	case entity.PaymentStatusFailed, entity.PaymentStatusExpired:
		batch = append(batch, events.ForPayment(events.PaymentFailed, payment, now))
	}

	for _, event := range batch {
		s.notify(ctx, event)
	}
}

func (s *paymentService) notify(ctx context.Context, event events.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Error("Failed to queue notification",
			zap.Error(err),
			zap.String("event_id", event.ID),
		)
	}
}

func (s *paymentService) CancelPendingPayment(ctx context.Context, paymentID string) (*response.PaymentResponse, error) {
	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.ledger.CancelPending(ctx, s.repo, payment)
	if err != nil {
		return nil, err
	}

	res := response.PaymentToResponse(cancelled)
	return &res, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, paymentID string, req *request.RefundPaymentRequest) (*response.RefundPaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != entity.PaymentStatusCompleted {
		return nil, apperror.InvalidState(fmt.Sprintf("only completed payments can be refunded, payment is %s", payment.Status))
	}

	out := &response.RefundPaymentResponse{}

	refunder, programmatic := s.refunderFor(payment)
	if programmatic {
		if payment.StripePaymentIntentID == nil {
			return nil, apperror.New(apperror.ErrRefundUnsupported, "card payment has no payment intent to refund")
		}
		refund, err := refunder.Refund(ctx, gateway.RefundRequest{
			PaymentID:       payment.ID,
			PaymentIntentID: *payment.StripePaymentIntentID,
			Amount:          payment.Amount,
			Currency:        payment.Currency,
			Reason:          req.Reason,
		})
		if err != nil {
			return nil, err
		}
		out.RefundID = refund.RefundID
		out.Message = "Refund submitted to the card provider"
	} else {
		out.ManualReversalRequired = true
		out.Message = fmt.Sprintf("Payment marked refunded; return the money to the customer outside the %s provider", payment.Method)
	}

	refunded, err := s.ledger.MarkRefunded(ctx, s.repo, payment, req.Reason)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.ForPayment(events.PaymentRefunded, refunded, s.now()))

	out.Payment = response.PaymentToResponse(refunded)
	return out, nil
}

func (s *paymentService) refunderFor(payment *entity.Payment) (gateway.Refunder, bool) {
	if payment.Method.IsManual() {
		return nil, false
	}
	provider, err := s.providers.For(payment.Method)
	if err != nil {
		return nil, false
	}
	refunder, ok := provider.(gateway.Refunder)
	return refunder, ok
}

func (s *paymentService) ConfirmManualPayment(ctx context.Context, paymentID string, req *request.ConfirmManualPaymentRequest) (*response.PaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Method.IsManual() {
		return nil, apperror.Validation("only cash or other payments can be confirmed by staff")
	}
	if payment.Status == entity.PaymentStatusCompleted {
		res := response.PaymentToResponse(payment)
		return &res, nil
	}
	if !payment.Status.IsActive() {
		return nil, apperror.InvalidState(fmt.Sprintf("payment is %s and cannot be confirmed", payment.Status))
	}

	staffID, _ := utils.GetUserIDFromContext(ctx)
	s.log.Info("Manual payment confirmed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reference", req.Reference),
		zap.String("staff_id", staffID.String()),
	)

	settled, err := s.settle(ctx, payment, &gateway.Result{
		CheckoutID:        payment.TransactionID,
		ResultDescription: "confirmed by staff",
		ReceiptID:         req.Reference,
		Outcome:           gateway.OutcomeSuccess,
	})
	if err != nil {
		return nil, err
	}

	res := response.PaymentToResponse(settled)
	return &res, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*response.PaymentResponse, error) {
	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	res := response.PaymentToResponse(payment)
	return &res, nil
}

func (s *paymentService) GetPaymentByTransaction(ctx context.Context, correlationID string) (*response.PaymentResponse, error) {
	payment, err := s.repo.Payment.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if payment == nil || !callerMayAccess(ctx, payment.UserID) {
		return nil, apperror.NotFound("payment", correlationID)
	}
	res := response.PaymentToResponse(payment)
	return &res, nil
}

func (s *paymentService) ListBookingPayments(ctx context.Context, bookingID string) ([]response.PaymentResponse, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil || !callerMayAccess(ctx, booking.UserID) {
		return nil, apperror.NotFound("booking", bookingID)
	}

	payments, err := s.repo.Payment.FindByBookingID(ctx, id)
	if err != nil {
		return nil, err
	}
	return response.PaymentsToResponse(payments), nil
}

func (s *paymentService) GetStats(ctx context.Context, req *request.PaymentStatsRequest) (*response.PaymentStatsResponse, error) {
	from := utils.ParseDate(req.From)
	to := utils.ParseDate(req.To)
	if (req.From != "" && from == nil) || (req.To != "" && to == nil) {
		return nil, apperror.Validation("from and to must be dates in YYYY-MM-DD format")
	}
	if to != nil {
		// inclusive of the whole end day
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	byStatus, err := s.repo.Payment.Stats(ctx, "status", from, to)
	if err != nil {
		return nil, err
	}
	byMethod, err := s.repo.Payment.Stats(ctx, "payment_method", from, to)
	if err != nil {
		return nil, err
	}

	return &response.PaymentStatsResponse{ByStatus: byStatus, ByMethod: byMethod}, nil
}
