package usecase

import (
	"context"
	"time"

	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/events"
	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
)

// Notifier hands settlement facts to the notification boundary. Failures
// are logged by the caller and never undo a committed settlement.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}

// VerifyScheduler re-checks a payment later in case its callback is lost.
type VerifyScheduler interface {
	ScheduleVerify(ctx context.Context, correlationID string, delay time.Duration) error
}

// DeliveryLog remembers provider deliveries that were already applied.
type DeliveryLog interface {
	Seen(ctx context.Context, provider, eventID string) bool
	Remember(ctx context.Context, provider, eventID string)
}

type Dependencies struct {
	Providers  gateway.Registry
	Notifier   Notifier
	Verifier   VerifyScheduler
	Deliveries DeliveryLog
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Service struct {
	Payment PaymentService
	Invoice InvoiceService
	Booking BookingService
}

func NewService(repo *repository.Repository, config *utils.Config, deps Dependencies, log *zap.Logger) *Service {
	deps = deps.withDefaults()

	ledger := newPaymentLedger(deps.Clock, log)
	bridge := newBookingBridge(deps.Clock, log)
	reconciler := newInvoiceReconciler(config.Payment, deps.Clock, log)

	return &Service{
		Payment: newPaymentService(repo, ledger, bridge, reconciler, config.Payment, deps, log),
		Invoice: newInvoiceService(repo, reconciler, config.App.Name, deps, log),
		Booking: newBookingService(repo, bridge, log),
	}
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Providers == nil {
		d.Providers = gateway.Registry{}
	}
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	if d.Verifier == nil {
		d.Verifier = noopVerifier{}
	}
	if d.Deliveries == nil {
		d.Deliveries = noopDeliveries{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, events.Event) error { return nil }

type noopVerifier struct{}

func (noopVerifier) ScheduleVerify(context.Context, string, time.Duration) error { return nil }

type noopDeliveries struct{}

func (noopDeliveries) Seen(context.Context, string, string) bool { return false }
func (noopDeliveries) Remember(context.Context, string, string) {}
