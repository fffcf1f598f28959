package usecase

import (
	"context"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// bookingBridge moves bookings through their state graph on behalf of payments and staff.
type bookingBridge struct {
	now func() time.Time
	log *zap.Logger
}

func newBookingBridge(now func() time.Time, log *zap.Logger) *bookingBridge {
	return &bookingBridge{
		now: now,
		log: log.With(zap.String("service", "booking_bridge")),
	}
}

// lock reads the booking and, inside a transaction, holds its row until commit.
func (b *bookingBridge) lock(ctx context.Context, repo *repository.Repository, id uuid.UUID) (*entity.Booking, error) {
	booking, err := repo.Booking.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking", id.String())
	}
	return booking, nil
}

// AdvanceOnPaymentCompleted confirms a pending booking. Confirmed and
// completed bookings are left alone.
func (b *bookingBridge) AdvanceOnPaymentCompleted(ctx context.Context, repo *repository.Repository, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := b.lock(ctx, repo, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case entity.BookingStatusConfirmed, entity.BookingStatusCompleted:
		b.log.Debug("Booking already confirmed", zap.String("booking_id", bookingID.String()))
		return booking, nil
	case entity.BookingStatusPending:
	default:
		return nil, apperror.InvalidTransition("booking", string(booking.Status), string(entity.BookingStatusConfirmed))
	}

	ok, err := repo.Booking.TransitionStatus(ctx, bookingID, entity.BookingStatusPending, entity.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		// changed between read and write; only possible outside a transaction
		current, err := b.lock(ctx, repo, bookingID)
		if err != nil {
			return nil, err
		}
		if current.Status == entity.BookingStatusConfirmed || current.Status == entity.BookingStatusCompleted {
			return current, nil
		}
		return nil, apperror.InvalidTransition("booking", string(current.Status), string(entity.BookingStatusConfirmed))
	}

	booking.Status = entity.BookingStatusConfirmed
	booking.UpdatedAt = b.now()
	b.log.Info("Booking confirmed by payment", zap.String("booking_id", bookingID.String()))
	return booking, nil
}

// Transition applies an explicit staff transition along the booking graph.
func (b *bookingBridge) Transition(ctx context.Context, repo *repository.Repository, bookingID uuid.UUID, to entity.BookingStatus) (*entity.Booking, error) {
	if !to.IsValid() {
		return nil, apperror.Validation("unknown booking status " + string(to))
	}

	booking, err := b.lock(ctx, repo, bookingID)
	if err != nil {
		return nil, err
	}

	from := booking.Status
	if !from.CanTransitionTo(to) {
		return nil, apperror.InvalidTransition("booking", string(from), string(to))
	}

	ok, err := repo.Booking.TransitionStatus(ctx, bookingID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidTransition("booking", string(from), string(to))
	}

	booking.Status = to
	booking.UpdatedAt = b.now()
	b.log.Info("Booking status changed",
		zap.String("booking_id", bookingID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return booking, nil
}
