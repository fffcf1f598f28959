package usecase

import (
	"context"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/dto/response"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
)

type BookingService interface {
	// UpdateStatus is the staff-driven transition; payments confirm bookings on their own.
	UpdateStatus(ctx context.Context, bookingID string, req *request.UpdateBookingStatusRequest) (*response.BookingResponse, error)
}

type bookingService struct {
	repo   *repository.Repository
	bridge *bookingBridge
	log    *zap.Logger
}

func newBookingService(repo *repository.Repository, bridge *bookingBridge, log *zap.Logger) BookingService {
	return &bookingService{
		repo:   repo,
		bridge: bridge,
		log:    log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) UpdateStatus(ctx context.Context, bookingID string, req *request.UpdateBookingStatusRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Update booking status validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	var booking *entity.Booking
	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		booking, err = s.bridge.Transition(ctx, tx, id, entity.BookingStatus(req.Status))
		return err
	})
	if err != nil {
		return nil, err
	}

	res := response.BookingToResponse(booking)
	return &res, nil
}
