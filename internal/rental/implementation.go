package rental

import (
	"context"
	"fmt"
	"time"

	"carrental/internal/apperr"
	"carrental/internal/auth"
	"carrental/internal/database"
	"carrental/internal/eventstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// service is the rental coordinator. Every state change runs inside one
// unit of work, so the car flag and the rental row never disagree.
type service struct {
	uow     UnitOfWork
	ledger  Ledger
	history HistoryReader
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	created  metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates the rental coordinator. ledger and history serve
// reads outside any transaction.
func NewService(uow UnitOfWork, ledger Ledger, history HistoryReader, logger *zap.Logger) (Service, error) {
	meter := otel.Meter("carrental/rental")

	created, err := meter.Int64Counter("rentals.created", metric.WithDescription("Rentals started"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	returned, err := meter.Int64Counter("rentals.returned", metric.WithDescription("Rentals completed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	rejected, err := meter.Int64Counter("rentals.rejected", metric.WithDescription("Rent and return attempts refused"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &service{
		uow:      uow,
		ledger:   ledger,
		history:  history,
		logger:   logger,
		tracer:   otel.Tracer("carrental/rental"),
		now:      time.Now,
		created:  created,
		returned: returned,
		rejected: rejected,
	}, nil
}

// Rent reserves the car and records an active rental in one transaction.
func (s *service) Rent(ctx context.Context, caller auth.Identity, req RentRequest) (*Rental, error) {
	if req.CustomerID == 0 {
		req.CustomerID = caller.CustomerID
	}

	ctx, span := s.tracer.Start(ctx, "rental.rent", trace.WithAttributes(
		attribute.Int64("customer.id", req.CustomerID),
		attribute.Int64("car.id", req.CarID),
	))
	defer span.End()

	from, to, err := req.Validate()
	if err != nil {
		return nil, s.reject(ctx, span, "rent", err)
	}
	if !caller.CanActFor(req.CustomerID) {
		return nil, s.reject(ctx, span, "rent", apperr.Forbidden("cannot rent on behalf of another customer"))
	}

	var rental *Rental
	err = s.uow.Do(ctx, func(tx Tx) error {
		car, err := tx.Cars().Reserve(ctx, req.CarID)
		if err != nil {
			return err
		}

		days, total := ComputePrice(from, to, car.PricePerDay)
		rental = &Rental{
			CustomerID:         req.CustomerID,
			CarID:              car.ID,
			RentalDate:         from,
			ExpectedReturnDate: to,
			TotalPrice:         total,
			Status:             StatusActive,
		}
		if err := tx.Rentals().Insert(ctx, rental); err != nil {
			return err
		}

		return tx.Journal().Record(ctx, rental.ID, EventRentalCreated, RentalCreatedEvent{
			RentalID:           rental.ID,
			CustomerID:         rental.CustomerID,
			CarID:              rental.CarID,
			RentalDate:         from,
			ExpectedReturnDate: to,
			Days:               days,
			PricePerDay:        car.PricePerDay,
			TotalPrice:         total,
		}, map[string]any{"caller_id": caller.CustomerID})
	})
	if err != nil {
		return nil, s.reject(ctx, span, "rent", err)
	}

	span.SetAttributes(attribute.Int64("rental.id", rental.ID))
	s.created.Add(ctx, 1)
	s.logger.Info("rental created",
		zap.Int64("rental_id", rental.ID),
		zap.Int64("customer_id", rental.CustomerID),
		zap.Int64("car_id", rental.CarID),
		zap.Float64("total_price", rental.TotalPrice),
	)
	return rental, nil
}

// Return completes an active rental and frees its car in one transaction.
func (s *service) Return(ctx context.Context, caller auth.Identity, rentalID int64) (*Rental, error) {
	ctx, span := s.tracer.Start(ctx, "rental.return", trace.WithAttributes(attribute.Int64("rental.id", rentalID)))
	defer span.End()

	var rental *Rental
	err := s.uow.Do(ctx, func(tx Tx) error {
		current, err := tx.Rentals().Get(ctx, rentalID)
		if err != nil {
			return err
		}
		if !caller.CanActFor(current.CustomerID) {
			return apperr.Forbidden("cannot return another customer's rental")
		}

		returnedAt := s.now().UTC()
		rental, err = tx.Rentals().MarkReturned(ctx, rentalID, returnedAt)
		if err != nil {
			return err
		}
		if err := tx.Cars().Release(ctx, rental.CarID); err != nil {
			return err
		}

		return tx.Journal().Record(ctx, rental.ID, EventRentalReturned, RentalReturnedEvent{
			RentalID:   rental.ID,
			CarID:      rental.CarID,
			ReturnDate: returnedAt,
		}, map[string]any{"caller_id": caller.CustomerID})
	})
	if err != nil {
		return nil, s.reject(ctx, span, "return", err)
	}

	s.returned.Add(ctx, 1)
	s.logger.Info("rental returned",
		zap.Int64("rental_id", rental.ID),
		zap.Int64("car_id", rental.CarID),
	)
	return rental, nil
}

func (s *service) Get(ctx context.Context, caller auth.Identity, rentalID int64) (*Rental, error) {
	r, err := s.ledger.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(r.CustomerID) {
		return nil, apperr.Forbidden("cannot view another customer's rental")
	}
	return r, nil
}

// List scopes non-admin callers to their own rentals.
func (s *service) List(ctx context.Context, caller auth.Identity, filter RentalFilter, page database.Page) ([]*Rental, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidField, "invalid status parameter")
	}
	if !caller.IsAdmin {
		if filter.CustomerID != nil && *filter.CustomerID != caller.CustomerID {
			return nil, apperr.Forbidden("cannot list another customer's rentals")
		}
		own := caller.CustomerID
		filter.CustomerID = &own
	}
	return s.ledger.List(ctx, filter, page)
}

// History returns the journal of a rental the caller may view.
func (s *service) History(ctx context.Context, caller auth.Identity, rentalID int64) ([]eventstore.Event, error) {
	if _, err := s.Get(ctx, caller, rentalID); err != nil {
		return nil, err
	}
	events, err := s.history.Load(ctx, aggregateType, rentalID)
	if err != nil {
		return nil, apperr.Internal("failed to load rental history", err)
	}
	return events, nil
}

func (s *service) reject(ctx context.Context, span trace.Span, op string, err error) error {
	code := apperr.CodeOf(err)
	s.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("code", code),
	))

	if apperr.KindOf(err) == apperr.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		span.SetAttributes(attribute.String("rejection.code", code))
		s.logger.Info(op+" rejected", zap.String("code", code), zap.Error(err))
	}
	return err
}
