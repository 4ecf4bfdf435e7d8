package rental

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carrental/internal/apperr"
	"carrental/internal/database"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const rentalColumns = `id, customer_id, car_id, rental_date, expected_return_date, return_date, total_price, status, created_at`

// ledger implements Ledger on PostgreSQL.
type ledger struct {
	db     database.Querier
	tracer trace.Tracer
}

// NewLedger creates a rental ledger. db may be a *sql.DB or a *sql.Tx.
func NewLedger(db database.Querier) Ledger {
	return &ledger{
		db:     db,
		tracer: otel.Tracer("carrental/rental"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRental(row rowScanner) (*Rental, error) {
	r := &Rental{}
	var status string
	var returned sql.NullTime
	err := row.Scan(
		&r.ID,
		&r.CustomerID,
		&r.CarID,
		&r.RentalDate,
		&r.ExpectedReturnDate,
		&returned,
		&r.TotalPrice,
		&status,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	if returned.Valid {
		t := returned.Time
		r.ReturnDate = &t
	}
	return r, nil
}

// List returns rentals matching filter, newest first.
func (l *ledger) List(ctx context.Context, filter RentalFilter, page database.Page) ([]*Rental, error) {
	ctx, span := l.tracer.Start(ctx, "rental.list")
	defer span.End()

	page = page.Normalize()

	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CustomerID != nil {
		conditions = append(conditions, "customer_id = "+arg(*filter.CustomerID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(string(filter.Status)))
	}

	query := "SELECT " + rentalColumns + " FROM rentals"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s", arg(page.Limit), arg(page.Offset))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("failed to list rentals", err)
	}
	defer rows.Close()

	rentals := make([]*Rental, 0)
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, apperr.Internal("failed to scan rental", err)
		}
		rentals = append(rentals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to iterate rentals", err)
	}
	return rentals, nil
}

func (l *ledger) Get(ctx context.Context, id int64) (*Rental, error) {
	ctx, span := l.tracer.Start(ctx, "rental.get", trace.WithAttributes(attribute.Int64("rental.id", id)))
	defer span.End()

	r, err := scanRental(l.db.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, apperr.Internal("failed to get rental", err)
	}
	return r, nil
}

func (l *ledger) Insert(ctx context.Context, r *Rental) error {
	ctx, span := l.tracer.Start(ctx, "rental.insert", trace.WithAttributes(attribute.Int64("car.id", r.CarID)))
	defer span.End()

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO rentals (customer_id, car_id, rental_date, expected_return_date, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		r.CustomerID, r.CarID, r.RentalDate, r.ExpectedReturnDate, r.TotalPrice, string(r.Status),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		switch {
		case database.IsForeignKeyViolation(err):
			return apperr.NotFound(apperr.CodeCustomerNotFound, "customer not found")
		case database.IsUniqueViolation(err):
			return apperr.Conflict(apperr.CodeCarNotAvailable, "car is not available")
		}
		return apperr.Internal("failed to insert rental", err)
	}

	span.SetAttributes(attribute.Int64("rental.id", r.ID))
	return nil
}

// MarkReturned completes the rental only if it is still active, so two
// concurrent returns cannot both succeed.
func (l *ledger) MarkReturned(ctx context.Context, id int64, returnDate time.Time) (*Rental, error) {
	ctx, span := l.tracer.Start(ctx, "rental.mark_returned", trace.WithAttributes(attribute.Int64("rental.id", id)))
	defer span.End()

	r, err := scanRental(l.db.QueryRowContext(ctx, `
		UPDATE rentals SET status = 'completed', return_date = $1
		WHERE id = $2 AND status = 'active'
		RETURNING `+rentalColumns, returnDate, id))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Internal("failed to mark rental returned", err)
	}

	var status string
	err = l.db.QueryRowContext(ctx, `SELECT status FROM rentals WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, apperr.Internal("failed to check rental", err)
	}
	return nil, invalidStatus(Status(status))
}
