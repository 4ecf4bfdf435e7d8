// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"carrental/internal/apperr"
	"carrental/internal/database"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const carColumns = `id, brand, model, year, price_per_day, image_url, category, available, created_at`

// store implements the Store interface on PostgreSQL.
type store struct {
	db     database.Querier
	tracer trace.Tracer
}

// NewStore creates a catalog store. db may be a *sql.DB or a *sql.Tx.
func NewStore(db database.Querier) Store {
	return &store{
		db:     db,
		tracer: otel.Tracer("carrental/catalog"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCar(row rowScanner) (*Car, error) {
	car := &Car{}
	err := row.Scan(
		&car.ID,
		&car.Brand,
		&car.Model,
		&car.Year,
		&car.PricePerDay,
		&car.ImageURL,
		&car.Category,
		&car.Available,
		&car.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return car, nil
}

// List returns cars matching filter, newest first.
func (s *store) List(ctx context.Context, filter CarFilter, page database.Page) ([]*Car, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list")
	defer span.End()

	page = page.Normalize()

	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Available != nil {
		conditions = append(conditions, "available = "+arg(*filter.Available))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+arg(filter.Category))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg(database.ContainsPattern(search))
		conditions = append(conditions, fmt.Sprintf("(brand ILIKE %s OR model ILIKE %s)", p, p))
	}

	query := "SELECT " + carColumns + " FROM cars"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s", arg(page.Limit), arg(page.Offset))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("failed to list cars", err)
	}
	defer rows.Close()

	cars := make([]*Car, 0)
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, apperr.Internal("failed to scan car", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to iterate cars", err)
	}

	span.SetAttributes(attribute.Int("cars.returned", len(cars)))
	return cars, nil
}

// Get retrieves a car by its ID.
func (s *store) Get(ctx context.Context, id int64) (*Car, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.get", trace.WithAttributes(attribute.Int64("car.id", id)))
	defer span.End()

	car, err := scanCar(s.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, apperr.Internal("failed to get car", err)
	}
	return car, nil
}

// Insert adds a new, available car to the catalog.
func (s *store) Insert(ctx context.Context, n NewCar) (*Car, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.insert")
	defer span.End()

	if err := n.Normalize(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO cars (brand, model, year, price_per_day, image_url, category, available)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING ` + carColumns
	car, err := scanCar(s.db.QueryRowContext(ctx, query, n.Brand, n.Model, n.Year, n.PricePerDay, n.ImageURL, n.Category))
	if err != nil {
		return nil, apperr.Internal("failed to insert car", err)
	}

	span.SetAttributes(attribute.Int64("car.id", car.ID))
	return car, nil
}

// Update applies a partial update and returns the resulting car.
func (s *store) Update(ctx context.Context, id int64, patch CarPatch) (*Car, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.update", trace.WithAttributes(attribute.Int64("car.id", id)))
	defer span.End()

	if err := patch.Normalize(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setNullable := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = NULLIF($%d, '')", column, len(args)))
	}

	if patch.Brand != nil {
		set("brand", *patch.Brand)
	}
	if patch.Model != nil {
		set("model", *patch.Model)
	}
	if patch.Year != nil {
		set("year", *patch.Year)
	}
	if patch.PricePerDay != nil {
		set("price_per_day", *patch.PricePerDay)
	}
	if patch.ImageURL != nil {
		setNullable("image_url", *patch.ImageURL)
	}
	if patch.Category != nil {
		setNullable("category", *patch.Category)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE cars SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), carColumns)

	car, err := scanCar(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, apperr.Internal("failed to update car", err)
	}
	return car, nil
}

// Delete removes a car. Cars referenced by any rental cannot be deleted.
func (s *store) Delete(ctx context.Context, id int64) (*Car, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.delete", trace.WithAttributes(attribute.Int64("car.id", id)))
	defer span.End()

	car, err := scanCar(s.db.QueryRowContext(ctx, `DELETE FROM cars WHERE id = $1 RETURNING `+carColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		if database.IsForeignKeyViolation(err) {
			return nil, apperr.Conflict(apperr.CodeCarInUse, "car has rental records and cannot be deleted")
		}
		return nil, apperr.Internal("failed to delete car", err)
	}
	return car, nil
}

// Reserve marks an available car as rented. The conditional update is what
// serializes concurrent rents of the same car.
func (s *store) Reserve(ctx context.Context, id int64) (*Car, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.reserve", trace.WithAttributes(attribute.Int64("car.id", id)))
	defer span.End()

	car, err := scanCar(s.db.QueryRowContext(ctx, `
		UPDATE cars SET available = false
		WHERE id = $1 AND available = true
		RETURNING `+carColumns, id))
	if err == nil {
		return car, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Internal("failed to reserve car", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cars WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, apperr.Internal("failed to check car", err)
	}
	if !exists {
		return nil, notFound()
	}

	span.SetAttributes(attribute.Bool("car.unavailable", true))
	return nil, apperr.Conflict(apperr.CodeCarNotAvailable, "car is not available")
}

// Release marks a car as available again.
func (s *store) Release(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "catalog.release", trace.WithAttributes(attribute.Int64("car.id", id)))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `UPDATE cars SET available = true WHERE id = $1`, id)
	if err != nil {
		return apperr.Internal("failed to release car", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal("failed to release car", err)
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
