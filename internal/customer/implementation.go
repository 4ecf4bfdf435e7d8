package customer

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

const customerColumns = `id, name, email, phone, is_admin, created_at`

// store implements the Store interface on PostgreSQL.
type store struct {
	db     database.Querier
	tracer trace.Tracer
}

func NewStore(db database.Querier) Store {
	return &store{
		db:     db,
		tracer: otel.Tracer("carrental/customer"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner, extra ...any) (*Customer, error) {
	c := &Customer{}
	dest := append([]any{&c.ID, &c.Name, &c.Email, &c.Phone, &c.IsAdmin, &c.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return c, nil
}

// FindByEmail looks up an account by address, ignoring case.
func (s *store) FindByEmail(ctx context.Context, email string) (*Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.find_by_email")
	defer span.End()

	var hash string
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+`, password_hash FROM customers WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email))
	c, err := scanCustomer(row, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Internal("failed to find customer", err)
	}
	c.PasswordHash = hash
	return c, nil
}

// Insert creates an account. The email is stored lowercased.
func (s *store) Insert(ctx context.Context, n NewCustomer) (*Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.insert")
	defer span.End()

	query := `
		INSERT INTO customers (name, email, password_hash, phone, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + customerColumns
	c, err := scanCustomer(s.db.QueryRowContext(ctx, query,
		strings.TrimSpace(n.Name), NormalizeEmail(n.Email), n.PasswordHash, n.Phone, n.IsAdmin))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict(apperr.CodeEmailExists, "email already exists")
		}
		return nil, apperr.Internal("failed to insert customer", err)
	}

	span.SetAttributes(attribute.Int64("customer.id", c.ID))
	return c, nil
}

// List returns customers without password hashes, newest first.
func (s *store) List(ctx context.Context, filter CustomerFilter, page database.Page) ([]*Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.list")
	defer span.End()

	page = page.Normalize()

	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, database.ContainsPattern(search))
		query += ` WHERE (name ILIKE $1 OR email ILIKE $1)`
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("failed to list customers", err)
	}
	defer rows.Close()

	customers := make([]*Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, apperr.Internal("failed to scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to iterate customers", err)
	}
	return customers, nil
}

func (s *store) Get(ctx context.Context, id int64) (*Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.get", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	c, err := scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, apperr.Internal("failed to get customer", err)
	}
	return c, nil
}
