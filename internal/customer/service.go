package customer

import (
	"context"

	"carrental/internal/database"
)

// Store defines customer persistence.
type Store interface {
	// FindByEmail returns the customer including the password hash, or
	// nil, nil when no account uses the address.
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Insert(ctx context.Context, c NewCustomer) (*Customer, error)
	List(ctx context.Context, filter CustomerFilter, page database.Page) ([]*Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
}

// Service defines account registration and login.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Customer, error)
	Login(ctx context.Context, req LoginRequest) (*Session, error)
}
