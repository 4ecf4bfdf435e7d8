// internal/catalog/service.go
package catalog

import (
	"context"

	"carrental/internal/database"
)

// Store defines the car catalog operations.
type Store interface {
	List(ctx context.Context, filter CarFilter, page database.Page) ([]*Car, error)
	Get(ctx context.Context, id int64) (*Car, error)
	Insert(ctx context.Context, car NewCar) (*Car, error)
	Update(ctx context.Context, id int64, patch CarPatch) (*Car, error)
	Delete(ctx context.Context, id int64) (*Car, error)

	// Reserve and Release flip the availability flag. Only the rental
	// coordinator calls them, inside its transaction.
	Reserve(ctx context.Context, id int64) (*Car, error)
	Release(ctx context.Context, id int64) error
}
