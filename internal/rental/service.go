package rental

import (
	"context"
	"time"

	"carrental/internal/auth"
	"carrental/internal/catalog"
	"carrental/internal/database"
	"carrental/internal/eventstore"
)

// Ledger persists rental records.
type Ledger interface {
	List(ctx context.Context, filter RentalFilter, page database.Page) ([]*Rental, error)
	Get(ctx context.Context, id int64) (*Rental, error)
	// Insert stores r and sets its ID and CreatedAt.
	Insert(ctx context.Context, r *Rental) error
	// MarkReturned completes an active rental. Only the coordinator calls it.
	MarkReturned(ctx context.Context, id int64, returnDate time.Time) (*Rental, error)
}

// Journal records rental events alongside the state change they describe.
type Journal interface {
	Record(ctx context.Context, rentalID int64, eventType string, payload any, metadata map[string]any) error
}

// Tx exposes the stores bound to one unit of work.
type Tx interface {
	Cars() catalog.Store
	Rentals() Ledger
	Journal() Journal
}

// UnitOfWork runs fn atomically: every write made through tx commits
// together or not at all.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

// HistoryReader loads an aggregate's journal.
type HistoryReader interface {
	Load(ctx context.Context, aggregateType string, aggregateID int64) ([]eventstore.Event, error)
}

// Service defines the rental lifecycle.
type Service interface {
	Rent(ctx context.Context, caller auth.Identity, req RentRequest) (*Rental, error)
	Return(ctx context.Context, caller auth.Identity, rentalID int64) (*Rental, error)
	Get(ctx context.Context, caller auth.Identity, rentalID int64) (*Rental, error)
	List(ctx context.Context, caller auth.Identity, filter RentalFilter, page database.Page) ([]*Rental, error)
	History(ctx context.Context, caller auth.Identity, rentalID int64) ([]eventstore.Event, error)
}
