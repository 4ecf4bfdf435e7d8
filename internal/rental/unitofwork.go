package rental

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"carrental/internal/catalog"
	"carrental/internal/database"
	"carrental/internal/eventstore"
)

// pgUnitOfWork runs each unit in a PostgreSQL transaction with stores
// bound to it.
type pgUnitOfWork struct {
	db     *sql.DB
	events *eventstore.EventStore
}

func NewUnitOfWork(db *sql.DB, events *eventstore.EventStore) UnitOfWork {
	return &pgUnitOfWork{db: db, events: events}
}

func (u *pgUnitOfWork) Do(ctx context.Context, fn func(tx Tx) error) error {
	return database.InTx(ctx, u.db, func(tx *sql.Tx) error {
		return fn(&pgTx{
			cars:    catalog.NewStore(tx),
			rentals: NewLedger(tx),
			journal: &pgJournal{events: u.events, q: tx},
		})
	})
}

type pgTx struct {
	cars    catalog.Store
	rentals Ledger
	journal Journal
}

func (t *pgTx) Cars() catalog.Store { return t.cars }
func (t *pgTx) Rentals() Ledger     { return t.rentals }
func (t *pgTx) Journal() Journal    { return t.journal }

// pgJournal appends to the event store through the transaction.
type pgJournal struct {
	events *eventstore.EventStore
	q      database.Querier
}

func (j *pgJournal) Record(ctx context.Context, rentalID int64, eventType string, payload any, metadata map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	version, err := j.events.Version(ctx, j.q, aggregateType, rentalID)
	if err != nil {
		return fmt.Errorf("failed to read journal version: %w", err)
	}

	err = j.events.Append(ctx, j.q, aggregateType, rentalID, version, []eventstore.Event{{
		EventType: eventType,
		EventData: data,
		Metadata:  metadata,
	}})
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}
