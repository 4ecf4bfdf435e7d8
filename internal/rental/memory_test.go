package rental

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"carrental/internal/apperr"
	"carrental/internal/catalog"
	"carrental/internal/database"
	"carrental/internal/eventstore"
)

// memoryState is a snapshot of the three tables the coordinator touches.
type memoryState struct {
	cars       map[int64]catalog.Car
	rentals    map[int64]Rental
	events     map[int64][]eventstore.Event
	nextRental int64
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		cars:       make(map[int64]catalog.Car, len(s.cars)),
		rentals:    make(map[int64]Rental, len(s.rentals)),
		events:     make(map[int64][]eventstore.Event, len(s.events)),
		nextRental: s.nextRental,
	}
	for k, v := range s.cars {
		out.cars[k] = v
	}
	for k, v := range s.rentals {
		out.rentals[k] = v
	}
	for k, v := range s.events {
		out.events[k] = append([]eventstore.Event(nil), v...)
	}
	return out
}

var errJournalDown = errors.New("journal unavailable")

// memoryDB is a UnitOfWork whose transactions run serially on a copy of
// the state and are published only when fn succeeds.
type memoryDB struct {
	mu          sync.Mutex
	state       memoryState
	failJournal bool
}

func newMemoryDB(cars ...catalog.Car) *memoryDB {
	db := &memoryDB{state: memoryState{
		cars:    make(map[int64]catalog.Car),
		rentals: make(map[int64]Rental),
		events:  make(map[int64][]eventstore.Event),
	}}
	for _, c := range cars {
		db.state.cars[c.ID] = c
	}
	return db
}

func (m *memoryDB) Do(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memoryTx{state: &work, failJournal: m.failJournal}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memoryDB) snapshot() memoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// ledger serves reads outside a transaction.
func (m *memoryDB) ledger() Ledger { return &lockedLedger{db: m} }

func (m *memoryDB) Load(_ context.Context, aggType string, id int64) ([]eventstore.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if aggType != aggregateType {
		return nil, nil
	}
	return append([]eventstore.Event{}, m.state.events[id]...), nil
}

// drift lists cars whose flag disagrees with their active rentals.
func (s memoryState) drift() []int64 {
	active := make(map[int64]int)
	for _, r := range s.rentals {
		if r.Status == StatusActive {
			active[r.CarID]++
		}
	}
	var ids []int64
	for id, c := range s.cars {
		if c.Available == (active[id] > 0) || active[id] > 1 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type memoryTx struct {
	state       *memoryState
	failJournal bool
}

func (t *memoryTx) Cars() catalog.Store { return &memoryCars{state: t.state} }
func (t *memoryTx) Rentals() Ledger     { return &memoryLedger{state: t.state} }
func (t *memoryTx) Journal() Journal {
	return &memoryJournal{state: t.state, fail: t.failJournal}
}

type memoryCars struct {
	catalog.Store
	state *memoryState
}

func (c *memoryCars) Get(_ context.Context, id int64) (*catalog.Car, error) {
	car, ok := c.state.cars[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeCarNotFound, "car not found")
	}
	return &car, nil
}

func (c *memoryCars) Reserve(_ context.Context, id int64) (*catalog.Car, error) {
	car, ok := c.state.cars[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeCarNotFound, "car not found")
	}
	if !car.Available {
		return nil, apperr.Conflict(apperr.CodeCarNotAvailable, "car is not available")
	}
	car.Available = false
	c.state.cars[id] = car
	return &car, nil
}

func (c *memoryCars) Release(_ context.Context, id int64) error {
	car, ok := c.state.cars[id]
	if !ok {
		return apperr.NotFound(apperr.CodeCarNotFound, "car not found")
	}
	car.Available = true
	c.state.cars[id] = car
	return nil
}

type memoryLedger struct {
	state *memoryState
}

func (l *memoryLedger) List(_ context.Context, f RentalFilter, page database.Page) ([]*Rental, error) {
	page = page.Normalize()
	out := make([]*Rental, 0)
	for _, r := range l.state.rentals {
		if f.CustomerID != nil && r.CustomerID != *f.CustomerID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if page.Offset >= len(out) {
		return []*Rental{}, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (l *memoryLedger) Get(_ context.Context, id int64) (*Rental, error) {
	r, ok := l.state.rentals[id]
	if !ok {
		return nil, notFound()
	}
	return &r, nil
}

func (l *memoryLedger) Insert(_ context.Context, r *Rental) error {
	if r.Status == StatusActive {
		for _, other := range l.state.rentals {
			if other.CarID == r.CarID && other.Status == StatusActive {
				return apperr.Conflict(apperr.CodeCarNotAvailable, "car is not available")
			}
		}
	}
	l.state.nextRental++
	r.ID = l.state.nextRental
	r.CreatedAt = time.Now()
	l.state.rentals[r.ID] = *r
	return nil
}

func (l *memoryLedger) MarkReturned(_ context.Context, id int64, at time.Time) (*Rental, error) {
	r, ok := l.state.rentals[id]
	if !ok {
		return nil, notFound()
	}
	if r.Status != StatusActive {
		return nil, invalidStatus(r.Status)
	}
	r.Status = StatusCompleted
	r.ReturnDate = &at
	l.state.rentals[id] = r
	return &r, nil
}

type lockedLedger struct {
	db *memoryDB
}

func (l *lockedLedger) List(ctx context.Context, f RentalFilter, p database.Page) ([]*Rental, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	return (&memoryLedger{state: &l.db.state}).List(ctx, f, p)
}

func (l *lockedLedger) Get(ctx context.Context, id int64) (*Rental, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	return (&memoryLedger{state: &l.db.state}).Get(ctx, id)
}

func (l *lockedLedger) Insert(context.Context, *Rental) error {
	return errors.New("insert outside a unit of work")
}

func (l *lockedLedger) MarkReturned(context.Context, int64, time.Time) (*Rental, error) {
	return nil, errors.New("mark returned outside a unit of work")
}

type memoryJournal struct {
	state *memoryState
	fail  bool
}

func (j *memoryJournal) Record(_ context.Context, rentalID int64, eventType string, payload any, metadata map[string]any) error {
	if j.fail {
		return errJournalDown
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	events := j.state.events[rentalID]
	j.state.events[rentalID] = append(events, eventstore.Event{
		ID:            int64(len(events) + 1),
		AggregateType: aggregateType,
		AggregateID:   rentalID,
		EventType:     eventType,
		EventData:     data,
		Metadata:      metadata,
		Version:       len(events) + 1,
		CreatedAt:     time.Now(),
	})
	return nil
}
