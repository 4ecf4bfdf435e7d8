package rental

import (
	"math"
	"strings"
	"time"

	"carrental/internal/apperr"
)

// Status is a rental's lifecycle state. Completed and cancelled are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	// StatusCancelled is reserved; no operation produces it yet.
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Rental is one customer's booking of one car.
type Rental struct {
	ID                 int64      `json:"id"`
	CustomerID         int64      `json:"customer_id"`
	CarID              int64      `json:"car_id"`
	RentalDate         time.Time  `json:"rental_date"`
	ExpectedReturnDate time.Time  `json:"expected_return_date"`
	ReturnDate         *time.Time `json:"return_date"`
	TotalPrice         float64    `json:"total_price"`
	Status             Status     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
}

// RentRequest is the input of a rent. Dates are ISO dates or RFC 3339
// timestamps. A zero CustomerID means the caller.
type RentRequest struct {
	CustomerID         int64  `json:"customer_id"`
	CarID              int64  `json:"car_id"`
	RentalDate         string `json:"rental_date"`
	ExpectedReturnDate string `json:"expected_return_date"`
}

// RentalFilter narrows a ledger listing.
type RentalFilter struct {
	CustomerID *int64
	Status     Status
}

// Journal entries written for each rental.
const (
	aggregateType       = "rental"
	EventRentalCreated  = "RentalCreated"
	EventRentalReturned = "RentalReturned"
)

// RentalCreatedEvent is the payload of EventRentalCreated.
type RentalCreatedEvent struct {
	RentalID           int64     `json:"rental_id"`
	CustomerID         int64     `json:"customer_id"`
	CarID              int64     `json:"car_id"`
	RentalDate         time.Time `json:"rental_date"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
	Days               int       `json:"days"`
	PricePerDay        float64   `json:"price_per_day"`
	TotalPrice         float64   `json:"total_price"`
}

// RentalReturnedEvent is the payload of EventRentalReturned.
type RentalReturnedEvent struct {
	RentalID   int64     `json:"rental_id"`
	CarID      int64     `json:"car_id"`
	ReturnDate time.Time `json:"return_date"`
}

const dateLayout = "2006-01-02"

// ParseDate accepts "2006-01-02" (midnight UTC) or an RFC 3339 timestamp.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.Validation(apperr.CodeInvalidDate, field+" is required")
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Validation(apperr.CodeInvalidDate, "invalid "+field+" format")
}

const day = 24 * time.Hour

// RentalDays is the number of started days between from and to.
// It works on Unix seconds so spans beyond time.Duration's range stay exact.
func RentalDays(from, to time.Time) int {
	secs := to.Unix() - from.Unix()
	nanos := to.Nanosecond() - from.Nanosecond()
	if nanos < 0 {
		secs--
		nanos += int(time.Second)
	}

	const daySecs = int64(day / time.Second)
	days := secs / daySecs
	if secs%daySecs > 0 || nanos > 0 {
		days++
	}
	return int(days)
}

// ComputePrice returns the billed days and the total, rounded to cents.
func ComputePrice(from, to time.Time, pricePerDay float64) (int, float64) {
	days := RentalDays(from, to)
	return days, math.Round(float64(days)*pricePerDay*100) / 100
}

// Validate parses the request dates and checks the ids and range.
func (r RentRequest) Validate() (from, to time.Time, err error) {
	if r.CustomerID <= 0 {
		return from, to, apperr.Validation(apperr.CodeInvalidField, "customer_id is required")
	}
	if r.CarID <= 0 {
		return from, to, apperr.Validation(apperr.CodeInvalidField, "car_id is required")
	}
	if from, err = ParseDate("rental_date", r.RentalDate); err != nil {
		return from, to, err
	}
	if to, err = ParseDate("expected_return_date", r.ExpectedReturnDate); err != nil {
		return from, to, err
	}
	if !to.After(from) {
		return from, to, apperr.Validation(apperr.CodeInvalidDateRange, "expected_return_date must be after rental_date")
	}
	return from, to, nil
}

func notFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeRentalNotFound, "rental not found")
}

func invalidStatus(s Status) *apperr.Error {
	return apperr.Conflict(apperr.CodeInvalidRentalStatus, "rental is already "+string(s))
}
