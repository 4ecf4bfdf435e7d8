// Package audit checks that every car's availability flag agrees with its
// active rentals.
package audit

import (
	"context"
	"fmt"

	"carrental/internal/database"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Drift is a car whose flag disagrees with the rentals table.
type Drift struct {
	CarID         int64 `json:"car_id"`
	Available     bool  `json:"available"`
	ActiveRentals int   `json:"active_rentals"`
}

// Auditor runs the consistency query. It reports drift but never repairs it.
type Auditor struct {
	db     database.Querier
	logger *zap.Logger
	tracer trace.Tracer
	drifts metric.Int64Counter
	runs   metric.Int64Counter
}

func NewAuditor(db database.Querier, logger *zap.Logger) (*Auditor, error) {
	meter := otel.Meter("carrental/audit")

	drifts, err := meter.Int64Counter("audit.drift", metric.WithDescription("Cars found with inconsistent availability"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	runs, err := meter.Int64Counter("audit.runs", metric.WithDescription("Availability audits completed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Auditor{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("carrental/audit"),
		drifts: drifts,
		runs:   runs,
	}, nil
}

const driftQuery = `
	SELECT c.id, c.available, COUNT(r.id) AS active_rentals
	FROM cars c
	LEFT JOIN rentals r ON r.car_id = c.id AND r.status = 'active'
	GROUP BY c.id, c.available
	HAVING c.available = (COUNT(r.id) > 0) OR COUNT(r.id) > 1
	ORDER BY c.id`

// Check returns every car whose flag is wrong: available with an active
// rental, unavailable without one, or carrying more than one active rental.
func (a *Auditor) Check(ctx context.Context) ([]Drift, error) {
	ctx, span := a.tracer.Start(ctx, "audit.check")
	defer span.End()

	rows, err := a.db.QueryContext(ctx, driftQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability drift: %w", err)
	}
	defer rows.Close()

	drift := make([]Drift, 0)
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.CarID, &d.Available, &d.ActiveRentals); err != nil {
			return nil, fmt.Errorf("failed to scan drift: %w", err)
		}
		drift = append(drift, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drift: %w", err)
	}

	span.SetAttributes(attribute.Int("audit.drift", len(drift)))
	a.runs.Add(ctx, 1)
	if len(drift) > 0 {
		a.drifts.Add(ctx, int64(len(drift)))
	}
	return drift, nil
}

// Run performs one check and logs the outcome.
func (a *Auditor) Run(ctx context.Context) {
	drift, err := a.Check(ctx)
	if err != nil {
		a.logger.Error("availability audit failed", zap.Error(err))
		return
	}
	for _, d := range drift {
		a.logger.Warn("availability drift",
			zap.Int64("car_id", d.CarID),
			zap.Bool("available", d.Available),
			zap.Int("active_rentals", d.ActiveRentals),
		)
	}
	a.logger.Debug("availability audit complete", zap.Int("drift", len(drift)))
}
