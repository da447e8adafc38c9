// Package mail is the outbound trip-summary port. Delivery mechanics belong
// to an external mail service; the core only requests a send and never fails
// a caller on mail errors.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// TripSummary is the digest mailed when a trip completes.
type TripSummary struct {
	TripID            string  `json:"trip_id"`
	Title             string  `json:"title"`
	TargetSpecies     string  `json:"target_species"`
	DurationHours     float64 `json:"duration_hours"`
	Success           bool    `json:"success"`
	ObservationsCount int     `json:"observations_count"`
	VisitedWaypoints  int     `json:"visited_waypoints"`
}

// Mailer sends trip summaries.
type Mailer interface {
	SendTripSummary(ctx context.Context, email string, summary TripSummary) error
}

// LogMailer records the request without sending. Stands in until the mail
// service is wired.
type LogMailer struct {
	Logger *zap.Logger
}

func (m *LogMailer) SendTripSummary(ctx context.Context, email string, summary TripSummary) error {
	m.Logger.Info("trip summary mail requested",
		zap.String("email", email),
		zap.String("trip_id", summary.TripID),
		zap.Bool("success", summary.Success),
	)
	return nil
}
