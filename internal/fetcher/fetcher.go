package fetcher

import (
	"context"

	"fare-alerts/internal/model"
)

// LegFetcher retrieves normalized per-date availability for one route leg
// from the award-search API.
type LegFetcher interface {
	FetchLeg(ctx context.Context, leg model.Leg, cabins []model.Cabin, mode model.AvailabilityMode) ([]model.Flight, error)
}
