package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"fare-alerts/internal/model"
)

// FareSample is one persisted per-cabin observation from a refresh or a cash
// result, feeding the show and export surfaces.
type FareSample struct {
	ID           int64
	MonitorID    string
	Cabin        model.Cabin
	Channel      model.Channel
	Points       *int64
	CashAmount   *decimal.Decimal
	TotalTaxes   decimal.Decimal
	Currency     string
	OutboundDate string
	ReturnDate   string
	Direct       bool
	ObservedAt   time.Time
}
