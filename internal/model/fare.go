package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the fixed fallback currency for cash taxes and the
// currency cash fares are quoted in.
const ReferenceCurrency = "AUD"

// Leg directions used in slot keys and alert lines.
const (
	DirectionOutbound = "outbound"
	DirectionReturn   = "return"
)

// Flight is one canonical per-date, per-cabin availability record.
type Flight struct {
	Date           string          `json:"date"`
	Cabin          Cabin           `json:"cabin"`
	MileageCost    int64           `json:"mileageCost"`
	RemainingSeats int             `json:"remainingSeats"`
	Direct         bool            `json:"direct"`
	Airlines       string          `json:"airlines"`
	TotalTaxes     decimal.Decimal `json:"totalTaxes"`
	TaxCurrency    string          `json:"taxCurrency"`
}

// CombinedFare is a round-trip award observation for one cabin: cheapest
// outbound plus cheapest return within the monitor's current windows.
type CombinedFare struct {
	Points       int64           `json:"points"`
	OutboundDate string          `json:"outboundDate"`
	ReturnDate   string          `json:"returnDate"`
	TotalTaxes   decimal.Decimal `json:"totalTaxes"`
	TaxCurrency  string          `json:"taxCurrency"`
	Direct       bool            `json:"direct"`
	SeenAt       time.Time       `json:"seenAt"`
}

// CashFare is a round-trip cash observation for one cabin, quoted in the
// reference currency.
type CashFare struct {
	Amount       decimal.Decimal `json:"amount"`
	OutboundDate string          `json:"outboundDate"`
	ReturnDate   string          `json:"returnDate"`
	Direct       bool            `json:"direct"`
	SeenAt       time.Time       `json:"seenAt"`
}

// SlotKey builds the composite `date|cabinCode|direction` key recording one
// observed availability combination.
func SlotKey(date string, cabin Cabin, direction string) string {
	return date + "|" + cabin.Code() + "|" + direction
}

// FormatPoints renders a points amount with thousands separators.
func FormatPoints(v int64) string {
	return groupDigits(fmt.Sprintf("%d", v))
}

// FormatCash renders a cash amount in the reference currency, e.g. "A$4,280.50".
func FormatCash(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	return "A$" + groupDigits(intPart) + "." + fracPart
}

func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
