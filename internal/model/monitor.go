package model

import (
	"fmt"
	"strings"
	"time"
)

// Channel selects where a monitor's fares come from.
type Channel string

const (
	// ChannelAwards resolves fares directly against the award-search API.
	ChannelAwards Channel = "awards"
	// ChannelCash delegates fare resolution to the external cash checker.
	ChannelCash Channel = "cash"
)

// AvailabilityMode selects which award inventory counts as available.
type AvailabilityMode string

const (
	// ModeRewards counts classic reward inventory only.
	ModeRewards AvailabilityMode = "rewards"
	// ModeAny also counts points-plus-pay inventory.
	ModeAny AvailabilityMode = "any"
)

// MaxLegWindowDays caps the span of a leg's search window.
const MaxLegWindowDays = 5

const dateLayout = "2006-01-02"

// Leg is one directional search window.
type Leg struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DateFrom    string `json:"dateFrom"`
	DateTo      string `json:"dateTo"`
}

// Validate checks IATA codes, ISO dates, ordering, and the window cap.
func (l Leg) Validate() error {
	if len(l.Origin) != 3 || len(l.Destination) != 3 {
		return fmt.Errorf("origin and destination must be 3-letter IATA codes, got %q/%q", l.Origin, l.Destination)
	}
	from, err := time.Parse(dateLayout, l.DateFrom)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", l.DateFrom, err)
	}
	to, err := time.Parse(dateLayout, l.DateTo)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", l.DateTo, err)
	}
	if to.Before(from) {
		return fmt.Errorf("leg %s-%s: end date %s is before start date %s", l.Origin, l.Destination, l.DateTo, l.DateFrom)
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxLegWindowDays {
		return fmt.Errorf("leg %s-%s: window of %d days exceeds the %d-day maximum", l.Origin, l.Destination, days, MaxLegWindowDays)
	}
	return nil
}

func (l Leg) String() string {
	return fmt.Sprintf("%s-%s %s..%s", l.Origin, l.Destination, l.DateFrom, l.DateTo)
}

// TrackingState carries all per-epoch tracking data for a monitor. A core
// field edit discards it wholesale.
type TrackingState struct {
	CurrentOutbound []Flight               `json:"currentOutbound,omitempty"`
	CurrentReturn   []Flight               `json:"currentReturn,omitempty"`
	Current         map[Cabin]CombinedFare `json:"current,omitempty"`
	Lowest          map[Cabin]CombinedFare `json:"lowest,omitempty"`
	CashCurrent     map[Cabin]CashFare     `json:"cashCurrent,omitempty"`
	CashLowest      map[Cabin]CashFare     `json:"cashLowest,omitempty"`
	KnownSlots      map[string]bool        `json:"knownSlots,omitempty"`
	CashPending     bool                   `json:"cashPending,omitempty"`
	CashRequestID   int64                  `json:"cashRequestId,omitempty"`
	CashRequestedAt *time.Time             `json:"cashRequestedAt,omitempty"`
}

// Monitor is the unit of refresh, persistence, and alerting.
type Monitor struct {
	ID        string           `json:"id"`
	Label     string           `json:"label"`
	Cabins    []Cabin          `json:"cabins"`
	Channel   Channel          `json:"channel"`
	Mode      AvailabilityMode `json:"mode"`
	Outbound  Leg              `json:"outbound"`
	Return    Leg              `json:"return"`
	CreatedAt time.Time        `json:"createdAt"`
	CheckedAt *time.Time       `json:"checkedAt,omitempty"`
	Tracking  TrackingState    `json:"tracking"`
}

// Validate checks the monitor's definition (not its tracking state).
func (m Monitor) Validate() error {
	if strings.TrimSpace(m.Label) == "" {
		return fmt.Errorf("label is required")
	}
	if len(m.Cabins) == 0 {
		return fmt.Errorf("at least one cabin is required")
	}
	switch m.Channel {
	case ChannelAwards, ChannelCash:
	default:
		return fmt.Errorf("unknown channel %q", m.Channel)
	}
	if m.Channel == ChannelAwards {
		switch m.Mode {
		case ModeRewards, ModeAny:
		default:
			return fmt.Errorf("unknown availability mode %q", m.Mode)
		}
	}
	if err := m.Outbound.Validate(); err != nil {
		return fmt.Errorf("outbound: %w", err)
	}
	if err := m.Return.Validate(); err != nil {
		return fmt.Errorf("return: %w", err)
	}
	return nil
}

// ResetTracking drops all tracking state and re-enters a fresh epoch.
func (m *Monitor) ResetTracking() {
	m.Tracking = TrackingState{}
	m.CheckedAt = nil
}

// SameTrackingScope reports whether other tracks the same thing: route, date
// windows, cabin set, and availability mode. A change in any of these
// invalidates tracking state.
func (m Monitor) SameTrackingScope(other Monitor) bool {
	if m.Outbound != other.Outbound || m.Return != other.Return {
		return false
	}
	if m.Mode != other.Mode || m.Channel != other.Channel {
		return false
	}
	if len(m.Cabins) != len(other.Cabins) {
		return false
	}
	set := make(map[Cabin]bool, len(m.Cabins))
	for _, c := range m.Cabins {
		set[c] = true
	}
	for _, c := range other.Cabins {
		if !set[c] {
			return false
		}
	}
	return true
}

// AlertBatch is one appended entry in the alert queue document.
type AlertBatch struct {
	MonitorID    string    `json:"monitorId"`
	MonitorLabel string    `json:"monitorLabel"`
	Messages     []string  `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
}
