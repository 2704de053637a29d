package tracker

import (
	"fmt"
	"sort"
	"time"

	"fare-alerts/internal/model"
)

// Update applies one refresh worth of normalized outbound/return flights to
// the monitor's tracking state and returns the alert lines the refresh
// produced. The monitor is mutated; callers persist it afterwards.
func Update(m *model.Monitor, outbound, returning []model.Flight, now time.Time) []string {
	var alerts []string

	alerts = append(alerts, recordSlots(m, outbound, model.DirectionOutbound)...)
	alerts = append(alerts, recordSlots(m, returning, model.DirectionReturn)...)

	current := make(map[model.Cabin]model.CombinedFare, len(m.Cabins))
	for _, cabin := range m.Cabins {
		out, okOut := cheapest(outbound, cabin)
		ret, okRet := cheapest(returning, cabin)
		if !okOut || !okRet {
			// One-sided availability yields no current record; the previous
			// lowest-ever record, if any, stays untouched.
			continue
		}

		currency := out.TaxCurrency
		if currency == "" {
			currency = ret.TaxCurrency
		}
		if currency == "" {
			currency = model.ReferenceCurrency
		}

		fare := model.CombinedFare{
			Points:       out.MileageCost + ret.MileageCost,
			OutboundDate: out.Date,
			ReturnDate:   ret.Date,
			TotalTaxes:   out.TotalTaxes.Add(ret.TotalTaxes),
			TaxCurrency:  currency,
			Direct:       out.Direct && ret.Direct,
			SeenAt:       now,
		}
		current[cabin] = fare

		prev, had := m.Tracking.Lowest[cabin]
		if !had || fare.Points < prev.Points {
			if m.Tracking.Lowest == nil {
				m.Tracking.Lowest = make(map[model.Cabin]model.CombinedFare)
			}
			m.Tracking.Lowest[cabin] = fare
			if had {
				alerts = append(alerts, fmt.Sprintf("New lowest %s: %s pts (out %s, ret %s) (was %s)",
					cabin, model.FormatPoints(fare.Points), fare.OutboundDate, fare.ReturnDate, model.FormatPoints(prev.Points)))
			} else {
				alerts = append(alerts, fmt.Sprintf("New lowest %s: %s pts (out %s, ret %s)",
					cabin, model.FormatPoints(fare.Points), fare.OutboundDate, fare.ReturnDate))
			}
		}
	}

	m.Tracking.Current = current
	m.Tracking.CurrentOutbound = outbound
	m.Tracking.CurrentReturn = returning
	checked := now
	m.CheckedAt = &checked

	return alerts
}

// recordSlots unions newly observed (date, cabin, direction) combinations
// into the monitor's known-slot set, producing one alert line per new slot.
func recordSlots(m *model.Monitor, flights []model.Flight, direction string) []string {
	var alerts []string
	for _, f := range flights {
		key := model.SlotKey(f.Date, f.Cabin, direction)
		if m.Tracking.KnownSlots[key] {
			continue
		}
		if m.Tracking.KnownSlots == nil {
			m.Tracking.KnownSlots = make(map[string]bool)
		}
		m.Tracking.KnownSlots[key] = true
		alerts = append(alerts, fmt.Sprintf("New %s %s available: %s for %s pts",
			direction, f.Cabin, f.Date, model.FormatPoints(f.MileageCost)))
	}
	return alerts
}

// cheapest returns the lowest-cost flight for the cabin. Flights arrive
// sorted by date, so the first minimal entry wins on ties.
func cheapest(flights []model.Flight, cabin model.Cabin) (model.Flight, bool) {
	var best model.Flight
	found := false
	for _, f := range flights {
		if f.Cabin != cabin {
			continue
		}
		if !found || f.MileageCost < best.MileageCost {
			best = f
			found = true
		}
	}
	return best, found
}

// ApplyCashResult applies one cash-checker result to the monitor: the pending
// flag clears, the checked timestamp advances, and each cabin's fare is
// compared against the lowest-ever cash record under the same strictly-lower
// rule as the award channel. Cabin keys are canonicalised first.
func ApplyCashResult(m *model.Monitor, prices map[string]model.CashFare, checkedAt time.Time) []string {
	var alerts []string

	m.Tracking.CashPending = false
	m.Tracking.CashRequestID = 0
	m.Tracking.CashRequestedAt = nil
	checked := checkedAt
	m.CheckedAt = &checked

	labels := make([]string, 0, len(prices))
	for label := range prices {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	current := make(map[model.Cabin]model.CashFare, len(prices))
	for _, label := range labels {
		fare := prices[label]
		cabin := model.CanonicalCabin(label)
		if fare.SeenAt.IsZero() {
			fare.SeenAt = checkedAt
		}
		current[cabin] = fare

		prev, had := m.Tracking.CashLowest[cabin]
		if !had || fare.Amount.LessThan(prev.Amount) {
			if m.Tracking.CashLowest == nil {
				m.Tracking.CashLowest = make(map[model.Cabin]model.CashFare)
			}
			m.Tracking.CashLowest[cabin] = fare
			if had {
				alerts = append(alerts, fmt.Sprintf("New lowest %s cash fare: %s (out %s, ret %s) (was %s)",
					cabin, model.FormatCash(fare.Amount), fare.OutboundDate, fare.ReturnDate, model.FormatCash(prev.Amount)))
			} else {
				alerts = append(alerts, fmt.Sprintf("New lowest %s cash fare: %s (out %s, ret %s)",
					cabin, model.FormatCash(fare.Amount), fare.OutboundDate, fare.ReturnDate))
			}
		}
	}
	m.Tracking.CashCurrent = current

	return alerts
}
