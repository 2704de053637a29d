package fetcher

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"fare-alerts/internal/model"
)

// cabinView is the typed per-cabin shape both availability views resolve to.
// Costs and taxes stay in the API's units here; taxes are in minor currency
// units until normalization.
type cabinView struct {
	Available         bool
	MileageCost       int64
	RemainingSeats    int64
	DirectMileageCost int64
	Airlines          string
	TotalTaxes        int64
	TaxesCurrency     string
}

// flexInt decodes a numeric field defensively: numbers, numeric strings, and
// anything malformed or missing all land on a usable value (zero on garbage).
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	trimmed := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if v, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		*f = flexInt(v)
	}
	return nil
}

// flexBool accepts JSON booleans plus the loose encodings ("true", 1) some
// responses use; everything else is false.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	*f = false
	trimmed := bytes.Trim(bytes.TrimSpace(data), `"`)
	switch string(trimmed) {
	case "true", "True", "1":
		*f = true
	}
	return nil
}

// rawTripDay mirrors one per-date record of the award-search response. Both
// the plain (reward-only) and Raw (points-plus-pay inclusive) field variants
// are decoded here so the availability view is resolved exactly once, at this
// boundary, never by per-field name dispatch downstream.
type rawTripDay struct {
	Date string `json:"Date"`

	YAvailable         flexBool `json:"YAvailable"`
	YMileageCost       flexInt  `json:"YMileageCost"`
	YRemainingSeats    flexInt  `json:"YRemainingSeats"`
	YDirectMileageCost flexInt  `json:"YDirectMileageCost"`
	YAirlines          string   `json:"YAirlines"`
	YTotalTaxes        flexInt  `json:"YTotalTaxes"`
	YTaxesCurrency     string   `json:"YTaxesCurrency"`

	WAvailable         flexBool `json:"WAvailable"`
	WMileageCost       flexInt  `json:"WMileageCost"`
	WRemainingSeats    flexInt  `json:"WRemainingSeats"`
	WDirectMileageCost flexInt  `json:"WDirectMileageCost"`
	WAirlines          string   `json:"WAirlines"`
	WTotalTaxes        flexInt  `json:"WTotalTaxes"`
	WTaxesCurrency     string   `json:"WTaxesCurrency"`

	JAvailable         flexBool `json:"JAvailable"`
	JMileageCost       flexInt  `json:"JMileageCost"`
	JRemainingSeats    flexInt  `json:"JRemainingSeats"`
	JDirectMileageCost flexInt  `json:"JDirectMileageCost"`
	JAirlines          string   `json:"JAirlines"`
	JTotalTaxes        flexInt  `json:"JTotalTaxes"`
	JTaxesCurrency     string   `json:"JTaxesCurrency"`

	FAvailable         flexBool `json:"FAvailable"`
	FMileageCost       flexInt  `json:"FMileageCost"`
	FRemainingSeats    flexInt  `json:"FRemainingSeats"`
	FDirectMileageCost flexInt  `json:"FDirectMileageCost"`
	FAirlines          string   `json:"FAirlines"`
	FTotalTaxes        flexInt  `json:"FTotalTaxes"`
	FTaxesCurrency     string   `json:"FTaxesCurrency"`

	YAvailableRaw         flexBool `json:"YAvailableRaw"`
	YMileageCostRaw       flexInt  `json:"YMileageCostRaw"`
	YRemainingSeatsRaw    flexInt  `json:"YRemainingSeatsRaw"`
	YDirectMileageCostRaw flexInt  `json:"YDirectMileageCostRaw"`
	YAirlinesRaw          string   `json:"YAirlinesRaw"`
	YTotalTaxesRaw        flexInt  `json:"YTotalTaxesRaw"`
	YTaxesCurrencyRaw     string   `json:"YTaxesCurrencyRaw"`

	WAvailableRaw         flexBool `json:"WAvailableRaw"`
	WMileageCostRaw       flexInt  `json:"WMileageCostRaw"`
	WRemainingSeatsRaw    flexInt  `json:"WRemainingSeatsRaw"`
	WDirectMileageCostRaw flexInt  `json:"WDirectMileageCostRaw"`
	WAirlinesRaw          string   `json:"WAirlinesRaw"`
	WTotalTaxesRaw        flexInt  `json:"WTotalTaxesRaw"`
	WTaxesCurrencyRaw     string   `json:"WTaxesCurrencyRaw"`

	JAvailableRaw         flexBool `json:"JAvailableRaw"`
	JMileageCostRaw       flexInt  `json:"JMileageCostRaw"`
	JRemainingSeatsRaw    flexInt  `json:"JRemainingSeatsRaw"`
	JDirectMileageCostRaw flexInt  `json:"JDirectMileageCostRaw"`
	JAirlinesRaw          string   `json:"JAirlinesRaw"`
	JTotalTaxesRaw        flexInt  `json:"JTotalTaxesRaw"`
	JTaxesCurrencyRaw     string   `json:"JTaxesCurrencyRaw"`

	FAvailableRaw         flexBool `json:"FAvailableRaw"`
	FMileageCostRaw       flexInt  `json:"FMileageCostRaw"`
	FRemainingSeatsRaw    flexInt  `json:"FRemainingSeatsRaw"`
	FDirectMileageCostRaw flexInt  `json:"FDirectMileageCostRaw"`
	FAirlinesRaw          string   `json:"FAirlinesRaw"`
	FTotalTaxesRaw        flexInt  `json:"FTotalTaxesRaw"`
	FTaxesCurrencyRaw     string   `json:"FTaxesCurrencyRaw"`
}

// rewardsView exposes classic reward inventory only.
func (d *rawTripDay) rewardsView() map[model.Cabin]cabinView {
	return map[model.Cabin]cabinView{
		model.CabinEconomy: {
			Available:         bool(d.YAvailable),
			MileageCost:       int64(d.YMileageCost),
			RemainingSeats:    int64(d.YRemainingSeats),
			DirectMileageCost: int64(d.YDirectMileageCost),
			Airlines:          d.YAirlines,
			TotalTaxes:        int64(d.YTotalTaxes),
			TaxesCurrency:     d.YTaxesCurrency,
		},
		model.CabinPremium: {
			Available:         bool(d.WAvailable),
			MileageCost:       int64(d.WMileageCost),
			RemainingSeats:    int64(d.WRemainingSeats),
			DirectMileageCost: int64(d.WDirectMileageCost),
			Airlines:          d.WAirlines,
			TotalTaxes:        int64(d.WTotalTaxes),
			TaxesCurrency:     d.WTaxesCurrency,
		},
		model.CabinBusiness: {
			Available:         bool(d.JAvailable),
			MileageCost:       int64(d.JMileageCost),
			RemainingSeats:    int64(d.JRemainingSeats),
			DirectMileageCost: int64(d.JDirectMileageCost),
			Airlines:          d.JAirlines,
			TotalTaxes:        int64(d.JTotalTaxes),
			TaxesCurrency:     d.JTaxesCurrency,
		},
		model.CabinFirst: {
			Available:         bool(d.FAvailable),
			MileageCost:       int64(d.FMileageCost),
			RemainingSeats:    int64(d.FRemainingSeats),
			DirectMileageCost: int64(d.FDirectMileageCost),
			Airlines:          d.FAirlines,
			TotalTaxes:        int64(d.FTotalTaxes),
			TaxesCurrency:     d.FTaxesCurrency,
		},
	}
}

// anyView also counts points-plus-pay inventory.
func (d *rawTripDay) anyView() map[model.Cabin]cabinView {
	return map[model.Cabin]cabinView{
		model.CabinEconomy: {
			Available:         bool(d.YAvailableRaw),
			MileageCost:       int64(d.YMileageCostRaw),
			RemainingSeats:    int64(d.YRemainingSeatsRaw),
			DirectMileageCost: int64(d.YDirectMileageCostRaw),
			Airlines:          d.YAirlinesRaw,
			TotalTaxes:        int64(d.YTotalTaxesRaw),
			TaxesCurrency:     d.YTaxesCurrencyRaw,
		},
		model.CabinPremium: {
			Available:         bool(d.WAvailableRaw),
			MileageCost:       int64(d.WMileageCostRaw),
			RemainingSeats:    int64(d.WRemainingSeatsRaw),
			DirectMileageCost: int64(d.WDirectMileageCostRaw),
			Airlines:          d.WAirlinesRaw,
			TotalTaxes:        int64(d.WTotalTaxesRaw),
			TaxesCurrency:     d.WTaxesCurrencyRaw,
		},
		model.CabinBusiness: {
			Available:         bool(d.JAvailableRaw),
			MileageCost:       int64(d.JMileageCostRaw),
			RemainingSeats:    int64(d.JRemainingSeatsRaw),
			DirectMileageCost: int64(d.JDirectMileageCostRaw),
			Airlines:          d.JAirlinesRaw,
			TotalTaxes:        int64(d.JTotalTaxesRaw),
			TaxesCurrency:     d.JTaxesCurrencyRaw,
		},
		model.CabinFirst: {
			Available:         bool(d.FAvailableRaw),
			MileageCost:       int64(d.FMileageCostRaw),
			RemainingSeats:    int64(d.FRemainingSeatsRaw),
			DirectMileageCost: int64(d.FDirectMileageCostRaw),
			Airlines:          d.FAirlinesRaw,
			TotalTaxes:        int64(d.FTotalTaxesRaw),
			TaxesCurrency:     d.FTaxesCurrencyRaw,
		},
	}
}

func (d *rawTripDay) view(mode model.AvailabilityMode) map[model.Cabin]cabinView {
	if mode == model.ModeAny {
		return d.anyView()
	}
	return d.rewardsView()
}

var centsPerUnit = decimal.NewFromInt(100)

// normalize converts raw per-date records into canonical flights for the
// requested cabins. A cabin entry is emitted only when it is available at a
// strictly positive mileage cost. Output is sorted ascending by date; the
// ordering is relied on only for display.
func normalize(days []rawTripDay, cabins []model.Cabin, mode model.AvailabilityMode) []model.Flight {
	flights := make([]model.Flight, 0, len(days))
	for i := range days {
		day := &days[i]
		views := day.view(mode)
		for _, cabin := range cabins {
			v, ok := views[cabin]
			if !ok || !v.Available || v.MileageCost <= 0 {
				continue
			}
			// The cheapest fare counts as direct only when it matches the
			// cheapest direct fare exactly.
			direct := v.DirectMileageCost > 0 && v.DirectMileageCost == v.MileageCost
			flights = append(flights, model.Flight{
				Date:           day.Date,
				Cabin:          cabin,
				MileageCost:    v.MileageCost,
				RemainingSeats: int(v.RemainingSeats),
				Direct:         direct,
				Airlines:       v.Airlines,
				TotalTaxes:     decimal.NewFromInt(v.TotalTaxes).Div(centsPerUnit),
				TaxCurrency:    v.TaxesCurrency,
			})
		}
	}
	sort.SliceStable(flights, func(i, j int) bool {
		return flights[i].Date < flights[j].Date
	})
	return flights
}
