package model

import "strings"

// Cabin identifies a tracked cabin class.
type Cabin string

const (
	CabinBusiness Cabin = "business"
	CabinPremium  Cabin = "premium"
	CabinEconomy  Cabin = "economy"
	CabinFirst    Cabin = "first"
)

var cabinCodes = map[Cabin]string{
	CabinBusiness: "J",
	CabinPremium:  "W",
	CabinEconomy:  "Y",
	CabinFirst:    "F",
}

var cabinsByCode = map[string]Cabin{
	"J": CabinBusiness,
	"W": CabinPremium,
	"Y": CabinEconomy,
	"F": CabinFirst,
}

// AllCabins lists the canonical cabin set in tracking order.
func AllCabins() []Cabin {
	return []Cabin{CabinBusiness, CabinPremium, CabinEconomy, CabinFirst}
}

// Code returns the booking-class letter used in compact tracking keys.
// Cabins outside the canonical set fall back to their uppercased label.
func (c Cabin) Code() string {
	if code, ok := cabinCodes[c]; ok {
		return code
	}
	return strings.ToUpper(string(c))
}

// CanonicalCabin maps an arbitrary cabin label (full name or letter code,
// any casing) onto the canonical form. Unknown labels degrade to their own
// uppercased form rather than failing.
func CanonicalCabin(label string) Cabin {
	trimmed := strings.TrimSpace(label)
	lowered := strings.ToLower(trimmed)
	switch lowered {
	case "business", "b":
		return CabinBusiness
	case "premium", "premium economy", "pe":
		return CabinPremium
	case "economy", "econ":
		return CabinEconomy
	case "first":
		return CabinFirst
	}
	if cabin, ok := cabinsByCode[strings.ToUpper(trimmed)]; ok {
		return cabin
	}
	return Cabin(strings.ToUpper(trimmed))
}

// CanonicalCabins canonicalises a list of labels, dropping duplicates while
// keeping first-seen order.
func CanonicalCabins(labels []string) []Cabin {
	seen := make(map[Cabin]bool, len(labels))
	cabins := make([]Cabin, 0, len(labels))
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			continue
		}
		cabin := CanonicalCabin(label)
		if seen[cabin] {
			continue
		}
		seen[cabin] = true
		cabins = append(cabins, cabin)
	}
	return cabins
}
