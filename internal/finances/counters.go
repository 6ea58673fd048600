// Package finances holds what the engagement, versement and offrande slices
// share: versement types, engagement counters and the yearly overview.
package finances

import (
	"context"
	"sort"
)

// VersementType classifies a payment.
type VersementType string

const (
	TypeDime                 VersementType = "DIME"
	TypeDetteDime            VersementType = "DETTE_DIME"
	TypeDetteCotisation      VersementType = "DETTE_COTISATION"
	TypeOffrandeConstruction VersementType = "OFFRANDE_CONSTRUCTION"
)

// VersementTypes lists the types in display order.
var VersementTypes = []VersementType{TypeDime, TypeDetteDime, TypeDetteCotisation, TypeOffrandeConstruction}

// Valid reports whether t is a known type.
func (t VersementType) Valid() bool {
	for _, known := range VersementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the French display name.
func (t VersementType) Label() string {
	switch t {
	case TypeDime:
		return "Dîme"
	case TypeDetteDime:
		return "Dette Dîme"
	case TypeDetteCotisation:
		return "Dette Cotisation"
	case TypeOffrandeConstruction:
		return "Offrande Construction"
	default:
		return string(t)
	}
}

// Counter names an engagement's available_* column.
type Counter string

const (
	CounterNone            Counter = ""
	CounterDime            Counter = "available_dime"
	CounterCotisation      Counter = "available_cotisation"
	CounterDetteDime       Counter = "available_dette_dime"
	CounterDetteCotisation Counter = "available_dette_cotisation"
)

// Counter returns the engagement counter a versement of type t feeds.
// Construction offerings are not pledged and feed none.
func (t VersementType) Counter() Counter {
	switch t {
	case TypeDime:
		return CounterDime
	case TypeDetteDime:
		return CounterDetteDime
	case TypeDetteCotisation:
		return CounterDetteCotisation
	default:
		return CounterNone
	}
}

// Effect is what one versement contributes to an engagement.
type Effect struct {
	EngagementID int64
	Type         VersementType
	Somme        int64
}

// Adjustment adds Delta to one counter of one engagement.
type Adjustment struct {
	EngagementID int64
	Counter      Counter
	Delta        int64
}

// PlanAdjustments computes the counter changes that replace the effect of
// before with the effect of after. Either side may be nil (create or delete).
// Adjustments on the same counter are merged, zero deltas dropped, and the
// result is ordered by engagement id so concurrent writers lock rows in the
// same order.
func PlanAdjustments(before, after *Effect) []Adjustment {
	type key struct {
		id      int64
		counter Counter
	}
	deltas := map[key]int64{}
	apply := func(e *Effect, sign int64) {
		if e == nil || e.EngagementID <= 0 {
			return
		}
		counter := e.Type.Counter()
		if counter == CounterNone {
			return
		}
		deltas[key{e.EngagementID, counter}] += sign * e.Somme
	}
	apply(before, -1)
	apply(after, 1)

	out := make([]Adjustment, 0, len(deltas))
	for k, d := range deltas {
		if d != 0 {
			out = append(out, Adjustment{EngagementID: k.id, Counter: k.counter, Delta: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EngagementID != out[j].EngagementID {
			return out[i].EngagementID < out[j].EngagementID
		}
		return out[i].Counter < out[j].Counter
	})
	return out
}

// CacheBumper invalidates cached aggregates after a finance write.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// NopBumper ignores bumps.
type NopBumper struct{}

func (NopBumper) Bump(context.Context) error { return nil }
