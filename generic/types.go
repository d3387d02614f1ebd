/*
Package generic provides the domain-neutral building blocks of the leave engine.

PURPOSE:
  Calendar days, inclusive periods, decimal quantities, sentinel errors and
  the audit log contract. Nothing in here knows about roles, leave types or
  approval rules; those live in package leave.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 5 days)
  - Percent: Ratio helpers used by dashboard statistics
  - IDs: Type-safe identifiers for audit entries

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for balances and averages
  2. Day granularity: Every date is a UTC calendar day
  3. Type Safety: Strong typing for IDs prevents mixing employee/request IDs

USAGE:
  remaining := generic.NewAmountFromInt(12, generic.UnitDays).
      Sub(generic.NewAmountFromInt(used, generic.UnitDays))

SEE ALSO:
  - time.go: TimePoint and day arithmetic
  - period.go: Inclusive ranges and overlap
  - store.go: Audit log interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal `json:"value"`
	Unit  Unit            `json:"unit"`
}

type Unit string

const (
	UnitDays    Unit = "days"
	UnitPercent Unit = "percent"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// String renders "5 days".
func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// RATIOS
// =============================================================================

// Average divides total by count, rounded to two decimal places.
// Zero count yields zero.
func Average(total, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(total)).
		Div(decimal.NewFromInt(int64(count))).
		Round(2)
}

// Percent returns part/whole*100 rounded to two decimal places.
func Percent(part, whole int) Amount {
	if whole == 0 {
		return Amount{Value: decimal.Zero, Unit: UnitPercent}
	}
	v := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2)
	return Amount{Value: v, Unit: UnitPercent}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type ActorID string
