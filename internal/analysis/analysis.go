// Package analysis computes the investment summary of a portfolio's bonds:
// average interest rate, nearest maturity, total value and the compounded
// future value at the nearest maturity date.
package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bond-service/internal/models"
)

// NoBondsMessage is returned in place of figures for an empty portfolio
const NoBondsMessage = "Portfolio contains no bonds."

var daysPerYear = decimal.RequireFromString("365.25")

// Result is the outcome of analysing one portfolio. When the portfolio holds
// no bonds only Message is set.
type Result struct {
	Message             string
	AverageInterestRate decimal.Decimal
	NearestMaturityBond *models.Bond
	TotalValue          decimal.Decimal
	FutureValue         decimal.Decimal
	// YearsToMaturity is the fractional year count used as the exponent.
	YearsToMaturity decimal.Decimal
}

// Empty reports whether the result carries the no-bonds message
func (r *Result) Empty() bool {
	return r.NearestMaturityBond == nil
}

// Compute analyses bonds as of today. Bonds are taken in the order given;
// among bonds sharing the earliest maturity the first one wins.
func Compute(bonds []*models.Bond, today models.Date) (*Result, error) {
	if len(bonds) == 0 {
		return &Result{Message: NoBondsMessage}, nil
	}

	total := decimal.Zero
	rates := decimal.Zero
	nearest := bonds[0]
	for _, b := range bonds {
		total = round(total.Add(b.BondValue))
		rates = round(rates.Add(b.InterestRate))
		if b.MaturityDate.Before(nearest.MaturityDate) {
			nearest = b
		}
	}

	average := div(rates, decimal.NewFromInt(int64(len(bonds))))

	days := nearest.MaturityDate.DaysSince(today)
	years := div(decimal.NewFromInt(int64(days)), daysPerYear)

	base := round(decimal.NewFromInt(1).Add(div(average, hundred)))
	growth, err := pow(base, years)
	if err != nil {
		return nil, fmt.Errorf("compounding %s over %s years: %w", base, years, err)
	}

	return &Result{
		AverageInterestRate: average,
		NearestMaturityBond: nearest,
		TotalValue:          total,
		FutureValue:         round(total.Mul(growth)),
		YearsToMaturity:     years,
	}, nil
}

// MarshalJSON renders either the message payload or the four figures.
// Figures are decimal strings; exact values keep two places ("15.00").
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Empty() {
		msg := r.Message
		if msg == "" {
			msg = NoBondsMessage
		}
		return json.Marshal(map[string]string{"message": msg})
	}
	return json.Marshal(struct {
		AverageInterestRate string       `json:"average_interest_rate"`
		NearestMaturityBond *models.Bond `json:"nearest_maturity_bond"`
		TotalValue          string       `json:"total_value"`
		FutureValue         string       `json:"future_value"`
	}{
		AverageInterestRate: FormatDecimal(r.AverageInterestRate),
		NearestMaturityBond: r.NearestMaturityBond,
		TotalValue:          FormatDecimal(r.TotalValue),
		FutureValue:         FormatDecimal(r.FutureValue),
	})
}

// FormatDecimal prints d with two places when that is exact, otherwise with
// all of its significant digits.
func FormatDecimal(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}
