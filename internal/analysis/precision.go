package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the number of significant digits every intermediate result is
// rounded to, half-even.
const Precision = 28

// workPlaces is the number of fractional digits kept by transcendental and
// division steps before they are rounded to Precision.
const workPlaces = 60

var hundred = decimal.NewFromInt(100)

// round rounds d to Precision significant digits using banker's rounding.
func round(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.NumDigits() <= Precision {
		return d
	}
	// exponent of the most significant digit
	adjusted := int32(d.NumDigits()) + d.Exponent() - 1
	return d.RoundBank(Precision - 1 - adjusted)
}

// div divides a by b and rounds the quotient to Precision significant digits.
func div(a, b decimal.Decimal) decimal.Decimal {
	return round(a.DivRound(b, workPlaces))
}

// pow raises base to a fractional exponent as exp(exponent * ln(base)).
// base must be positive.
func pow(base, exponent decimal.Decimal) (decimal.Decimal, error) {
	if !base.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("power base must be positive, got %s", base)
	}
	if exponent.IsZero() || base.Equal(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1), nil
	}

	ln, err := base.Ln(workPlaces)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("ln(%s): %w", base, err)
	}
	result, err := exp(ln.Mul(exponent))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return round(result), nil
}

// exp evaluates e^x, taking the reciprocal for negative x.
func exp(x decimal.Decimal) (decimal.Decimal, error) {
	if x.IsNegative() {
		e, err := x.Neg().ExpTaylor(workPlaces)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("exp: %w", err)
		}
		return decimal.NewFromInt(1).DivRound(e, workPlaces), nil
	}
	e, err := x.ExpTaylor(workPlaces)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("exp: %w", err)
	}
	return e, nil
}
