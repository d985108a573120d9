package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bond-service/internal/types"
)

// Bond is a single bond emission held in a portfolio.
// BondValue and InterestRate carry two decimal places; InterestRate is a
// percentage (15.00 means 15%).
type Bond struct {
	ID              string                `json:"id" db:"id"`
	PortfolioID     string                `json:"portfolio" db:"portfolio_id"`
	EmissionName    string                `json:"emission_name" db:"emission_name"`
	EmissionISIN    string                `json:"emission_isin" db:"emission_isin"`
	BondValue       decimal.Decimal       `json:"bond_value" db:"bond_value"`
	InterestRate    decimal.Decimal       `json:"interest_rate" db:"interest_rate"`
	PurchaseDate    Date                  `json:"purchase_date" db:"purchase_date"`
	MaturityDate    Date                  `json:"maturity_date" db:"maturity_date"`
	YieldsFrequency types.YieldsFrequency `json:"yields_frequency" db:"yields_frequency"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at" db:"updated_at"`
}

// MarshalJSON renders money and rate with their two fixed places
func (b Bond) MarshalJSON() ([]byte, error) {
	type plain Bond
	return json.Marshal(struct {
		plain
		BondValue    string `json:"bond_value"`
		InterestRate string `json:"interest_rate"`
	}{
		plain:        plain(b),
		BondValue:    b.BondValue.StringFixed(2),
		InterestRate: b.InterestRate.StringFixed(2),
	})
}
