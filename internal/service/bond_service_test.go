package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/circuitbreaker"
	"github.com/bond-service/internal/isin"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/types"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func datePtr(s string) *models.Date {
	d := models.MustParseDate(s)
	return &d
}

func bondInput(portfolioID, suffix, value, rate, maturity string) *BondInput {
	return &BondInput{
		Portfolio:    strPtr(portfolioID),
		EmissionName: strPtr("Emission " + suffix),
		EmissionISIN: strPtr("CZ000000000" + suffix),
		BondValue:    decPtr(value),
		InterestRate: decPtr(rate),
		PurchaseDate: datePtr("2024-01-01"),
		MaturityDate: datePtr(maturity),
	}
}

func newPortfolio(t *testing.T, f *fixture, name string, owner *auth.Principal) string {
	t.Helper()
	p, err := f.portfolioService.CreatePortfolio(context.Background(), &CreatePortfolioInput{Name: name}, owner)
	require.NoError(t, err)
	return p.ID
}

func TestCreateBond(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	pid := newPortfolio(t, f, "Main", alice)

	bond, err := f.bondService.CreateBond(ctx, bondInput(pid, "1", "100", "15.5", "2030-06-30"), alice)
	require.NoError(t, err)
	assert.NotEmpty(t, bond.ID)
	assert.Equal(t, pid, bond.PortfolioID)
	assert.Equal(t, "100.00", bond.BondValue.StringFixed(2))
	assert.Equal(t, "15.50", bond.InterestRate.StringFixed(2))
	assert.Equal(t, types.FrequencyMonthly, bond.YieldsFrequency, "frequency defaults to monthly")
	assert.Equal(t, "2030-06-30", bond.MaturityDate.String())
}

func TestCreateBondExplicitFrequency(t *testing.T) {
	f := newFixture(nil)
	pid := newPortfolio(t, f, "Main", alice)

	in := bondInput(pid, "1", "100", "1", "2030-06-30")
	q := types.FrequencyQuarterly
	in.YieldsFrequency = &q

	bond, err := f.bondService.CreateBond(context.Background(), in, alice)
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyQuarterly, bond.YieldsFrequency)
}

func TestCreateBondValidation(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	pid := newPortfolio(t, f, "Main", alice)

	tests := []struct {
		name   string
		mutate func(in *BondInput)
		field  string
	}{
		{"missing portfolio", func(in *BondInput) { in.Portfolio = nil }, "portfolio"},
		{"unknown portfolio", func(in *BondInput) { in.Portfolio = strPtr("nope") }, "portfolio"},
		{"missing name", func(in *BondInput) { in.EmissionName = nil }, "emission_name"},
		{"blank name", func(in *BondInput) { in.EmissionName = strPtr(" ") }, "emission_name"},
		{"long name", func(in *BondInput) { in.EmissionName = strPtr(strings.Repeat("n", 51)) }, "emission_name"},
		{"long isin", func(in *BondInput) { in.EmissionISIN = strPtr(strings.Repeat("I", 51)) }, "emission_isin"},
		{"missing value", func(in *BondInput) { in.BondValue = nil }, "bond_value"},
		{"negative value", func(in *BondInput) { in.BondValue = decPtr("-1") }, "bond_value"},
		{"three places", func(in *BondInput) { in.BondValue = decPtr("1.005") }, "bond_value"},
		{"huge value", func(in *BondInput) { in.BondValue = decPtr("1000000000000000000") }, "bond_value"},
		{"rate too large", func(in *BondInput) { in.InterestRate = decPtr("1000") }, "interest_rate"},
		{"negative rate", func(in *BondInput) { in.InterestRate = decPtr("-0.01") }, "interest_rate"},
		{"missing purchase date", func(in *BondInput) { in.PurchaseDate = nil }, "purchase_date"},
		{"missing maturity date", func(in *BondInput) { in.MaturityDate = nil }, "maturity_date"},
		{"bad frequency", func(in *BondInput) { v := types.YieldsFrequency(6); in.YieldsFrequency = &v }, "yields_frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bondInput(pid, "1", "100.00", "5.00", "2030-01-01")
			tt.mutate(in)
			_, err := f.bondService.CreateBond(ctx, in, alice)
			catErr := assertStatus(t, err, http.StatusBadRequest)
			assert.Contains(t, catErr.Details, tt.field)
		})
	}
	assert.Empty(t, f.bonds.bonds)
}

func TestCreateBondBoundaryAmounts(t *testing.T) {
	f := newFixture(nil)
	pid := newPortfolio(t, f, "Main", alice)

	_, err := f.bondService.CreateBond(context.Background(), bondInput(pid, "1", "999999999999999999.99", "999.99", "2030-01-01"), alice)
	require.NoError(t, err)
	_, err = f.bondService.CreateBond(context.Background(), bondInput(pid, "2", "0", "0", "2030-01-01"), alice)
	require.NoError(t, err)
}

func TestCreateBondInForeignPortfolio(t *testing.T) {
	f := newFixture(nil)
	pid := newPortfolio(t, f, "Alice's", alice)

	_, err := f.bondService.CreateBond(context.Background(), bondInput(pid, "1", "100", "5", "2030-01-01"), bob)
	assertStatus(t, err, http.StatusForbidden)

	_, err = f.bondService.CreateBond(context.Background(), bondInput(pid, "1", "100", "5", "2030-01-01"), admin)
	assert.NoError(t, err)
}

func TestCreateBondDuplicates(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	pid := newPortfolio(t, f, "Main", alice)

	_, err := f.bondService.CreateBond(ctx, bondInput(pid, "1", "100", "5", "2030-01-01"), alice)
	require.NoError(t, err)

	sameName := bondInput(pid, "2", "100", "5", "2030-01-01")
	sameName.EmissionName = strPtr("Emission 1")
	_, err = f.bondService.CreateBond(ctx, sameName, alice)
	catErr := assertStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, catErr.Details, "emission_name")

	sameISIN := bondInput(pid, "3", "100", "5", "2030-01-01")
	sameISIN.EmissionISIN = strPtr("CZ0000000001")
	_, err = f.bondService.CreateBond(ctx, sameISIN, alice)
	catErr = assertStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, catErr.Details, "emission_isin")
}

func TestCreateBondISINOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"rejected", &isin.RejectedError{ISIN: "CZ0000000001"}, http.StatusBadRequest, "ISIN CZ0000000001 is not found in the central depository."},
		{"upstream error status", &isin.UpstreamError{StatusCode: 500}, http.StatusBadRequest, "API request error: 500"},
		{"registry unreachable", errors.New("dial tcp: connection refused"), http.StatusBadGateway, ""},
		{"circuit open", fmt.Errorf("lookup: %w", circuitbreaker.ErrCircuitOpen), http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(func(ctx context.Context, code string) error { return tt.err })
			pid := newPortfolio(t, f, "Main", alice)

			_, err := f.bondService.CreateBond(context.Background(), bondInput(pid, "1", "100", "5", "2030-01-01"), alice)
			catErr := assertStatus(t, err, tt.status)
			if tt.message != "" {
				assert.Equal(t, tt.message, catErr.Details["emission_isin"])
			}
			assert.Empty(t, f.bonds.bonds)
		})
	}
}

func TestCreateBondSkipsRegistryWhenForbidden(t *testing.T) {
	calls := 0
	f := newFixture(func(ctx context.Context, code string) error {
		calls++
		return nil
	})
	pid := newPortfolio(t, f, "Main", alice)

	_, err := f.bondService.CreateBond(context.Background(), bondInput(pid, "1", "100", "5", "2030-01-01"), bob)
	assertStatus(t, err, http.StatusForbidden)
	assert.Zero(t, calls)
}

func TestGetAndListBonds(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	ap := newPortfolio(t, f, "A", alice)
	bp := newPortfolio(t, f, "B", bob)

	ab, err := f.bondService.CreateBond(ctx, bondInput(ap, "1", "100", "5", "2030-01-01"), alice)
	require.NoError(t, err)
	_, err = f.bondService.CreateBond(ctx, bondInput(bp, "2", "100", "5", "2030-01-01"), bob)
	require.NoError(t, err)

	got, err := f.bondService.GetBond(ctx, ab.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, ab.EmissionISIN, got.EmissionISIN)

	_, err = f.bondService.GetBond(ctx, ab.ID, bob)
	assertStatus(t, err, http.StatusForbidden)

	_, err = f.bondService.GetBond(ctx, "missing", alice)
	assertStatus(t, err, http.StatusNotFound)

	own, err := f.bondService.ListBonds(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, ab.ID, own[0].ID)

	all, err := f.bondService.ListBonds(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.bondService.ListBonds(ctx, nil)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestUpdateBondPartial(t *testing.T) {
	calls := 0
	f := newFixture(func(ctx context.Context, code string) error {
		calls++
		return nil
	})
	ctx := context.Background()
	pid := newPortfolio(t, f, "Main", alice)

	bond, err := f.bondService.CreateBond(ctx, bondInput(pid, "1", "100", "5", "2030-01-01"), alice)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	updated, err := f.bondService.UpdateBond(ctx, bond.ID, &BondInput{BondValue: decPtr("250.5")}, true, alice)
	require.NoError(t, err)
	assert.Equal(t, "250.50", updated.BondValue.StringFixed(2))
	assert.Equal(t, "Emission 1", updated.EmissionName)
	assert.Equal(t, 1, calls, "unchanged ISIN is not checked again")

	_, err = f.bondService.UpdateBond(ctx, bond.ID, &BondInput{EmissionISIN: strPtr("CZ0000000009")}, true, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "CZ0000000009", f.bonds.bonds[bond.ID].EmissionISIN)
}

func TestUpdateBondFull(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	pid := newPortfolio(t, f, "Main", alice)

	in := bondInput(pid, "1", "100", "5", "2030-01-01")
	a := types.FrequencyAnnually
	in.YieldsFrequency = &a
	bond, err := f.bondService.CreateBond(ctx, in, alice)
	require.NoError(t, err)

	_, err = f.bondService.UpdateBond(ctx, bond.ID, &BondInput{BondValue: decPtr("1")}, false, alice)
	assertStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "100.00", f.bonds.bonds[bond.ID].BondValue.StringFixed(2), "failed update leaves the bond intact")

	updated, err := f.bondService.UpdateBond(ctx, bond.ID, bondInput(pid, "1", "300", "7", "2031-01-01"), false, alice)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultYieldsFrequency, updated.YieldsFrequency, "full update resets omitted frequency")
	assert.Equal(t, "2031-01-01", updated.MaturityDate.String())
}

func TestUpdateBondMoveBetweenPortfolios(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	first := newPortfolio(t, f, "First", alice)
	second := newPortfolio(t, f, "Second", alice)
	foreign := newPortfolio(t, f, "Foreign", bob)

	bond, err := f.bondService.CreateBond(ctx, bondInput(first, "1", "100", "5", "2030-01-01"), alice)
	require.NoError(t, err)

	_, err = f.bondService.UpdateBond(ctx, bond.ID, &BondInput{Portfolio: strPtr(foreign)}, true, alice)
	assertStatus(t, err, http.StatusForbidden)

	_, err = f.bondService.UpdateBond(ctx, bond.ID, &BondInput{Portfolio: strPtr("missing")}, true, alice)
	catErr := assertStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, catErr.Details, "portfolio")

	moved, err := f.bondService.UpdateBond(ctx, bond.ID, &BondInput{Portfolio: strPtr(second)}, true, alice)
	require.NoError(t, err)
	assert.Equal(t, second, moved.PortfolioID)

	_, err = f.bondService.UpdateBond(ctx, bond.ID, &BondInput{BondValue: decPtr("1")}, true, bob)
	assertStatus(t, err, http.StatusForbidden)
}

func TestDeleteBond(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	pid := newPortfolio(t, f, "Main", alice)

	bond, err := f.bondService.CreateBond(ctx, bondInput(pid, "1", "100", "5", "2030-01-01"), alice)
	require.NoError(t, err)

	assertStatus(t, f.bondService.DeleteBond(ctx, bond.ID, bob), http.StatusForbidden)
	require.NoError(t, f.bondService.DeleteBond(ctx, bond.ID, alice))
	assertStatus(t, f.bondService.DeleteBond(ctx, bond.ID, alice), http.StatusNotFound)
}
