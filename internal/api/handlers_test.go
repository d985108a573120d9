package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bond-service/internal/analysis"
	"github.com/bond-service/internal/auth"
	apperrors "github.com/bond-service/internal/errors"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/types"
)

func TestObtainToken(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)

	w := ts.do("POST", "/api/token", map[string]string{"username": "alice", "password": "pw"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	// the access token authenticates subsequent requests
	w = ts.do("GET", "/api/portfolios", nil, pair.Access)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ts.portfolios.lastPrincipal)
	assert.Equal(t, "id-alice", ts.portfolios.lastPrincipal.UserID)
	assert.False(t, ts.portfolios.lastPrincipal.IsSuperuser)

	// refresh tokens are not accepted as bearer credentials
	w = ts.do("GET", "/api/portfolios", nil, pair.Refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestObtainTokenFailures(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)

	w := ts.do("POST", "/api/token", map[string]string{"username": "alice", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w)["code"])

	w = ts.do("POST", "/api/token", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details := decodeError(t, w)["details"].(map[string]interface{})
	assert.Contains(t, details, "password")

	w = ts.do("POST", "/api/token", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshAndVerifyToken(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	pair, err := ts.tokens.IssuePair(&models.User{ID: "u1", Username: "u1"})
	require.NoError(t, err)

	w := ts.do("POST", "/api/token/refresh", map[string]string{"refresh": pair.Refresh}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed["access"])

	w = ts.do("POST", "/api/token/refresh", map[string]string{"refresh": pair.Access}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusOK, ts.do("POST", "/api/token/verify", map[string]string{"token": pair.Access}, "").Code)
	assert.Equal(t, http.StatusOK, ts.do("POST", "/api/token/verify", map[string]string{"token": pair.Refresh}, "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do("POST", "/api/token/verify", map[string]string{"token": "garbage"}, "").Code)
}

func TestInvalidBearerToken(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)

	w := ts.do("GET", "/api/portfolios", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeTokenInvalid, decodeError(t, w)["code"])
	assert.Nil(t, ts.portfolios.lastPrincipal, "handler must not run")
}

func TestAnonymousRequestIsUnauthorized(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)

	w := ts.do("GET", "/api/portfolios", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication credentials were not provided.", decodeError(t, w)["message"])
}

func TestRegister(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)

	w := ts.do("POST", "/api/user_register", map[string]string{
		"username": "carol", "password": "x1", "password2": "x1",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")

	w = ts.do("POST", "/api/user_register", map[string]string{
		"username": "carol", "password": "x1", "password2": "x2",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details := decodeError(t, w)["details"].(map[string]interface{})
	assert.Equal(t, "Password fields didn't match.", details["password"])
}

func TestUpdatePortfolioPutAndPatch(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	token := ts.accessToken(t, "alice", false)

	w := ts.do("PUT", "/api/portfolios/p1", map[string]string{"name": "Renamed"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.portfolios.lastPartial)

	w = ts.do("PATCH", "/api/portfolios/p1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.portfolios.lastPartial)
}

func TestDeletePortfolio(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	token := ts.accessToken(t, "alice", false)

	w := ts.do("DELETE", "/api/portfolios/p1", nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	ts.portfolios.err = apperrors.NewForbiddenError("You do not have permission to perform this action.")
	w = ts.do("DELETE", "/api/portfolios/p1", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w)["code"])
}

func TestCreateBondDecodesBody(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	token := ts.accessToken(t, "alice", false)

	body := `{
		"portfolio": "p1",
		"emission_name": "Bond A",
		"emission_isin": "CZ0003551251",
		"bond_value": "1000.50",
		"interest_rate": 4.25,
		"purchase_date": "2024-01-15",
		"maturity_date": "2030-01-15"
	}`
	w := ts.do("POST", "/api/bonds", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	in := ts.bonds.lastInput
	require.NotNil(t, in)
	assert.True(t, in.BondValue.Equal(decimal.RequireFromString("1000.5")))
	assert.True(t, in.InterestRate.Equal(decimal.RequireFromString("4.25")))
	assert.Equal(t, "2030-01-15", in.MaturityDate.String())
	assert.Nil(t, in.YieldsFrequency)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "1000.50", out["bond_value"])
	assert.Equal(t, "4.25", out["interest_rate"])
	assert.Equal(t, "p1", out["portfolio"])
	assert.Equal(t, "2024-01-15", out["purchase_date"])
}

func TestCreateBondRejectsBadFrequency(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	token := ts.accessToken(t, "alice", false)

	w := ts.do("POST", "/api/bonds", `{"portfolio":"p1","yields_frequency":6}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, ts.bonds.lastInput)
}

func TestUpdateBondPatch(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	token := ts.accessToken(t, "alice", false)

	w := ts.do("PATCH", "/api/bonds/b1", map[string]interface{}{"yields_frequency": 4}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.bonds.lastPartial)
	require.NotNil(t, ts.bonds.lastInput.YieldsFrequency)
	assert.Equal(t, types.FrequencyQuarterly, *ts.bonds.lastInput.YieldsFrequency)
}

func TestInvestmentAnalysis(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	token := ts.accessToken(t, "alice", false)

	bond := &models.Bond{
		ID:           "b1",
		PortfolioID:  "p1",
		BondValue:    decimal.RequireFromString("100"),
		InterestRate: decimal.RequireFromString("15"),
		MaturityDate: models.MustParseDate("2025-04-01"),
	}
	ts.analysis.result = &analysis.Result{
		AverageInterestRate: decimal.RequireFromString("15"),
		NearestMaturityBond: bond,
		TotalValue:          decimal.RequireFromString("200"),
		FutureValue:         decimal.RequireFromString("202.3865401992690540748028316"),
	}

	w := ts.do("GET", "/api/portfolio_investment_analysis?portfolio_pk=p1", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "p1", ts.analysis.lastID)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "15.00", out["average_interest_rate"])
	assert.Equal(t, "200.00", out["total_value"])
	assert.Equal(t, "202.3865401992690540748028316", out["future_value"])
	nearest := out["nearest_maturity_bond"].(map[string]interface{})
	assert.Equal(t, "b1", nearest["id"])

	w = ts.do("GET", "/api/portfolios/p9/analysis", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p9", ts.analysis.lastID)
}

func TestInvestmentAnalysisEmptyPortfolio(t *testing.T) {
	ts := createTestServer(testServerConfig(), nil)
	ts.analysis.result = &analysis.Result{Message: analysis.NoBondsMessage}

	w := ts.do("GET", "/api/portfolio_investment_analysis?portfolio_pk=p1", nil, ts.accessToken(t, "alice", false))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Portfolio contains no bonds."}`, w.Body.String())
}

func TestInvestmentAnalysisErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		token  bool
		err    error
		status int
	}{
		{"missing parameter", "/api/portfolio_investment_analysis", true, nil, http.StatusBadRequest},
		{"anonymous", "/api/portfolio_investment_analysis?portfolio_pk=p1", false, nil, http.StatusUnauthorized},
		{"forbidden", "/api/portfolio_investment_analysis?portfolio_pk=p1", true, auth.Forbidden.Err(), http.StatusForbidden},
		{"not found", "/api/portfolio_investment_analysis?portfolio_pk=p1", true, apperrors.NewNotFoundError("portfolio", "p1"), http.StatusNotFound},
		{"internal", "/api/portfolio_investment_analysis?portfolio_pk=p1", true, apperrors.NewDatabaseError("list bonds", assert.AnError), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := createTestServer(testServerConfig(), nil)
			ts.analysis.err = tt.err
			token := ""
			if tt.token {
				token = ts.accessToken(t, "alice", false)
			}

			w := ts.do("GET", tt.path, nil, token)
			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.NotEmpty(t, body["code"])
			assert.NotContains(t, w.Body.String(), assert.AnError.Error(), "causes stay server-side")
		})
	}
}
