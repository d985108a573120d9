package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bond-service/internal/auth"
	apperrors "github.com/bond-service/internal/errors"
)

// handleInvestmentAnalysis handles GET /api/portfolio_investment_analysis?portfolio_pk={id}
func (s *Server) handleInvestmentAnalysis(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_pk")
	if portfolioID == "" {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("portfolio_pk", "this query parameter is required"))
		return
	}
	s.analyze(w, r, portfolioID)
}

// handlePortfolioAnalysis handles GET /api/portfolios/{id}/analysis
func (s *Server) handlePortfolioAnalysis(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, mux.Vars(r)["id"])
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, portfolioID string) {
	result, err := s.analysisService.Analyze(r.Context(), portfolioID, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
