package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/service"
)

// handleListPortfolios handles GET /api/portfolios
func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.portfolioService.ListPortfolios(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolios)
}

// handleCreatePortfolio handles POST /api/portfolios
func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var input service.CreatePortfolioInput
	if err := parseJSONBody(r, &input); err != nil {
		respondInvalidBody(w, err)
		return
	}

	portfolio, err := s.portfolioService.CreatePortfolio(r.Context(), &input, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, portfolio)
}

// handleGetPortfolio handles GET /api/portfolios/{id}
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.portfolioService.GetPortfolio(r.Context(), mux.Vars(r)["id"], auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

// handleUpdatePortfolio handles PUT and PATCH /api/portfolios/{id}
func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var input service.UpdatePortfolioInput
	if err := parseJSONBody(r, &input); err != nil {
		respondInvalidBody(w, err)
		return
	}

	partial := r.Method == http.MethodPatch
	portfolio, err := s.portfolioService.UpdatePortfolio(r.Context(), mux.Vars(r)["id"], &input, partial, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

// handleDeletePortfolio handles DELETE /api/portfolios/{id}
func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolioService.DeletePortfolio(r.Context(), mux.Vars(r)["id"], auth.PrincipalFromContext(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
