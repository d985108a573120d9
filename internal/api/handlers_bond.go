package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/service"
)

// handleListBonds handles GET /api/bonds
func (s *Server) handleListBonds(w http.ResponseWriter, r *http.Request) {
	bonds, err := s.bondService.ListBonds(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bonds)
}

// handleCreateBond handles POST /api/bonds
func (s *Server) handleCreateBond(w http.ResponseWriter, r *http.Request) {
	var input service.BondInput
	if err := parseJSONBody(r, &input); err != nil {
		respondInvalidBody(w, err)
		return
	}

	bond, err := s.bondService.CreateBond(r.Context(), &input, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, bond)
}

// handleGetBond handles GET /api/bonds/{id}
func (s *Server) handleGetBond(w http.ResponseWriter, r *http.Request) {
	bond, err := s.bondService.GetBond(r.Context(), mux.Vars(r)["id"], auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bond)
}

// handleUpdateBond handles PUT and PATCH /api/bonds/{id}
func (s *Server) handleUpdateBond(w http.ResponseWriter, r *http.Request) {
	var input service.BondInput
	if err := parseJSONBody(r, &input); err != nil {
		respondInvalidBody(w, err)
		return
	}

	partial := r.Method == http.MethodPatch
	bond, err := s.bondService.UpdateBond(r.Context(), mux.Vars(r)["id"], &input, partial, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bond)
}

// handleDeleteBond handles DELETE /api/bonds/{id}
func (s *Server) handleDeleteBond(w http.ResponseWriter, r *http.Request) {
	if err := s.bondService.DeleteBond(r.Context(), mux.Vars(r)["id"], auth.PrincipalFromContext(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
