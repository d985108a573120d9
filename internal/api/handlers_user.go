package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/service"
)

// handleListUsers handles GET /api/users - superusers only
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.ListUsers(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// handleGetUser handles GET /api/users/{id}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.userService.GetUser(r.Context(), mux.Vars(r)["id"], auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleUpdateUser handles PUT and PATCH /api/users/{id}
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateUserInput
	if err := parseJSONBody(r, &input); err != nil {
		respondInvalidBody(w, err)
		return
	}

	partial := r.Method == http.MethodPatch
	user, err := s.userService.UpdateUser(r.Context(), mux.Vars(r)["id"], &input, partial, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleDeleteUser handles DELETE /api/users/{id}
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.userService.DeleteUser(r.Context(), mux.Vars(r)["id"], auth.PrincipalFromContext(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
