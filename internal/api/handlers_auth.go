package api

import (
	"net/http"

	"github.com/bond-service/internal/service"
)

// handleObtainToken handles POST /api/token - exchange credentials for a token pair
func (s *Server) handleObtainToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	fields := map[string]interface{}{}
	if req.Username == "" {
		fields["username"] = "This field is required."
	}
	if req.Password == "" {
		fields["password"] = "This field is required."
	}
	if len(fields) > 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input.", fields)
		return
	}

	user, err := s.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// handleRefreshToken handles POST /api/token/refresh - exchange a refresh token for an access token
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	access, err := s.tokens.Refresh(req.Refresh)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeTokenInvalid, "Token is invalid or expired", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"access": access})
}

// handleVerifyToken handles POST /api/token/verify
func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	if err := s.tokens.Verify(req.Token); err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeTokenInvalid, "Token is invalid or expired", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{})
}

// handleRegister handles POST /api/user_register - self-service sign-up
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := parseJSONBody(r, &input); err != nil {
		respondInvalidBody(w, err)
		return
	}

	user, err := s.userService.Register(r.Context(), &input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}
