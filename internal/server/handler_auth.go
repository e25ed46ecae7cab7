package server

import (
	"net/http"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/authn"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	UserID       uint64 `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	IsActive     bool   `json:"is_active"`
	IsOAuthUser  bool   `json:"is_oauth_user"`
	ProfileImage string `json:"profile_image,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toUserResponse(user ports.User) userResponse {
	return userResponse{
		UserID:       user.UserID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         string(user.Role),
		IsActive:     user.IsActive,
		IsOAuthUser:  user.IsOAuthUser,
		ProfileImage: user.ProfileImage,
		CreatedAt:    formatTime(user.CreatedAt),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	pair, err := s.authn.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	pair, err := s.authn.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		respondError(w, r, apperrors.New(apperrors.KindValidation, "state is required"))
		return
	}

	url, err := s.authn.AuthorizeURL(state)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"authorize_url": url})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, r, apperrors.New(apperrors.KindValidation, "code is required"))
		return
	}

	pair, err := s.authn.ExchangeCode(r.Context(), code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTokenResponse(pair))
}

func toTokenResponse(pair authn.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		User:         toUserResponse(pair.User),
	}
}
