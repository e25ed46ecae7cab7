package server

import (
	"net/http"

	"github.com/KIaudius/issues-insights-tracker/internal/usecase/users"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

type updateUserRequest struct {
	Name         *string `json:"name"`
	Password     *string `json:"password"`
	Role         *string `json:"role"`
	IsActive     *bool   `json:"is_active"`
	ProfileImage *string `json:"profile_image"`
}

// updateSelfRequest deliberately has no role or activation fields.
type updateSelfRequest struct {
	Name         *string `json:"name"`
	Password     *string `json:"password"`
	ProfileImage *string `json:"profile_image"`
}

type userListResponse struct {
	Users []userResponse `json:"users"`
	Total int64          `json:"total"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	list, err := s.users.ListUsers(r.Context(), actor, users.ListUsersInput{
		Role:  r.URL.Query().Get("role"),
		Skip:  queryInt(r, "skip"),
		Limit: queryInt(r, "limit"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := userListResponse{
		Users: make([]userResponse, 0, len(list.Users)),
		Total: list.Total,
	}
	for _, user := range list.Users {
		resp.Users = append(resp.Users, toUserResponse(user))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.users.CreateUser(r.Context(), actor, users.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(created))
}

func (s *Server) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	found, err := s.users.GetUser(r.Context(), actor, actor.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(found))
}

func (s *Server) handleUpdateSelf(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req updateSelfRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.users.UpdateUser(r.Context(), actor, actor.UserID, users.UpdateUserInput{
		Name:         req.Name,
		Password:     req.Password,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	found, err := s.users.GetUser(r.Context(), actor, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(found))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.users.UpdateUser(r.Context(), actor, userID, users.UpdateUserInput{
		Name:         req.Name,
		Password:     req.Password,
		Role:         req.Role,
		IsActive:     req.IsActive,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.users.DeleteUser(r.Context(), actor, userID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"deleted_user_id": userID})
}
