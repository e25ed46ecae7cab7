package server

import (
	"net/http"

	"github.com/KIaudius/issues-insights-tracker/internal/ports"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/issues"
)

type commentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	CommentID uint64 `json:"comment_id"`
	IssueID   uint64 `json:"issue_id"`
	AuthorID  uint64 `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type commentListResponse struct {
	Comments []commentResponse `json:"comments"`
	Total    int64             `json:"total"`
}

func toCommentResponse(comment ports.Comment) commentResponse {
	return commentResponse{
		CommentID: comment.CommentID,
		IssueID:   comment.IssueID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: formatTime(comment.CreatedAt),
		UpdatedAt: formatTime(comment.UpdatedAt),
	}
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	issueID, err := pathID(r, "issueID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.issues.AddComment(r.Context(), actor, issueID, issues.AddCommentInput{Content: req.Content})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCommentResponse(created))
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	issueID, err := pathID(r, "issueID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	list, err := s.issues.ListComments(r.Context(), actor, issueID, queryInt(r, "skip"), queryInt(r, "limit"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := commentListResponse{
		Comments: make([]commentResponse, 0, len(list.Comments)),
		Total:    list.Total,
	}
	for _, comment := range list.Comments {
		resp.Comments = append(resp.Comments, toCommentResponse(comment))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	commentID, err := pathID(r, "commentID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.issues.UpdateComment(r.Context(), actor, commentID, req.Content)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCommentResponse(updated))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	commentID, err := pathID(r, "commentID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.issues.DeleteComment(r.Context(), actor, commentID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"deleted_comment_id": commentID})
}
