package server

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/issues"
)

type issueResponse struct {
	IssueID     uint64        `json:"issue_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    string        `json:"severity"`
	Status      string        `json:"status"`
	ReporterID  uint64        `json:"reporter_id"`
	AssigneeID  *uint64       `json:"assignee_id,omitempty"`
	Tags        []tagResponse `json:"tags"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

type tagResponse struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type issueListResponse struct {
	Issues []issueResponse `json:"issues"`
	Total  int64           `json:"total"`
}

type historyResponse struct {
	HistoryID uint64  `json:"history_id"`
	IssueID   uint64  `json:"issue_id"`
	ActorID   uint64  `json:"actor_id"`
	OldStatus *string `json:"old_status"`
	NewStatus string  `json:"new_status"`
	Comment   string  `json:"comment,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type createIssueRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Severity    string       `json:"severity"`
	AssigneeID  *uint64      `json:"assignee_id"`
	Tags        []tagRequest `json:"tags"`
}

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type updateIssueRequest struct {
	Title         *string      `json:"title"`
	Description   *string      `json:"description"`
	Severity      *string      `json:"severity"`
	AssigneeID    *uint64      `json:"assignee_id"`
	ClearAssignee bool         `json:"clear_assignee"`
	Tags          []tagRequest `json:"tags"`
	Status        *string      `json:"status"`
}

type transitionRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func toIssueResponse(issue ports.Issue) issueResponse {
	tags := make([]tagResponse, 0, len(issue.Tags))
	for _, tag := range issue.Tags {
		tags = append(tags, tagResponse{Name: tag.Name, Color: tag.Color})
	}
	return issueResponse{
		IssueID:     issue.IssueID,
		Title:       issue.Title,
		Description: issue.Description,
		Severity:    string(issue.Severity),
		Status:      string(issue.Status),
		ReporterID:  issue.ReporterID,
		AssigneeID:  issue.AssigneeID,
		Tags:        tags,
		CreatedAt:   formatTime(issue.CreatedAt),
		UpdatedAt:   formatTime(issue.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func pathID(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Newf(apperrors.KindValidation, "invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return value
}

func toTagInputs(tags []tagRequest) []issues.TagInput {
	if tags == nil {
		return nil
	}
	inputs := make([]issues.TagInput, 0, len(tags))
	for _, tag := range tags {
		inputs = append(inputs, issues.TagInput{Name: tag.Name, Color: tag.Color})
	}
	return inputs
}

// handleCreateIssue takes either a JSON body or a multipart form; the
// form variant may carry one optional "file" part that is stored after
// the issue commits. An upload failure never rolls the issue back.
func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req createIssueRequest
	var file multipart.File
	var fileHeader *multipart.FileHeader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, file, fileHeader, err = s.decodeCreateIssueForm(w, r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if file != nil {
			defer file.Close()
		}
	} else if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.issues.CreateIssue(r.Context(), actor, issues.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		AssigneeID:  req.AssigneeID,
		Tags:        toTagInputs(req.Tags),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	if file != nil {
		_, uploadErr := s.issues.UploadAttachment(r.Context(), actor, created.IssueID, issues.UploadAttachmentInput{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			MaxSize:     s.cfg.Storage.MaxUploadSize,
			Content:     file,
		})
		if uploadErr != nil {
			logging.Warn(r.Context(), "attachment upload failed after issue create",
				slog.Uint64("issue_id", created.IssueID),
				slog.Any("err", errs.Loggable(uploadErr)),
			)
		}
	}
	respondJSON(w, http.StatusCreated, toIssueResponse(created))
}

func (s *Server) decodeCreateIssueForm(w http.ResponseWriter, r *http.Request) (createIssueRequest, multipart.File, *multipart.FileHeader, error) {
	var req createIssueRequest

	maxSize := s.cfg.Storage.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<16)
	if err := r.ParseMultipartForm(32 << 10); err != nil {
		return req, nil, nil, apperrors.New(apperrors.KindValidation, "invalid multipart form")
	}

	req.Title = r.FormValue("title")
	req.Description = r.FormValue("description")
	req.Severity = r.FormValue("severity")
	if raw := r.FormValue("assignee_id"); raw != "" {
		assigneeID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return req, nil, nil, apperrors.Newf(apperrors.KindValidation, "invalid assignee_id %q", raw)
		}
		req.AssigneeID = &assigneeID
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil, nil
	}
	if err != nil {
		return req, nil, nil, apperrors.New(apperrors.KindValidation, "invalid multipart field \"file\"")
	}
	return req, file, header, nil
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
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

	found, err := s.issues.GetIssue(r.Context(), actor, issueID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toIssueResponse(found))
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	query := r.URL.Query()
	list, err := s.issues.ListIssues(r.Context(), actor, issues.IssueListInput{
		Status:   query.Get("status"),
		Severity: query.Get("severity"),
		Search:   query.Get("search"),
		Skip:     queryInt(r, "skip"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := issueListResponse{
		Issues: make([]issueResponse, 0, len(list.Issues)),
		Total:  list.Total,
	}
	for _, issue := range list.Issues {
		resp.Issues = append(resp.Issues, toIssueResponse(issue))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
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

	var req updateIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.issues.UpdateIssue(r.Context(), actor, issueID, issues.UpdateIssueInput{
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		AssigneeID:    req.AssigneeID,
		ClearAssignee: req.ClearAssignee,
		Tags:          toTagInputs(req.Tags),
		Status:        req.Status,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toIssueResponse(updated))
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
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

	if err := s.issues.DeleteIssue(r.Context(), actor, issueID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"deleted_issue_id": issueID})
}

func (s *Server) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
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

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.issues.TransitionStatus(r.Context(), actor, issueID, issues.TransitionInput{
		Target:  req.Status,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toIssueResponse(updated))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
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

	history, err := s.issues.ListHistory(r.Context(), actor, issueID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := make([]historyResponse, 0, len(history))
	for _, entry := range history {
		var oldStatus *string
		if entry.OldStatus != nil {
			value := string(*entry.OldStatus)
			oldStatus = &value
		}
		resp = append(resp, historyResponse{
			HistoryID: entry.HistoryID,
			IssueID:   entry.IssueID,
			ActorID:   entry.ActorID,
			OldStatus: oldStatus,
			NewStatus: string(entry.NewStatus),
			Comment:   entry.Comment,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
