package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/issues"
)

type attachmentResponse struct {
	AttachmentID uint64 `json:"attachment_id"`
	IssueID      uint64 `json:"issue_id"`
	UploaderID   uint64 `json:"uploader_id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"created_at"`
}

func toAttachmentResponse(attachment ports.Attachment) attachmentResponse {
	return attachmentResponse{
		AttachmentID: attachment.AttachmentID,
		IssueID:      attachment.IssueID,
		UploaderID:   attachment.UploaderID,
		Filename:     attachment.Filename,
		ContentType:  attachment.ContentType,
		Size:         attachment.Size,
		CreatedAt:    formatTime(attachment.CreatedAt),
	}
}

// handleUploadAttachment accepts a multipart form with a single "file"
// part. The size cap is enforced again at the usecase level, counting
// actual bytes rather than trusting the declared length.
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
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

	maxSize := s.cfg.Storage.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<16)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, apperrors.New(apperrors.KindValidation, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	created, err := s.issues.UploadAttachment(r.Context(), actor, issueID, issues.UploadAttachmentInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		MaxSize:     maxSize,
		Content:     file,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAttachmentResponse(created))
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
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

	attachments, err := s.issues.ListAttachments(r.Context(), actor, issueID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := make([]attachmentResponse, 0, len(attachments))
	for _, attachment := range attachments {
		resp = append(resp, toAttachmentResponse(attachment))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	attachmentID, err := pathID(r, "attachmentID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	meta, reader, err := s.issues.OpenAttachment(r.Context(), actor, attachmentID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		logging.Warn(r.Context(), "attachment download interrupted",
			slog.Uint64("attachment_id", attachmentID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	attachmentID, err := pathID(r, "attachmentID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.issues.DeleteAttachment(r.Context(), actor, attachmentID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"deleted_attachment_id": attachmentID})
}
