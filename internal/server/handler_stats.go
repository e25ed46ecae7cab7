package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type dailyStatsResponse struct {
	Date string `json:"date"`

	OpenCount       int64 `json:"open_count"`
	TriagedCount    int64 `json:"triaged_count"`
	InProgressCount int64 `json:"in_progress_count"`
	DoneCount       int64 `json:"done_count"`

	LowSeverityCount      int64 `json:"low_severity_count"`
	MediumSeverityCount   int64 `json:"medium_severity_count"`
	HighSeverityCount     int64 `json:"high_severity_count"`
	CriticalSeverityCount int64 `json:"critical_severity_count"`

	TotalIssues        int64   `json:"total_issues"`
	NewIssues          int64   `json:"new_issues"`
	ClosedIssues       int64   `json:"closed_issues"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

func toDailyStatsResponse(row ports.DailyStats) dailyStatsResponse {
	return dailyStatsResponse{
		Date:                  row.Date,
		OpenCount:             row.OpenCount,
		TriagedCount:          row.TriagedCount,
		InProgressCount:       row.InProgressCount,
		DoneCount:             row.DoneCount,
		LowSeverityCount:      row.LowSeverityCount,
		MediumSeverityCount:   row.MediumSeverityCount,
		HighSeverityCount:     row.HighSeverityCount,
		CriticalSeverityCount: row.CriticalSeverityCount,
		TotalIssues:           row.TotalIssues,
		NewIssues:             row.NewIssues,
		ClosedIssues:          row.ClosedIssues,
		AvgResolutionHours:    row.AvgResolutionHours,
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.stats.GetDashboard(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

func (s *Server) handleListDailyStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rows, err := s.stats.ListDailyStats(r.Context(), query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := make([]dailyStatsResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toDailyStatsResponse(row))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDailyStats(w http.ResponseWriter, r *http.Request) {
	row, err := s.stats.GetDailyStats(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDailyStatsResponse(row))
}

func (s *Server) handleRecomputeDailyStats(w http.ResponseWriter, r *http.Request) {
	actor, err := identityFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	row, err := s.stats.RecomputeDailyStats(r.Context(), actor, chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDailyStatsResponse(row))
}
