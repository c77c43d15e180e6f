package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/store"
)

// BatchResponse is the API shape of a finished batch
type BatchResponse struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Duration   string `json:"duration"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Success    bool   `json:"success"`
}

// OutcomeResponse is the API shape of one game's build outcome
type OutcomeResponse struct {
	GameID   string   `json:"game_id"`
	Kind     string   `json:"kind"`
	Duration string   `json:"duration"`
	Revision string   `json:"revision,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Rebuilding bool              `json:"rebuilding"`
	Batch      *BatchResponse    `json:"batch,omitempty"`
	Outcomes   []OutcomeResponse `json:"outcomes,omitempty"`
}

func batchToResponse(r *domain.BatchReport) BatchResponse {
	return BatchResponse{
		ID:         r.ID,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
		Duration:   r.Duration.Round(time.Millisecond).String(),
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Success:    r.Success,
	}
}

func outcomeToResponse(o domain.JobOutcome) OutcomeResponse {
	resp := OutcomeResponse{
		GameID:   o.GameID,
		Kind:     string(o.Kind),
		Duration: o.Duration.Round(time.Millisecond).String(),
		Revision: o.Revision,
		Warnings: o.Warnings,
	}
	for _, e := range o.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp
}

func summaryToResponse(b store.BatchSummary) BatchResponse {
	return BatchResponse{
		ID:         b.ID,
		StartedAt:  b.StartedAt.Format(time.RFC3339),
		FinishedAt: b.FinishedAt.Format(time.RFC3339),
		Duration:   b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond).String(),
		Total:      b.Total,
		Succeeded:  b.Succeeded,
		Failed:     b.Failed,
		Skipped:    b.Skipped,
		Success:    b.Success,
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var status StatusResponse
		if s.rebuilder != nil {
			status.Rebuilding = s.rebuilder.Running()
		}

		latest, err := s.store.LatestBatch()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if latest != nil {
			batch := batchToResponse(latest)
			status.Batch = &batch
			status.Outcomes = make([]OutcomeResponse, len(latest.Outcomes))
			for i, o := range latest.Outcomes {
				status.Outcomes[i] = outcomeToResponse(o)
			}
		}

		writeJSON(w, status)
	}
}

func (s *Server) listBatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var opts store.ListOptions
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			opts.Limit = limit
		}

		batches, err := s.store.ListBatches(opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]BatchResponse, len(batches))
		for i, b := range batches {
			responses[i] = summaryToResponse(b)
		}

		writeJSON(w, responses)
	}
}

func (s *Server) rebuildHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if s.rebuilder == nil {
			writeError(w, http.StatusServiceUnavailable, "rebuild not available")
			return
		}

		s.rebuilder.Trigger("api")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}
}
