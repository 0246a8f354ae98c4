package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"discripper/internal/naming"
	"discripper/internal/rename"
)

const defaultBatchLimit = 10

// renameRequest is the body of a preview or execute call.
type renameRequest struct {
	JobIDs      []int64 `json:"job_ids"`
	Style       string  `json:"naming_style"`
	ZeroPad     bool    `json:"zero_padded"`
	Consolidate bool    `json:"consolidate"`
	IncludeYear bool    `json:"include_year"`
	SeriesKey   string  `json:"series_key"`
	SeriesName  string  `json:"custom_series_name"`
	ForceSeries bool    `json:"force_series"`
	Skip        []int64 `json:"skip_outliers"`
	User        string  `json:"user"`
}

type rollbackRequest struct {
	BatchID string `json:"batch_id"`
	User    string `json:"user"`
}

// PreviewResponse carries a preview with its validation errors rendered.
type PreviewResponse struct {
	*rename.Preview
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func (req renameRequest) toRename(r *http.Request) (rename.Request, error) {
	style, ok := naming.ParseStyle(req.Style)
	if !ok {
		return rename.Request{}, badRequest("unknown naming style %q", req.Style)
	}
	return rename.Request{
		JobIDs:      req.JobIDs,
		Style:       style,
		ZeroPad:     req.ZeroPad,
		Consolidate: req.Consolidate,
		IncludeYear: req.IncludeYear,
		SeriesKey:   strings.TrimSpace(req.SeriesKey),
		SeriesName:  strings.TrimSpace(req.SeriesName),
		ForceSeries: req.ForceSeries,
		Skip:        req.Skip,
		User:        requestUser(r, req.User),
	}, nil
}

func (s *Server) handleRenamePreview(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRename(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.previewRename(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenameExecute(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRename(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.renamer.Execute(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRenameRollback(w http.ResponseWriter, r *http.Request) {
	var body rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid body: %v", err))
		return
	}
	result, err := s.rollbackRename(r.Context(), body.BatchID, requestUser(r, body.User))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRenameBatches(w http.ResponseWriter, r *http.Request) {
	resp, err := s.recentBatches(r.Context(), r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func decodeRename(r *http.Request) (rename.Request, error) {
	var body renameRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return rename.Request{}, badRequest("invalid body: %v", err)
	}
	return body.toRename(r)
}

func (s *Server) previewRename(ctx context.Context, req rename.Request) (PreviewResponse, error) {
	preview, err := s.renamer.Preview(ctx, req)
	if err != nil {
		return PreviewResponse{}, err
	}
	return PreviewResponse{Preview: preview, Valid: preview.Valid(), Errors: preview.ErrorMessages()}, nil
}

func (s *Server) rollbackRename(ctx context.Context, batchID, user string) (*rename.RollbackResult, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, badRequest("batch_id is required")
	}
	return s.renamer.Rollback(ctx, batchID, user)
}

func (s *Server) recentBatches(ctx context.Context, rawLimit string) (BatchListResponse, error) {
	limit := defaultBatchLimit
	if rawLimit = strings.TrimSpace(rawLimit); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 {
			return BatchListResponse{}, badRequest("invalid limit %q", rawLimit)
		}
		limit = n
	}
	batches, err := s.renamer.RecentBatches(ctx, limit)
	if err != nil {
		return BatchListResponse{}, err
	}
	resp := BatchListResponse{Batches: make([]BatchItem, 0, len(batches))}
	for _, b := range batches {
		resp.Batches = append(resp.Batches, FromBatch(b))
	}
	return resp, nil
}

// requestUser names who asked for a rename, for the history table.
func requestUser(r *http.Request, given string) string {
	if given = strings.TrimSpace(given); given != "" {
		return given
	}
	if remote := strings.TrimSpace(r.Header.Get("X-Remote-User")); remote != "" {
		return remote
	}
	return "api"
}
