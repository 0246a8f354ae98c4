package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"discripper/internal/store"
)

// titleRequest is the body of a title correction.
type titleRequest struct {
	Title     string `json:"title"`
	Year      string `json:"year"`
	VideoType string `json:"video_type"`
	IMDBID    string `json:"imdb_id"`
	PosterURL string `json:"poster_url"`
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	resp, err := s.listJobs(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.getJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobTitle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body titleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid body: %v", err))
		return
	}
	job, err := s.jobs.UpdateTitle(r.Context(), id, store.Correction{
		Title:     body.Title,
		Year:      body.Year,
		VideoType: store.VideoType(strings.ToLower(strings.TrimSpace(body.VideoType))),
		IMDBID:    strings.TrimSpace(body.IMDBID),
		PosterURL: strings.TrimSpace(body.PosterURL),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: FromJob(job, nil, s.now())})
}

func (s *Server) handleJobAbandon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.abandonJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.deleteJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listJobs(ctx context.Context, statusFilter string) (JobListResponse, error) {
	var statuses []store.Status
	for _, part := range strings.Split(statusFilter, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, ok := store.ParseStatus(part)
		if !ok {
			return JobListResponse{}, badRequest("unknown status %q", part)
		}
		statuses = append(statuses, status)
	}
	list, err := s.jobs.Store().ListJobs(ctx, statuses...)
	if err != nil {
		return JobListResponse{}, err
	}
	resp := JobListResponse{Jobs: make([]JobItem, 0, len(list))}
	now := s.now()
	for _, job := range list {
		resp.Jobs = append(resp.Jobs, FromJob(job, nil, now))
	}
	return resp, nil
}

func (s *Server) getJob(ctx context.Context, id int64) (JobResponse, error) {
	job, err := s.jobs.Store().MustGetJob(ctx, id)
	if err != nil {
		return JobResponse{}, err
	}
	tracks, err := s.jobs.Store().ListTracks(ctx, id)
	if err != nil {
		return JobResponse{}, err
	}
	return JobResponse{Job: FromJob(job, tracks, s.now())}, nil
}

func (s *Server) abandonJob(ctx context.Context, id int64) (JobResponse, error) {
	job, err := s.jobs.Abandon(ctx, id)
	if err != nil {
		return JobResponse{}, err
	}
	return JobResponse{Job: FromJob(job, nil, s.now())}, nil
}

func (s *Server) deleteJob(ctx context.Context, id int64) (StatusResponse, error) {
	if err := s.jobs.Delete(ctx, id); err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Success: true, Message: "job " + strconv.FormatInt(id, 10) + " deleted"}, nil
}

func pathID(r *http.Request) (int64, error) {
	return parseID("id", chi.URLParam(r, "id"))
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}
