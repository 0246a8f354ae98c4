package api

import (
	"net/http"
	"strconv"
	"strings"

	"discripper/internal/naming"
	"discripper/internal/rename"
)

// handleMode serves the single-endpoint form used by older clients:
// /json?mode=<op> with the operation's arguments as query or form values.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form: %v", err))
		return
	}
	resp, err := s.dispatchMode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dispatchMode(r *http.Request) (any, error) {
	ctx := r.Context()
	mode := strings.ToLower(strings.TrimSpace(r.Form.Get("mode")))
	switch mode {
	case "joblist":
		return s.listJobs(ctx, r.Form.Get("status"))
	case "getjob", "abandon", "delete":
		id, err := parseID("job_id", r.Form.Get("job_id"))
		if err != nil {
			return nil, err
		}
		switch mode {
		case "getjob":
			return s.getJob(ctx, id)
		case "abandon":
			return s.abandonJob(ctx, id)
		}
		return s.deleteJob(ctx, id)
	case "drives":
		return s.listDrives(ctx)
	case "eject":
		id, err := parseID("drive_id", r.Form.Get("drive_id"))
		if err != nil {
			return nil, err
		}
		return s.ejectDrive(ctx, id, r.Form.Get("method"))
	case "batch_rename_preview", "batch_rename_execute":
		req, err := formRename(r)
		if err != nil {
			return nil, err
		}
		if mode == "batch_rename_preview" {
			return s.previewRename(ctx, req)
		}
		return s.renamer.Execute(ctx, req)
	case "batch_rename_rollback":
		return s.rollbackRename(ctx, r.Form.Get("batch_id"), requestUser(r, r.Form.Get("user")))
	case "recent_batches":
		return s.recentBatches(ctx, r.Form.Get("limit"))
	case "":
		return nil, badRequest("mode is required")
	}
	return nil, badRequest("unknown mode %q", mode)
}

func formRename(r *http.Request) (rename.Request, error) {
	ids, err := formIDs(r, "job_ids")
	if err != nil {
		return rename.Request{}, err
	}
	skip, err := formIDs(r, "skip_outliers")
	if err != nil {
		return rename.Request{}, err
	}
	style, ok := naming.ParseStyle(r.Form.Get("naming_style"))
	if !ok {
		return rename.Request{}, badRequest("unknown naming style %q", r.Form.Get("naming_style"))
	}
	return rename.Request{
		JobIDs:      ids,
		Style:       style,
		ZeroPad:     formBool(r, "zero_padded"),
		Consolidate: formBool(r, "consolidate"),
		IncludeYear: formBool(r, "include_year"),
		SeriesKey:   strings.TrimSpace(r.Form.Get("series_key")),
		SeriesName:  strings.TrimSpace(r.Form.Get("custom_series_name")),
		ForceSeries: formBool(r, "force_series"),
		Skip:        skip,
		User:        requestUser(r, r.Form.Get("user")),
	}, nil
}

// formIDs accepts both repeated keys and comma-separated values.
func formIDs(r *http.Request, key string) ([]int64, error) {
	var ids []int64
	for _, value := range r.Form[key] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(key, part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.Form.Get(key)))
	return err == nil && v
}
