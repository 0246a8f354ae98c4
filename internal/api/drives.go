package api

import (
	"context"
	"net/http"
	"strings"

	"discripper/internal/disc"
	"discripper/internal/drives"
)

func (s *Server) handleDriveList(w http.ResponseWriter, r *http.Request) {
	resp, err := s.listDrives(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDriveScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.drives.Refresh(r.Context(), drives.SyncOptions{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.listDrives(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ScanResponse{
		Created:       result.Created,
		Updated:       result.Updated,
		Stale:         result.Stale,
		MountsCleared: result.MountsCleared,
		Drives:        list.Drives,
	})
}

func (s *Server) handleDriveEject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.ejectDrive(r.Context(), id, r.URL.Query().Get("method"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listDrives(ctx context.Context) (DriveListResponse, error) {
	list, err := s.drives.List(ctx)
	if err != nil {
		return DriveListResponse{}, err
	}
	resp := DriveListResponse{Drives: make([]DriveItem, 0, len(list))}
	for _, d := range list {
		resp.Drives = append(resp.Drives, FromDrive(d))
	}
	return resp, nil
}

func (s *Server) ejectDrive(ctx context.Context, id int64, method string) (StatusResponse, error) {
	m, err := parseEjectMethod(method)
	if err != nil {
		return StatusResponse{}, err
	}
	if err := s.drives.Eject(ctx, id, m); err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Success: true, Message: string(m)}, nil
}

func parseEjectMethod(value string) (disc.EjectMethod, error) {
	switch disc.EjectMethod(strings.ToLower(strings.TrimSpace(value))) {
	case "", disc.EjectOpen:
		return disc.EjectOpen, nil
	case disc.EjectClose:
		return disc.EjectClose, nil
	case disc.EjectToggle:
		return disc.EjectToggle, nil
	}
	return "", badRequest("unknown eject method %q", value)
}
