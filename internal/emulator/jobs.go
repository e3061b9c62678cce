package emulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Keys of a create body that the server owns and never takes from the caller.
var serverOwnedKeys = []string{"job_id", "created_time", "creator_user_name", "run_as_user_name", "run_as_owner", "settings"}

func (s *Server) listRuntimes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"versions": s.store.Runtimes()})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultListLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	offset := 0
	if v := query.Get("page_token"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "invalid page_token")
			return
		}
		offset = n
	}

	all := s.store.ListJobs()
	if name := query.Get("name"); name != "" {
		filtered := all[:0]
		for _, job := range all {
			if job.Settings["name"] == name {
				filtered = append(filtered, job)
			}
		}
		all = filtered
	}

	resp := map[string]any{"has_more": false}
	if offset < len(all) {
		end := min(offset+limit, len(all))
		docs := make([]map[string]any, 0, end-offset)
		for _, job := range all[offset:end] {
			docs = append(docs, job.Document())
		}
		resp["jobs"] = docs
		if end < len(all) {
			resp["has_more"] = true
			resp["next_page_token"] = strconv.Itoa(end)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("job_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "job_id must be an integer")
		return
	}

	job, err := s.store.GetJob(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job.Document())
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID       int64          `json:"job_id"`
		NewSettings map[string]any `json:"new_settings"`
	}
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}
	if req.JobID == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "job_id is required")
		return
	}

	if err := s.store.UpdateJob(req.JobID, req.NewSettings); err != nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", err.Error())
		return
	}
	s.logger.Info().Int64("job_id", req.JobID).Int("fields", len(req.NewSettings)).Msg("job updated")
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if err := decodeBody(r.Body, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}
	if settings == nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "request body must be a JSON object")
		return
	}
	for _, k := range serverOwnedKeys {
		delete(settings, k)
	}

	job := s.store.CreateJob(s.user, settings)
	s.logger.Info().Int64("job_id", job.JobID).Interface("name", settings["name"]).Msg("job created")
	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.JobID})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID int64 `json:"job_id"`
	}
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}
	if err := s.store.DeleteJob(req.JobID); err != nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func decodeBody(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
