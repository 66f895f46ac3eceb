package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/subautotrans/subautotrans/internal/config"
	"github.com/subautotrans/subautotrans/internal/provider"
	"github.com/subautotrans/subautotrans/internal/service"
	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/internal/task"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "subautotrans",
		"providers": provider.Names(),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, skipReason, err := s.svc.CreateTask(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if skipReason != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"skipped": true,
			"reason":  skipReason,
		})
		return
	}
	s.hub.BroadcastNewTask(t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleCreateDirectoryTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		service.CreateTaskRequest
		DirectoryPath string `json:"directory_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DirectoryPath == "" {
		writeError(w, http.StatusBadRequest, "directory_path is required")
		return
	}

	created, skipped, err := s.svc.CreateDirectoryTasks(r.Context(), req.DirectoryPath, req.CreateTaskRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"skipped": skipped,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var status *task.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st := task.Status(v)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status = &st
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	tasks, total, err := s.svc.ListTasks(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.TaskStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.svc.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	action, err := s.svc.CancelTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if action == "cancelled" {
		s.hub.BroadcastStatus(id, task.StatusCancelled)
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": action})
}

func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	retried, err := s.svc.RetryTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !retried {
		writeError(w, http.StatusConflict, "task is not in a retryable state")
		return
	}
	s.hub.BroadcastStatus(id, task.StatusPending)
	writeJSON(w, http.StatusOK, map[string]bool{"retried": true})
}

func (s *Server) handlePauseAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.PauseAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"paused": n})
}

func (s *Server) handlePauseSelected(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	n, err := s.svc.PauseSelected(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"paused": n})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	cancelled, deleted, err := s.svc.DeleteAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"cancelled": cancelled,
		"deleted":   deleted,
	})
}

func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	cancelled, deleted, err := s.svc.DeleteSelected(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"cancelled": cancelled,
		"deleted":   deleted,
	})
}

func (s *Server) handleCreateWatcher(w http.ResponseWriter, r *http.Request) {
	var req service.CreateWatcherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	watcher, err := s.svc.CreateWatcher(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, watcher)
}

func (s *Server) handleListWatchers(w http.ResponseWriter, r *http.Request) {
	watchers, err := s.svc.ListWatchers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, watchers)
}

func (s *Server) handleGetWatcher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	watcher, err := s.svc.GetWatcher(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if watcher == nil {
		writeError(w, http.StatusNotFound, "watcher not found")
		return
	}
	writeJSON(w, http.StatusOK, watcher)
}

func (s *Server) handleDeleteWatcher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteWatcher(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "watcher not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleToggleWatcher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	watcher, err := s.svc.SetWatcherEnabled(r.Context(), id, req.Enabled)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "watcher not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, watcher)
}

func (s *Server) handleScanWatcher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := s.svc.ScanWatcher(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "watcher not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Settings().Masked())
}

// handleUpdateSettings supports partial updates: absent fields keep
// their current values, and masked API keys echoed back by the UI are
// ignored rather than stored.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	current := s.svc.Settings()
	next := current

	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	keepMaskedKeys(&next, current)

	// Choosing a sidecar format is an explicit request to stop
	// overwriting containers.
	if next.OutputFormat != current.OutputFormat && next.OutputFormat != config.OutputMKV {
		next.OverwriteMKV = false
	}

	saved, err := s.svc.UpdateSettings(r.Context(), next)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved.Masked())
}

func keepMaskedKeys(next *config.Settings, current config.Settings) {
	if isMasked(next.OpenAIAPIKey) {
		next.OpenAIAPIKey = current.OpenAIAPIKey
	}
	if isMasked(next.ClaudeAPIKey) {
		next.ClaudeAPIKey = current.ClaudeAPIKey
	}
	if isMasked(next.DeepSeekAPIKey) {
		next.DeepSeekAPIKey = current.DeepSeekAPIKey
	}
	if isMasked(next.GLMAPIKey) {
		next.GLMAPIKey = current.GLMAPIKey
	}
}

func isMasked(key string) bool {
	return len(key) >= 4 && key[:4] == "****"
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func decodeIDs(w http.ResponseWriter, r *http.Request) ([]int64, bool) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return nil, false
	}
	return req.IDs, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
