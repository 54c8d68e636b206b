package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"agentrelay/model"
	"agentrelay/storage"
	"agentrelay/stream"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100

	codeNotFound    = "not_found"
	codeUnavailable = "unavailable"
)

type sessionResponse struct {
	storage.Session
	Messages []model.Message `json:"messages"`
}

// handleListSessions lists sessions, most recent first. With ?q= it searches
// titles and message contents instead.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		limit, err := parseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			writeError(w, http.StatusBadRequest, stream.CodeBadRequest, err.Error())
			return
		}
		matches, err := s.store.Search(r.Context(), q, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, stream.CodeInternal, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		return
	}

	sessions, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, stream.CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")

	session, err := s.store.Session(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	messages, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session, Messages: messages})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req renameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, stream.CodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, stream.CodeBadRequest, "title must not be empty")
		return
	}

	id := r.PathValue("id")
	if err := s.store.Rename(r.Context(), id, title); err != nil {
		s.writeStoreError(w, err)
		return
	}
	session, err := s.store.Session(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "session storage is not configured")
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, stream.CodeInternal, err.Error())
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultSearchLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxSearchLimit), nil
}
