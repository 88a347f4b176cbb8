// Package admin serves the read-only directory API used by operators'
// tooling next to the live monitor.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pm-relay/internal/message"
	"pm-relay/internal/thread"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type ThreadLister interface {
	List(ctx context.Context, limit int) ([]*thread.Thread, error)
}

type MessageLister interface {
	ListByThread(ctx context.Context, threadID int, limit int) ([]*message.Correspondence, error)
}

type Handler struct {
	threads  ThreadLister
	messages MessageLister
}

func NewHandler(threads ThreadLister, messages MessageLister) *Handler {
	return &Handler{threads: threads, messages: messages}
}

// ListThreads handles GET /api/threads?limit=N.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.List(r.Context(), limit(r))
	if err != nil {
		http.Error(w, "failed to list threads", http.StatusInternalServerError)
		return
	}
	if threads == nil {
		threads = []*thread.Thread{}
	}
	writeJSON(w, threads)
}

// ListMessages handles GET /api/threads/{threadID}/messages?limit=N.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	threadID, err := strconv.Atoi(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "invalid thread id", http.StatusBadRequest)
		return
	}
	msgs, err := h.messages.ListByThread(r.Context(), threadID, limit(r))
	if err != nil {
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*message.Correspondence{}
	}
	writeJSON(w, msgs)
}

func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
