package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/dispatch"
	"github.com/halvard/tally/internal/event"
	"github.com/halvard/tally/internal/statsvc"
)

// Handler holds API route handlers.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	svc        *statsvc.Service
}

// NewHandler creates a new Handler.
func NewHandler(dispatcher *dispatch.Dispatcher, svc *statsvc.Service) *Handler {
	return &Handler{dispatcher: dispatcher, svc: svc}
}

// HandleEvent handles POST /events: parses the envelope, fans the event out
// to all tasks, and reports the per-task outcome. Partial task failures
// still produce a 200; the delivery itself succeeded.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ev, err := event.Parse(req.Event, req.Payload)
	if err != nil {
		if errors.Is(err, apperr.ErrSkip) {
			slog.Debug("event skipped", slog.String("event", req.Event), slog.String("reason", err.Error()))
			writeJSON(w, http.StatusOK, EventResponse{Status: "skipped"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	results := h.dispatcher.Dispatch(r.Context(), ev)
	writeJSON(w, http.StatusOK, buildEventResponse(results))
}

func buildEventResponse(results []dispatch.Result) EventResponse {
	resp := EventResponse{
		Status:  "ok",
		Summary: dispatch.Summarize(results),
		Tasks:   make([]TaskResult, len(results)),
	}
	for i, r := range results {
		tr := TaskResult{Task: r.Task, State: "applied"}
		switch {
		case r.Err != nil:
			tr.State = "failed"
			tr.Error = r.Err.Error()
		case r.Skipped:
			tr.State = "skipped"
		}
		resp.Tasks[i] = tr
	}
	return resp
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.TeacherStats(r.Context())
	if err != nil {
		h.readError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": doc})
}

// GetUploaders handles GET /uploaders.
func (h *Handler) GetUploaders(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Uploaders(r.Context())
	if err != nil {
		h.readError(w, "uploaders", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetLinks handles GET /links.
func (h *Handler) GetLinks(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.LinkUploaders(r.Context())
	if err != nil {
		h.readError(w, "links", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) readError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody(what+" document not provisioned"))
		return
	}
	slog.Error("read "+what+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
