package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

// sseHeartbeat keeps idle event streams open through proxies.
const sseHeartbeat = 15 * time.Second

// EvaluateAnswerHandler accepts a Mains answer and starts its evaluation.
func (s *Server) EvaluateAnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EvaluateRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		job, err := s.Mains.Submit(r.Context(), mustPrincipal(r).UserID, req.input())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":    true,
			"evaluation": job,
			"message":    usecase.SubmitMessage,
		})
	}
}

// ListEvaluationsHandler returns the caller's evaluations, newest first.
func (s *Server) ListEvaluationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := paging(r)
		jobs, err := s.Mains.List(r.Context(), mustPrincipal(r).UserID, limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evaluations": jobs})
	}
}

// GetEvaluationHandler returns one evaluation with a weak ETag so pollers
// can send If-None-Match and receive 304 until the status changes.
func (s *Server) GetEvaluationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		job, err := s.Mains.Get(r.Context(), mustPrincipal(r).UserID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		etag := usecase.ETag(job)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, no-cache")
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evaluation": job})
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		if c == "*" || c == etag || strings.TrimPrefix(c, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

// DeleteEvaluationHandler removes one of the caller's evaluations.
func (s *Server) DeleteEvaluationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.Mains.Delete(r.Context(), mustPrincipal(r).UserID, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// EvaluationEventsHandler streams status changes as Server-Sent Events: the
// current status first, then the terminal transition.
func (s *Server) EvaluationEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		events, err := s.Mains.Watch(r.Context(), mustPrincipal(r).UserID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rc := http.NewResponseController(w)
		// the server write timeout would otherwise cut long streams
		_ = rc.SetWriteDeadline(time.Time{})

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		_ = rc.Flush()

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				_ = rc.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, _ := json.Marshal(ev)
				if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
					return
				}
				_ = rc.Flush()
			}
		}
	}
}

// MentorGuidanceHandler expands one action item of an evaluation.
func (s *Server) MentorGuidanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MentorRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		text, cached, err := s.Mentor.Guidance(r.Context(), mustPrincipal(r).UserID, req.input())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "mentorResponse": text, "cached": cached})
	}
}
