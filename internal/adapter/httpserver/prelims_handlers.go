package httpserver

import (
	"net/http"
)

// GenerateQuestionsHandler creates a practice session from model output.
func (s *Server) GenerateQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		sess, err := s.Prelims.Generate(r.Context(), mustPrincipal(r).UserID, req.input())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": sess.ID, "questions": sess.Questions})
	}
}

// ExplainWrongAnswerHandler explains why the caller's answer was wrong.
func (s *Server) ExplainWrongAnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExplainRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		text, cached, err := s.Prelims.Explain(r.Context(), mustPrincipal(r).UserID, req.input())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "explanation": text, "cached": cached})
	}
}

func (s *Server) ListSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := paging(r)
		out, err := s.Prelims.List(r.Context(), mustPrincipal(r).UserID, limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
	}
}

func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		sess, err := s.Prelims.Get(r.Context(), mustPrincipal(r).UserID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sess})
	}
}

// SubmitAnswersHandler grades a session. A session is graded only once.
func (s *Server) SubmitAnswersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req GradeRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		sess, err := s.Prelims.Grade(r.Context(), mustPrincipal(r).UserID, id, req.answers())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": sess})
	}
}

func (s *Server) DeleteSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.Prelims.Delete(r.Context(), mustPrincipal(r).UserID, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
