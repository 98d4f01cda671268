package httpserver

import "net/http"

// GetProfileHandler returns the caller's profile, creating it on first use.
func (s *Server) GetProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := mustPrincipal(r)
		profile, err := s.Profiles.Get(r.Context(), p.UserID, p.Email)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	}
}

// UpdateProfileHandler patches the caller's name and target exam.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p := mustPrincipal(r)
		profile, err := s.Profiles.Update(r.Context(), p.UserID, p.Email, req.update())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Dashboard.Summary(r.Context(), mustPrincipal(r).UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
