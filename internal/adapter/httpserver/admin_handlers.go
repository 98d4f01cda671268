package httpserver

import (
	"net/http"

	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

func actorOf(r *http.Request) usecase.Actor {
	return usecase.Actor{ID: mustPrincipal(r).UserID, IP: clientIP(r)}
}

// AdminListUsersHandler lists profiles with activity counts. Admins only.
func (s *Server) AdminListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := paging(r)
		users, total, err := s.Admin.ListUsers(r.Context(), actorOf(r), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users, "total_users": total})
	}
}

// AdminGetUserHandler returns one profile with activity counts. Admins only.
func (s *Server) AdminGetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "userId")
		if err != nil {
			writeError(w, r, err)
			return
		}
		u, err := s.Admin.GetUser(r.Context(), actorOf(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

// AdminUpdateUserHandler grants or revokes admin rights. Admins only.
func (s *Server) AdminUpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "userId")
		if err != nil {
			writeError(w, r, err)
			return
		}
		// the admin check comes before the body so non-admins learn nothing
		if err := s.Admin.RequireAdmin(r.Context(), mustPrincipal(r).UserID); err != nil {
			writeError(w, r, err)
			return
		}
		var req RoleRequest
		if err := bindJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p, err := s.Admin.SetAdmin(r.Context(), actorOf(r), id, *req.IsAdmin)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": p})
	}
}
