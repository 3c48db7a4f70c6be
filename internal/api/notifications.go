package api

import (
	"net/http"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, actorID int64) {
	inbox, err := s.svc.ListNotifications(r.Context(), actorID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, inbox)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, actorID int64) {
	id, err := pathID(r)
	if err != nil {
		s.respondInvalid(w, r, "mark_read", err.Error())
		return
	}
	if err := s.svc.MarkNotificationRead(r.Context(), actorID, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, actorID int64) {
	if err := s.svc.MarkAllNotificationsRead(r.Context(), actorID); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
