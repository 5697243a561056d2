package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/parcel-delivery/internal/inbox"
)

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var in inbox.MessageInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.Inbox.CreateMessage(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Message sent successfully", "data": m})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	list, unread, err := s.Inbox.ListMessages(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"messages": list, "total": len(list), "unread": unread})
}

func (s *Server) handleMessageStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.Inbox.SetMessageStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Message status updated", "data": m})
}

func (s *Server) handleCreatePartnership(w http.ResponseWriter, r *http.Request) {
	var in inbox.PartnershipInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Inbox.CreatePartnership(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Partnership request submitted successfully", "request": p})
}

func (s *Server) handleListPartnerships(w http.ResponseWriter, r *http.Request) {
	list, stats, err := s.Inbox.ListPartnerships(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"requests": list, "total": len(list), "stats": stats})
}

func (s *Server) handlePartnershipStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Inbox.SetPartnershipStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Partnership request updated", "request": p})
}

func (s *Server) handleDeletePartnership(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Inbox.DeletePartnership(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Partnership request " + id + " deleted"})
}
