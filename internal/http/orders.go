package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/orders"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Order created successfully", "order": o})
}

// handleTrackOrder is public. Contact details are only shown to an admin or
// to the account the order was placed with.
func (s *Server) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Track(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, ok := principalFromContext(r.Context())
	if !ok || (!p.IsAdmin() && !strings.EqualFold(p.Email, o.CustomerEmail)) {
		o = publicView(o)
	}
	writeJSON(w, http.StatusOK, envelope{"order": o})
}

func (s *Server) handleTrackStatus(w http.ResponseWriter, r *http.Request) {
	v, err := s.Orders.TrackStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": v})
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	list, err := s.Orders.ListForCustomer(r.Context(), p.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"orders": list, "total": len(list)})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.Orders.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"orders": list, "total": len(list)})
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Order status updated successfully", "order": o})
}

func (s *Server) handleAssignRider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiderID string `json:"riderId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.AssignRider(r.Context(), mux.Vars(r)["id"], req.RiderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Rider assigned successfully", "order": o})
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentMethod string `json:"paymentMethod"`
		Reference     string `json:"reference"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.ConfirmPayment(r.Context(), mux.Vars(r)["id"], req.PaymentMethod, req.Reference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Payment confirmed", "order": o})
}

func (s *Server) handleResendReceipt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Orders.ResendReceipt(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Receipt sent for order " + id})
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Orders.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Order " + id + " deleted"})
}

// publicView strips what an anonymous tracker should not see.
func publicView(o *models.Order) *models.Order {
	c := o.Clone()
	c.CustomerEmail = ""
	c.CustomerPhone = maskPhone(c.CustomerPhone)
	c.PaymentReference = ""
	return c
}

// maskPhone keeps the last three digits: "+254 712 345 678" -> "+*** *** *** 678".
func maskPhone(p string) string {
	digits := 0
	for _, r := range p {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	keep := 3
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			if digits > keep {
				r = '*'
			}
			digits--
		}
		b.WriteRune(r)
	}
	return b.String()
}
