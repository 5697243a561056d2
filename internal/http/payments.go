package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/parcel-delivery/internal/models"
)

// providerRefRequest carries the provider's own id for capture and verify calls.
// PayPal clients send paypalOrderId, card clients paymentIntentId.
type providerRefRequest struct {
	PayPalOrderID   string `json:"paypalOrderId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func (p providerRefRequest) ref(m models.PaymentMethod) (string, error) {
	field, ref := "paymentIntentId", p.PaymentIntentID
	if m == models.MethodPayPal {
		field, ref = "paypalOrderId", p.PayPalOrderID
	}
	if strings.TrimSpace(ref) == "" {
		return "", models.NewValidationError(field+" is required", field)
	}
	return ref, nil
}

type orderRefRequest struct {
	OrderID string `json:"orderId"`
}

func (o orderRefRequest) id() (string, error) {
	if err := models.RequireFields("orderId", o.OrderID); err != nil {
		return "", err
	}
	return strings.TrimSpace(o.OrderID), nil
}

func (s *Server) decodeOrderID(w http.ResponseWriter, r *http.Request) (string, error) {
	var req orderRefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	return req.id()
}

func (s *Server) handleCreateProviderOrder(m models.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := s.decodeOrderID(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		pay, po, err := s.Payments.CreateProviderOrder(r.Context(), m, orderID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body := envelope{"payment": pay}
		switch m {
		case models.MethodPayPal:
			body["paypalOrderId"] = po.Ref
			body["approvalUrl"] = po.ApprovalURL
		default:
			body["paymentIntentId"] = po.Ref
			body["clientSecret"] = po.ClientSecret
		}
		writeJSON(w, http.StatusCreated, body)
	}
}

func (s *Server) handleCapture(m models.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req providerRefRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		ref, err := req.ref(m)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		pay, err := s.Payments.Capture(r.Context(), m, ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{"message": "Payment " + string(pay.Status), "payment": pay})
	}
}

func (s *Server) handleVerify(m models.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req providerRefRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		ref, err := req.ref(m)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		pay, err := s.Payments.Verify(r.Context(), m, ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{"verified": pay.Status == models.PaymentCompleted, "payment": pay})
	}
}

func (s *Server) handleCashOnDelivery(w http.ResponseWriter, r *http.Request) {
	orderID, err := s.decodeOrderID(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pay, err := s.Payments.CashOnDelivery(r.Context(), orderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Cash on delivery confirmed", "payment": pay})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	pay, err := s.Payments.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"payment": pay})
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.Payments.List(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"payments": list, "total": len(list)})
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pay, err := s.Payments.SetStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Payment status updated", "payment": pay})
}
