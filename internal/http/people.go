package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/parcel-delivery/internal/auth"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/riders"
)

type activeRequest struct {
	IsActive *bool `json:"isActive"`
}

func (a activeRequest) value() (bool, error) {
	if a.IsActive == nil {
		return false, models.NewValidationError("isActive is required", "isActive")
	}
	return *a.IsActive, nil
}

func (s *Server) decodeActive(w http.ResponseWriter, r *http.Request) (bool, error) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return false, err
	}
	return req.value()
}

func (s *Server) handleRiderSignup(w http.ResponseWriter, r *http.Request) {
	var in riders.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rd, err := s.Riders.Signup(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "Rider application submitted successfully",
		"rider": map[string]any{
			"id":       rd.ID,
			"fullName": rd.FullName,
			"email":    rd.Email,
			"status":   rd.Status,
		},
	})
}

func (s *Server) handleAvailableRiders(w http.ResponseWriter, r *http.Request) {
	list, err := s.Riders.Available(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]models.RiderSummary, 0, len(list))
	for _, rd := range list {
		out = append(out, rd.Summary())
	}
	writeJSON(w, http.StatusOK, envelope{"riders": out, "total": len(out)})
}

func (s *Server) handleListRiders(w http.ResponseWriter, r *http.Request) {
	list, stats, err := s.Riders.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"riders": list, "total": len(list), "stats": stats})
}

func (s *Server) handleRiderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rd, err := s.Riders.SetStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Rider status updated", "rider": rd})
}

func (s *Server) handleRiderActive(w http.ResponseWriter, r *http.Request) {
	active, err := s.decodeActive(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rd, err := s.Riders.SetActive(r.Context(), mux.Vars(r)["id"], active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Rider availability updated", "rider": rd})
}

func (s *Server) handleDeleteRider(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Riders.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Rider " + id + " deleted"})
}

func (s *Server) handleRiderActivities(w http.ResponseWriter, r *http.Request) {
	list, err := s.Riders.Activities(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"activities": list, "total": len(list)})
}

func (s *Server) handleRiderEarnings(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Riders.Earnings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"earnings": sum})
}

func (s *Server) handleRiderPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
		Method string  `json:"method"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rd, err := s.Riders.RecordPayout(r.Context(), mux.Vars(r)["id"], req.Amount, req.Method)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Payout recorded", "rider": rd})
}

func (s *Server) handleActivityStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Riders.ActivityStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"stats": st})
}

func (s *Server) handleUserSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.Auth.Signup(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Account created successfully", "user": a})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message":   "Login successful",
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
		"user":      sess.Account,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	if err := s.Auth.Logout(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Logged out"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	a, err := s.Auth.Profile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": a})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in auth.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.Auth.UpdateProfile(r.Context(), mux.Vars(r)["userId"], in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Profile updated", "user": a})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, stats, err := s.Auth.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"users": list, "total": len(list), "stats": stats})
}

func (s *Server) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	active, err := s.decodeActive(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.Auth.SetActive(r.Context(), mux.Vars(r)["userId"], active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "User status updated", "user": a})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userId"]
	if err := s.Auth.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "User " + id + " deleted"})
}
