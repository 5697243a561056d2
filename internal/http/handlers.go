package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/parcel-delivery/internal/auth"
	"github.com/example/parcel-delivery/internal/dispatch"
	"github.com/example/parcel-delivery/internal/inbox"
	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/orders"
	"github.com/example/parcel-delivery/internal/payments"
	"github.com/example/parcel-delivery/internal/pricing"
	"github.com/example/parcel-delivery/internal/riders"
	"github.com/example/parcel-delivery/internal/routing"
)

// Deps are the services behind the API. Idempotency, Feed and Ready are optional.
type Deps struct {
	Orders   *orders.Service
	Riders   *riders.Service
	Auth     *auth.Service
	Inbox    *inbox.Service
	Payments *payments.Service
	Pricing  pricing.Calculator
	Routes   *routing.Estimator
	Feed     *dispatch.Hub

	// Idempotency wraps order and payment creation.
	Idempotency    func(http.Handler) http.Handler
	AllowedOrigins []string
	// Ready is reported by /healthz.
	Ready func(ctx context.Context) error
}

type Server struct {
	Deps
	logger   *slog.Logger
	mux      *mux.Router
	handler  http.Handler
	upgrader websocket.Upgrader
}

func NewServer(d Deps, logger *slog.Logger) *Server {
	s := &Server{Deps: d, logger: logging.OrDiscard(logger), mux: mux.NewRouter()}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.registerMiddleware()
	s.routes()
	s.handler = s.cors(s.mux)
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/admin/orders", s.handleAdminFeed)

	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	api.HandleFunc("/quotes", s.handleQuote).Methods(http.MethodPost)

	api.Handle("/orders", s.idempotent(s.handleCreateOrder)).Methods(http.MethodPost)
	api.HandleFunc("/orders/track/{id}", s.handleTrackOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/track/{id}/status", s.handleTrackStatus).Methods(http.MethodGet)
	api.Handle("/orders/mine", s.requireLogin(http.HandlerFunc(s.handleMyOrders))).Methods(http.MethodGet)

	api.HandleFunc("/riders/signup", s.handleRiderSignup).Methods(http.MethodPost)
	api.HandleFunc("/riders/available", s.handleAvailableRiders).Methods(http.MethodGet)

	api.HandleFunc("/users/signup", s.handleUserSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.Handle("/auth/logout", s.requireLogin(http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)
	api.Handle("/auth/profile/{userId}", s.requireAccount(http.HandlerFunc(s.handleGetProfile))).Methods(http.MethodGet)
	api.Handle("/auth/profile/{userId}", s.requireAccount(http.HandlerFunc(s.handleUpdateProfile))).Methods(http.MethodPatch)

	api.HandleFunc("/messages", s.handleCreateMessage).Methods(http.MethodPost)
	api.HandleFunc("/partnership-requests", s.handleCreatePartnership).Methods(http.MethodPost)

	api.Handle("/payments/create-paypal-order", s.idempotent(s.handleCreateProviderOrder(models.MethodPayPal))).Methods(http.MethodPost)
	api.HandleFunc("/payments/capture-paypal-order", s.handleCapture(models.MethodPayPal)).Methods(http.MethodPost)
	api.HandleFunc("/payments/verify-paypal", s.handleVerify(models.MethodPayPal)).Methods(http.MethodPost)
	api.Handle("/payments/create-card-payment", s.idempotent(s.handleCreateProviderOrder(models.MethodCard))).Methods(http.MethodPost)
	api.HandleFunc("/payments/capture-card-payment", s.handleCapture(models.MethodCard)).Methods(http.MethodPost)
	api.Handle("/payments/cash-on-delivery", s.idempotent(s.handleCashOnDelivery)).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}", s.handleGetPayment).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)

	admin.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", s.handleUpdateOrderStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/orders/{id}", s.handleDeleteOrder).Methods(http.MethodDelete)
	admin.HandleFunc("/orders/{id}/assign-rider", s.handleAssignRider).Methods(http.MethodPatch, http.MethodPost)
	admin.HandleFunc("/orders/{id}/confirm-payment", s.handleConfirmPayment).Methods(http.MethodPatch, http.MethodPost)
	admin.HandleFunc("/orders/{id}/resend-receipt", s.handleResendReceipt).Methods(http.MethodPost)

	admin.HandleFunc("/riders", s.handleListRiders).Methods(http.MethodGet)
	admin.HandleFunc("/riders/{id}/status", s.handleRiderStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/riders/{id}/active", s.handleRiderActive).Methods(http.MethodPatch)
	admin.HandleFunc("/riders/{id}", s.handleDeleteRider).Methods(http.MethodDelete)
	admin.HandleFunc("/riders/{id}/activities", s.handleRiderActivities).Methods(http.MethodGet)
	admin.HandleFunc("/riders/{id}/earnings", s.handleRiderEarnings).Methods(http.MethodGet)
	admin.HandleFunc("/riders/{id}/payouts", s.handleRiderPayout).Methods(http.MethodPost)
	admin.HandleFunc("/activity-stats", s.handleActivityStats).Methods(http.MethodGet)

	admin.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{userId}/status", s.handleUserStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/users/{userId}", s.handleDeleteUser).Methods(http.MethodDelete)

	admin.HandleFunc("/messages", s.handleListMessages).Methods(http.MethodGet)
	admin.HandleFunc("/messages/{id}", s.handleMessageStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/partnership-requests", s.handleListPartnerships).Methods(http.MethodGet)
	admin.HandleFunc("/partnership-requests/{id}/status", s.handlePartnershipStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/partnership-requests/{id}", s.handleDeletePartnership).Methods(http.MethodDelete)

	admin.HandleFunc("/payments", s.handleListPayments).Methods(http.MethodGet)
	admin.HandleFunc("/payments/{id}/status", s.handlePaymentStatus).Methods(http.MethodPatch)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

func (s *Server) idempotent(h http.HandlerFunc) http.Handler {
	if s.Idempotency == nil {
		return h
	}
	return s.Idempotency(h)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"message": "Server is running!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type quoteRequest struct {
	Pickup     string  `json:"pickup"`
	Delivery   string  `json:"delivery"`
	DistanceKm float64 `json:"distanceKm"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	est, err := s.Routes.Distance(r.Context(), req.Pickup, req.Delivery, req.DistanceKm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cost, err := s.Pricing.Quote(est.Km)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"distanceKm": est.Km,
		"cost":       cost,
		"currency":   s.Pricing.Currency,
		"source":     est.Source,
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

// handleAdminFeed upgrades an admin dashboard to the live order feed. Browsers
// cannot set headers on websocket requests, so the session token comes in the query.
func (s *Server) handleAdminFeed(w http.ResponseWriter, r *http.Request) {
	if s.Feed == nil {
		s.writeError(w, r, models.ErrUnavailable)
		return
	}
	p, ok := principalFromContext(r.Context())
	if !ok {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" || s.Auth == nil {
			s.writeError(w, r, models.ErrUnauthorized)
			return
		}
		var err error
		if p, err = s.Auth.Authenticate(r.Context(), token); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if !p.IsAdmin() {
		s.writeError(w, r, models.ErrForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	// the server's read timeout would otherwise end the session
	_ = conn.SetReadDeadline(time.Time{})
	id := s.Feed.Add(conn)
	s.logger.Info("admin feed connected", "session_id", id, "account_id", p.AccountID)
	s.Feed.Serve(id, conn)
}
