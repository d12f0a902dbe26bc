package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nadirhuss/ledgercore/internal/domain"
	"github.com/nadirhuss/ledgercore/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	clients       *service.ClientService
	ledger        *service.LedgerService
	notifications *service.NotificationService
	log           *slog.Logger
}

func NewHandler(clients *service.ClientService, ledger *service.LedgerService, notifications *service.NotificationService, log *slog.Logger) *Handler {
	return &Handler{clients: clients, ledger: ledger, notifications: notifications, log: log}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

type createClientRequest struct {
	Name                  string `json:"name"`
	OwnerID               string `json:"owner_id"`
	IsVIP                 bool   `json:"is_vip"`
	VerificationFrequency *int   `json:"verification_frequency,omitempty"`
}

func (h *Handler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/clients")
		return
	}
	if req.Name == "" || req.OwnerID == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "Name and owner_id required", "POST", "/clients")
		return
	}
	if req.VerificationFrequency != nil && *req.VerificationFrequency <= 0 {
		respondWithError(w, http.StatusUnprocessableEntity, "verification_frequency must be positive", "POST", "/clients")
		return
	}

	client, err := h.clients.Create(r.Context(), req.Name, req.OwnerID, req.IsVIP, req.VerificationFrequency)
	if err != nil {
		h.handleError(w, r, err, "POST", "/clients")
		return
	}
	respondWithJSON(w, http.StatusCreated, client, "POST", "/clients")
}

func (h *Handler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	client, err := h.clients.Get(r.Context(), clientID)
	if err != nil {
		h.handleError(w, r, err, "GET", "/clients/{clientId}")
		return
	}
	respondWithJSON(w, http.StatusOK, client, "GET", "/clients/{clientId}")
}

type postEntriesRequest struct {
	SessionID *string           `json:"session_id,omitempty"`
	Entries   []domain.NewEntry `json:"entries"`
}

func (h *Handler) PostEntriesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/ledgers/{clientId}/entries"))
	defer timer.ObserveDuration()

	clientID := mux.Vars(r)["clientId"]

	var req postEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/ledgers/{clientId}/entries")
		return
	}
	if len(req.Entries) == 0 {
		respondWithError(w, http.StatusUnprocessableEntity, "At least one entry required", "POST", "/ledgers/{clientId}/entries")
		return
	}
	for _, e := range req.Entries {
		if !e.Type.Valid() {
			respondWithError(w, http.StatusUnprocessableEntity, "Entry type must be credit or payee", "POST", "/ledgers/{clientId}/entries")
			return
		}
		if !e.Amount.IsPositive() {
			respondWithError(w, http.StatusUnprocessableEntity, "Positive amount required", "POST", "/ledgers/{clientId}/entries")
			return
		}
	}

	result, err := h.ledger.PostEntries(r.Context(), clientID, req.SessionID, req.Entries)
	if err != nil {
		h.handleError(w, r, err, "POST", "/ledgers/{clientId}/entries")
		return
	}
	respondWithJSON(w, http.StatusOK, result, "POST", "/ledgers/{clientId}/entries")
}

func (h *Handler) GetLedgerHandler(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	from, ok := parseTimeParam(r, "startDate")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid startDate", "GET", "/ledgers/{clientId}")
		return
	}
	to, ok := parseTimeParam(r, "endDate")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid endDate", "GET", "/ledgers/{clientId}")
		return
	}

	view, err := h.ledger.GetLedger(r.Context(), clientID, from, to)
	if err != nil {
		h.handleError(w, r, err, "GET", "/ledgers/{clientId}")
		return
	}
	respondWithJSON(w, http.StatusOK, view, "GET", "/ledgers/{clientId}")
}

func (h *Handler) LedgerSummaryHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("clientIds")
	if raw == "" {
		respondWithError(w, http.StatusBadRequest, "clientIds required", "GET", "/ledgers/summary")
		return
	}
	clientIDs := strings.Split(raw, ",")

	from, ok := parseTimeParam(r, "startDate")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid startDate", "GET", "/ledgers/summary")
		return
	}
	to, ok := parseTimeParam(r, "endDate")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid endDate", "GET", "/ledgers/summary")
		return
	}

	summaries, err := h.ledger.Summaries(r.Context(), clientIDs, from, to)
	if err != nil {
		h.handleError(w, r, err, "GET", "/ledgers/summary")
		return
	}
	respondWithJSON(w, http.StatusOK, summaries, "GET", "/ledgers/summary")
}

type verifyRequest struct {
	VerifiedBy string  `json:"verified_by"`
	Notes      *string `json:"notes,omitempty"`
}

func (h *Handler) VerifyClientHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/ledgers/{clientId}/verify"))
	defer timer.ObserveDuration()

	clientID := mux.Vars(r)["clientId"]

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/ledgers/{clientId}/verify")
		return
	}
	if req.VerifiedBy == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "verified_by required", "POST", "/ledgers/{clientId}/verify")
		return
	}

	result, err := h.ledger.Verify(r.Context(), clientID, req.VerifiedBy, req.Notes)
	if err != nil {
		h.handleError(w, r, err, "POST", "/ledgers/{clientId}/verify")
		return
	}
	respondWithJSON(w, http.StatusOK, result, "POST", "/ledgers/{clientId}/verify")
}

type createNotificationRequest struct {
	ClientID string                  `json:"client_id"`
	Type     domain.NotificationType `json:"type"`
	Message  string                  `json:"message"`
}

func (h *Handler) CreateNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/notifications")
		return
	}
	if req.ClientID == "" || req.Message == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "client_id and message required", "POST", "/notifications")
		return
	}

	notification, err := h.notifications.Create(r.Context(), req.ClientID, req.Type, req.Message)
	if err != nil {
		h.handleError(w, r, err, "POST", "/notifications")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]*domain.Notification{"notification": notification}, "POST", "/notifications")
}

func (h *Handler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	notifications, err := h.notifications.List(r.Context(), clientID)
	if err != nil {
		h.handleError(w, r, err, "GET", "/notifications")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]*domain.Notification{"notifications": notifications}, "GET", "/notifications")
}

func (h *Handler) DismissNotificationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	notification, err := h.notifications.Dismiss(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "POST", "/notifications/{id}/dismiss")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]*domain.Notification{"notification": notification}, "POST", "/notifications/{id}/dismiss")
}

// handleError maps service errors to HTTP responses. Everything is logged
// here; by this point no partial state exists for failed operations.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, method, endpoint string) {
	var verr *domain.VerificationRequiredError
	switch {
	case errors.As(err, &verr):
		h.log.InfoContext(r.Context(), "request blocked pending verification", "endpoint", endpoint, "reason", verr.Reason)
		respondWithJSON(w, http.StatusForbidden, map[string]string{
			"error":  "Verification required before proceeding",
			"reason": verr.Reason,
		}, method, endpoint)
	case errors.Is(err, domain.ErrClientNotFound),
		errors.Is(err, domain.ErrLedgerNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		respondWithError(w, http.StatusNotFound, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrEmptyBatch),
		errors.Is(err, domain.ErrInvalidEntry),
		errors.Is(err, domain.ErrInvalidNotification):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrLedgerConflict):
		respondWithError(w, http.StatusConflict, "Ledger modified concurrently, retry", method, endpoint)
	default:
		h.log.ErrorContext(r.Context(), "request failed", "endpoint", endpoint, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
	}
}

// parseTimeParam accepts RFC 3339 or plain dates; the bool is false only on a
// present-but-unparsable value.
func parseTimeParam(r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, true
	}
	return nil, false
}

func respondWithError(w http.ResponseWriter, code int, message, method, endpoint string) {
	respondWithJSON(w, code, map[string]string{"error": message}, method, endpoint)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
