package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadirhuss/ledgercore/internal/domain"
	"github.com/nadirhuss/ledgercore/internal/service"
	"github.com/nadirhuss/ledgercore/internal/store"
)

func newTestServer(t *testing.T) (*mux.Router, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewHandler(
		service.NewClientService(st, logger),
		service.NewLedgerService(st, logger),
		service.NewNotificationService(st, logger),
		logger,
	)

	r := mux.NewRouter()
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")
	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/clients", handler.CreateClientHandler).Methods("POST")
	apiV1.HandleFunc("/clients/{clientId}", handler.GetClientHandler).Methods("GET")
	apiV1.HandleFunc("/ledgers/summary", handler.LedgerSummaryHandler).Methods("GET")
	apiV1.HandleFunc("/ledgers/{clientId}", handler.GetLedgerHandler).Methods("GET")
	apiV1.HandleFunc("/ledgers/{clientId}/entries", handler.PostEntriesHandler).Methods("POST")
	apiV1.HandleFunc("/ledgers/{clientId}/verify", handler.VerifyClientHandler).Methods("POST")
	apiV1.HandleFunc("/notifications", handler.ListNotificationsHandler).Methods("GET")
	apiV1.HandleFunc("/notifications", handler.CreateNotificationHandler).Methods("POST")
	apiV1.HandleFunc("/notifications/{id}/dismiss", handler.DismissNotificationHandler).Methods("POST")
	return r, st
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedAPIClient(t *testing.T, st *store.MemoryStore, c *domain.Client) {
	t.Helper()
	if c.Status == "" {
		c.Status = domain.ClientActive
	}
	require.NoError(t, st.CreateClient(context.Background(), c))
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateAndGetClient(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, "POST", "/api/v1/clients", map[string]interface{}{
		"name": "acme", "owner_id": "agent7", "is_vip": true, "verification_frequency": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.Client
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.IsVIP)
	require.NotNil(t, created.VerificationFrequency)
	assert.Equal(t, 30, *created.VerificationFrequency)

	w = doJSON(t, r, "GET", "/api/v1/clients/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/clients/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateClientValidation(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, "POST", "/api/v1/clients", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPostEntries(t *testing.T) {
	r, st := newTestServer(t)
	seedAPIClient(t, st, &domain.Client{ID: "c1", Name: "n", OwnerID: "o"})

	w := doJSON(t, r, "POST", "/api/v1/ledgers/c1/entries", map[string]interface{}{
		"session_id": "s-9",
		"entries": []map[string]interface{}{
			{"type": "credit", "amount": 100},
			{"type": "payee", "amount": 30, "notes": "payout"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result domain.LedgerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Ledger.Balance.Equal(decimal.NewFromInt(70)))
	require.Len(t, result.Entries, 2)
	assert.True(t, result.Entries[1].PreviousBalance.Equal(decimal.NewFromInt(100)))
}

func TestPostEntriesValidationAndErrors(t *testing.T) {
	r, st := newTestServer(t)
	seedAPIClient(t, st, &domain.Client{ID: "c1", Name: "n", OwnerID: "o"})

	w := doJSON(t, r, "POST", "/api/v1/ledgers/missing/entries", map[string]interface{}{
		"entries": []map[string]interface{}{{"type": "credit", "amount": 5}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, "POST", "/api/v1/ledgers/c1/entries", map[string]interface{}{
		"entries": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, "POST", "/api/v1/ledgers/c1/entries", map[string]interface{}{
		"entries": []map[string]interface{}{{"type": "credit", "amount": -4}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest("POST", "/api/v1/ledgers/c1/entries", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostEntriesBlockedByPolicy(t *testing.T) {
	r, st := newTestServer(t)
	last := time.Now().AddDate(0, 0, -31)
	freq := 30
	seedAPIClient(t, st, &domain.Client{
		ID: "c1", Name: "n", OwnerID: "o",
		IsVIP:                 true,
		VerificationFrequency: &freq,
		LastVerificationDate:  &last,
	})

	w := doJSON(t, r, "POST", "/api/v1/ledgers/c1/entries", map[string]interface{}{
		"entries": []map[string]interface{}{{"type": "credit", "amount": 10}},
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Verification required before proceeding", body["error"])
	assert.Contains(t, body["reason"], "31 days")
}

func TestGetLedgerAndSummary(t *testing.T) {
	r, st := newTestServer(t)
	seedAPIClient(t, st, &domain.Client{ID: "c1", Name: "n", OwnerID: "o"})

	w := doJSON(t, r, "POST", "/api/v1/ledgers/c1/entries", map[string]interface{}{
		"entries": []map[string]interface{}{{"type": "credit", "amount": 250}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/ledgers/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view domain.LedgerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Ledger.Balance.Equal(decimal.NewFromInt(250)))
	assert.Len(t, view.Entries, 1)
	assert.NotEmpty(t, view.Notifications) // balance alert

	w = doJSON(t, r, "GET", "/api/v1/ledgers/c1?startDate=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/ledgers/summary?clientIds=c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []*domain.LedgerSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].CurrentBalance.Equal(decimal.NewFromInt(250)))

	w = doJSON(t, r, "GET", "/api/v1/ledgers/summary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyClient(t *testing.T) {
	r, st := newTestServer(t)
	seedAPIClient(t, st, &domain.Client{ID: "c1", Name: "n", OwnerID: "o", IsVIP: true})

	w := doJSON(t, r, "POST", "/api/v1/ledgers/c1/verify", map[string]interface{}{
		"verified_by": "agent1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code) // no ledger yet

	w = doJSON(t, r, "POST", "/api/v1/ledgers/c1/entries", map[string]interface{}{
		"entries": []map[string]interface{}{{"type": "credit", "amount": 40}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "POST", "/api/v1/ledgers/c1/verify", map[string]interface{}{
		"verified_by": "agent1", "notes": "checked in person",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.VerificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "agent1", result.Verification.VerifiedBy)
	assert.Equal(t, domain.Verified, result.Ledger.VerificationStatus)
	assert.False(t, result.Client.VerificationRequired)

	w = doJSON(t, r, "POST", "/api/v1/ledgers/c1/verify", map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	r, st := newTestServer(t)
	seedAPIClient(t, st, &domain.Client{ID: "c1", Name: "n", OwnerID: "o"})

	w := doJSON(t, r, "POST", "/api/v1/notifications", map[string]interface{}{
		"client_id": "c1", "type": "balance_alert", "message": "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Notification *domain.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Notification)

	w = doJSON(t, r, "GET", "/api/v1/notifications?clientId=c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Notifications []*domain.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Notifications, 1)

	w = doJSON(t, r, "POST", "/api/v1/notifications/"+created.Notification.ID+"/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Dismiss again: same outcome, no error.
	w = doJSON(t, r, "POST", "/api/v1/notifications/"+created.Notification.ID+"/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/notifications?clientId=c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed.Notifications)

	w = doJSON(t, r, "POST", "/api/v1/notifications/ghost/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
