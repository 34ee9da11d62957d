package bank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridian/internal/account"
	"github.com/meridianbank/meridian/internal/money"
)

func newTestServer(t *testing.T) (*httptest.Server, *memoryRepo, *Service) {
	t.Helper()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	handler := NewHandler(slog.Default(), svc)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo, svc
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHandlerOpenAccount(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/accounts", fmt.Sprintf(
		`{"customer_id":%q,"account_type":"CHECKING","initial_deposit":"100.00","currency":"BRL"}`,
		uuid.New(),
	))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	acct := body["account"].(map[string]any)
	require.Equal(t, "MER-00000001", acct["number"])
	require.Equal(t, "ACTIVE", acct["status"])
	balance := acct["balance"].(map[string]any)
	require.Equal(t, "100.00", balance["amount"])
	require.Equal(t, "BRL", balance["currency"])
}

func TestHandlerOpenAccountValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/accounts",
		`{"customer_id":"not-a-uuid","account_type":"CHECKING","initial_deposit":"100.00","currency":"BRL"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/accounts", fmt.Sprintf(
		`{"customer_id":%q,"account_type":"PREMIUM","initial_deposit":"100.00","currency":"BRL"}`,
		uuid.New(),
	))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerDepositAndGet(t *testing.T) {
	srv, _, svc := newTestServer(t)
	acct := mustOpen(t, svc, account.TypeChecking, "100.00")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/accounts/"+acct.ID.String()+"/deposit",
		`{"amount":"50.00","currency":"BRL","description":"payroll"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	balance := body["account"].(map[string]any)["balance"].(map[string]any)
	require.Equal(t, "150.00", balance["amount"])
	events := body["events"].([]any)
	require.Equal(t, []any{"bank.account.credited"}, events)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/accounts/"+acct.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "150.00", body["balance"].(map[string]any)["amount"])
}

func TestHandlerDebitInsufficientFunds(t *testing.T) {
	srv, _, svc := newTestServer(t)
	acct := mustOpen(t, svc, account.TypeSavings, "10.00")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/accounts/"+acct.ID.String()+"/debit",
		`{"amount":"100.00","currency":"BRL","description":"too much"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "Insufficient Funds", body["title"])
}

func TestHandlerAccountNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/accounts/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerTransfer(t *testing.T) {
	srv, _, svc := newTestServer(t)
	from := mustOpen(t, svc, account.TypeChecking, "500.00")
	to := mustOpen(t, svc, account.TypeChecking, "100.00")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/transfers", fmt.Sprintf(
		`{"from_account_id":%q,"to_account_id":%q,"amount":"200.00","currency":"BRL","description":"rent"}`,
		from.ID, to.ID,
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "300.00", body["account"].(map[string]any)["balance"].(map[string]any)["amount"])
	require.Equal(t, "300.00", body["to_account"].(map[string]any)["balance"].(map[string]any)["amount"])
}

func TestHandlerDuplicateCorrelationID(t *testing.T) {
	srv, _, svc := newTestServer(t)
	acct := mustOpen(t, svc, account.TypeChecking, "100.00")

	payload := `{"amount":"50.00","currency":"BRL","description":"payroll","correlation_id":"http-dup-1"}`
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/accounts/"+acct.ID.String()+"/deposit", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/accounts/"+acct.ID.String()+"/deposit", payload)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Duplicate Request", body["title"])
}

func TestHandlerReverse(t *testing.T) {
	srv, _, svc := newTestServer(t)
	acct := mustOpen(t, svc, account.TypeChecking, "100.00")

	dep, err := svc.Deposit(t.Context(), MutationInput{
		AccountID:     acct.ID,
		Amount:        money.MustParse("50.00", "BRL"),
		Description:   "duplicate payroll",
		CorrelationID: "http-rev-setup",
	})
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/transactions/"+dep.Transaction.ID.String()+"/reverse",
		`{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "REVERSAL", body["transaction"].(map[string]any)["type"])
	require.Equal(t, "100.00", body["account"].(map[string]any)["balance"].(map[string]any)["amount"])
}

func TestHandlerStatement(t *testing.T) {
	srv, _, svc := newTestServer(t)
	acct := mustOpen(t, svc, account.TypeChecking, "100.00")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/accounts/"+acct.ID.String()+"/statement", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, acct.ID.String(), body["account"].(map[string]any)["id"])
	require.Len(t, body["transactions"].([]any), 1)
}
