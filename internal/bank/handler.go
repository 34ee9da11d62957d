package bank

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridianbank/meridian/internal/account"
	"github.com/meridianbank/meridian/internal/ledger"
	"github.com/meridianbank/meridian/internal/money"
	"github.com/meridianbank/meridian/internal/platform/httpx"
	"github.com/meridianbank/meridian/internal/shared"
)

// Handler exposes the gateway commands over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers bank routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts", h.openAccount)
	r.Get("/accounts/{id}", h.getAccount)
	r.Get("/accounts/{id}/statement", h.getStatement)
	r.Post("/accounts/{id}/deposit", h.deposit)
	r.Post("/accounts/{id}/debit", h.debit)
	r.Post("/transfers", h.transfer)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Post("/transactions/{id}/reverse", h.reverse)
}

func (h *Handler) openAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer_id must be a UUID")
		return
	}
	deposit, err := money.FromString(req.Amount, req.Currency)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.service.OpenAccount(r.Context(), OpenAccountInput{
		CustomerID:     customerID,
		AccountType:    account.Type(req.AccountType),
		InitialDeposit: deposit,
		CorrelationID:  req.CorrelationID,
	})
	if err != nil {
		h.logger.Error("open account", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMutationResponse(result))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	acct, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acct))
}

// getStatement returns the account and its recent transactions, fetched
// concurrently.
func (h *Handler) getStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	var (
		acct account.Account
		txns []ledger.Transaction
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		acct, err = h.service.GetAccount(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = h.service.ListAccountTransactions(ctx, id, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		h.respondError(w, err)
		return
	}

	resp := statementResponse{Account: toAccountResponse(acct), Transactions: make([]transactionResponse, len(txns))}
	for i, txn := range txns {
		resp.Transactions[i] = toTransactionResponse(txn)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Deposit)
}

func (h *Handler) debit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Debit)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, MutationInput) (Result, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req mutationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := money.FromString(req.Amount, req.Currency)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := op(r.Context(), MutationInput{
		AccountID:     id,
		Amount:        amount,
		Description:   req.Description,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		h.logger.Error("account mutation", slog.String("account_id", id.String()), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMutationResponse(result))
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from_account_id must be a UUID")
		return
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to_account_id must be a UUID")
		return
	}
	amount, err := money.FromString(req.Amount, req.Currency)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.service.Transfer(r.Context(), TransferInput{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Description:   req.Description,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		h.logger.Error("transfer", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMutationResponse(result))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.Reverse(r.Context(), ReverseInput{
		TransactionID: id,
		Reason:        req.Reason,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		h.logger.Error("reverse transaction", slog.String("transaction_id", id.String()), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMutationResponse(result))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors to RFC7807 responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, account.ErrInsufficientFunds):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Funds", err.Error())
	case errors.Is(err, account.ErrInvalidInitialDeposit),
		errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, account.ErrMissingReason),
		errors.Is(err, account.ErrUnknownType),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrMissingDescription),
		errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, ledger.ErrTooFewEntries),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrDivisionByZero):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violated", err.Error())
	case errors.Is(err, account.ErrNotTransactable), errors.Is(err, ledger.ErrNotReversible):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrDuplicateRequest):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		httpx.Problem(w, http.StatusConflict, "Concurrent Modification", err.Error())
	case errors.Is(err, shared.ErrLockTimeout):
		httpx.Problem(w, http.StatusLocked, "Account Busy", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
