package bank

import (
	"time"

	"github.com/meridianbank/meridian/internal/account"
	"github.com/meridianbank/meridian/internal/ledger"
	"github.com/meridianbank/meridian/internal/money"
)

type openAccountRequest struct {
	CustomerID    string `json:"customer_id" validate:"required,uuid4"`
	AccountType   string `json:"account_type" validate:"required,oneof=SAVINGS CHECKING BUSINESS"`
	Amount        string `json:"initial_deposit" validate:"required"`
	Currency      string `json:"currency" validate:"required,len=3"`
	CorrelationID string `json:"correlation_id"`
}

type mutationRequest struct {
	Amount        string `json:"amount" validate:"required"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Description   string `json:"description" validate:"required"`
	CorrelationID string `json:"correlation_id"`
}

type transferRequest struct {
	FromAccountID string `json:"from_account_id" validate:"required,uuid4"`
	ToAccountID   string `json:"to_account_id" validate:"required,uuid4"`
	Amount        string `json:"amount" validate:"required"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Description   string `json:"description" validate:"required"`
	CorrelationID string `json:"correlation_id"`
}

type reverseRequest struct {
	Reason        string `json:"reason" validate:"required"`
	CorrelationID string `json:"correlation_id"`
}

type accountResponse struct {
	ID         string      `json:"id"`
	Number     string      `json:"number"`
	CustomerID string      `json:"customer_id"`
	Type       string      `json:"type"`
	Balance    money.Money `json:"balance"`
	Status     string      `json:"status"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type entryResponse struct {
	AccountID   string      `json:"account_id"`
	Amount      money.Money `json:"amount"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
}

type transactionResponse struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Description   string            `json:"description"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Status        string            `json:"status"`
	TotalAmount   money.Money       `json:"total_amount"`
	Entries       []entryResponse   `json:"entries"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type mutationResponse struct {
	Account     accountResponse     `json:"account"`
	ToAccount   *accountResponse    `json:"to_account,omitempty"`
	Transaction transactionResponse `json:"transaction"`
	Events      []string            `json:"events"`
}

type statementResponse struct {
	Account      accountResponse       `json:"account"`
	Transactions []transactionResponse `json:"transactions"`
}

func toAccountResponse(acct account.Account) accountResponse {
	return accountResponse{
		ID:         acct.ID.String(),
		Number:     acct.Number,
		CustomerID: acct.CustomerID.String(),
		Type:       string(acct.Type),
		Balance:    acct.Balance,
		Status:     string(acct.Status),
		Version:    acct.Version,
		CreatedAt:  acct.CreatedAt,
		UpdatedAt:  acct.UpdatedAt,
	}
}

func toTransactionResponse(txn ledger.Transaction) transactionResponse {
	entries := make([]entryResponse, len(txn.Entries))
	for i, e := range txn.Entries {
		entries[i] = entryResponse{
			AccountID:   e.AccountID.String(),
			Amount:      e.Amount,
			Type:        string(e.Type),
			Description: e.Description,
		}
	}
	return transactionResponse{
		ID:            txn.ID.String(),
		Type:          string(txn.Type),
		Description:   txn.Description,
		CorrelationID: txn.CorrelationID,
		Status:        string(txn.Status),
		TotalAmount:   txn.TotalAmount(),
		Entries:       entries,
		Metadata:      txn.Metadata,
		CreatedAt:     txn.CreatedAt,
	}
}

func toMutationResponse(result Result) mutationResponse {
	resp := mutationResponse{
		Account:     toAccountResponse(result.Account),
		Transaction: toTransactionResponse(result.Transaction),
	}
	if result.ToAccount != nil {
		to := toAccountResponse(*result.ToAccount)
		resp.ToAccount = &to
	}
	resp.Events = make([]string, len(result.Events))
	for i, ev := range result.Events {
		resp.Events[i] = ev.EventName()
	}
	return resp
}
