// Package ledger models double-entry transactions: ordered sets of debit and
// credit entries whose sums must balance.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/meridian/internal/money"
)

// EntryType marks an entry as a debit or a credit.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType enumerates transaction kinds.
type TransactionType string

const (
	TypeDeposit  TransactionType = "DEPOSIT"
	TypePayment  TransactionType = "PAYMENT"
	TypeTransfer TransactionType = "TRANSFER"
	TypeReversal TransactionType = "REVERSAL"
)

// TransactionStatus enumerates lifecycle states.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// SystemCashAccountID is the well-known counterpart account for deposits and
// withdrawals against the outside world. It is a bookkeeping device only and
// carries no balance of its own in this service.
var SystemCashAccountID = uuid.MustParse("00000000-0000-0000-0000-0000000000ca")

// MetadataInterestCharged keys the overdraft recovery surcharge recorded on a
// deposit transaction.
const MetadataInterestCharged = "interest_charged"

var (
	// ErrUnbalanced indicates the double-entry rule was violated.
	ErrUnbalanced = errors.New("ledger: double-entry rule violated, debits must equal credits")
	// ErrTooFewEntries indicates a transaction with fewer than two entries.
	ErrTooFewEntries = errors.New("ledger: transaction requires at least two entries")
	// ErrInvalidAmount indicates a non-positive entry amount.
	ErrInvalidAmount = errors.New("ledger: entry amount must be positive")
	// ErrMissingDescription indicates an entry without an audit description.
	ErrMissingDescription = errors.New("ledger: entry description required")
	// ErrNotReversible indicates a reversal of a non-completed transaction.
	ErrNotReversible = errors.New("ledger: only completed transactions can be reversed")
)

// Entry is a single signed posting against one account. The sign lives in
// Type; Amount is always strictly positive.
type Entry struct {
	AccountID   uuid.UUID
	Amount      money.Money
	Type        EntryType
	Description string
}

// NewEntry validates and builds an entry.
func NewEntry(accountID uuid.UUID, amount money.Money, entryType EntryType, description string) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrInvalidAmount
	}
	if description == "" {
		return Entry{}, ErrMissingDescription
	}
	return Entry{AccountID: accountID, Amount: amount, Type: entryType, Description: description}, nil
}

// flip returns the entry with debit and credit swapped.
func (e Entry) flip() Entry {
	flipped := e
	if e.Type == EntryDebit {
		flipped.Type = EntryCredit
	} else {
		flipped.Type = EntryDebit
	}
	return flipped
}

// Transaction is an immutable aggregate of exactly-balanced entries.
type Transaction struct {
	ID            uuid.UUID
	Type          TransactionType
	Description   string
	CorrelationID string
	Entries       []Entry
	Status        TransactionStatus
	Version       int64
	Metadata      map[string]string
	CreatedAt     time.Time
}

// TotalAmount is the magnitude moved: the sum of the debit side.
func (t Transaction) TotalAmount() money.Money {
	total, _ := money.Zero(t.currency())
	for _, e := range t.Entries {
		if e.Type != EntryDebit {
			continue
		}
		total, _ = total.Add(e.Amount)
	}
	return total
}

func (t Transaction) currency() string {
	if len(t.Entries) == 0 {
		return ""
	}
	return t.Entries[0].Amount.Currency()
}

// WithStatus returns a copy with the given status.
func (t Transaction) WithStatus(status TransactionStatus) Transaction {
	out := t.clone()
	out.Status = status
	return out
}

// WithMetadata returns a copy with one metadata key set.
func (t Transaction) WithMetadata(key, value string) Transaction {
	out := t.clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]string, 1)
	}
	out.Metadata[key] = value
	return out
}

func (t Transaction) clone() Transaction {
	out := t
	out.Entries = append([]Entry(nil), t.Entries...)
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Reverse produces a new pending REVERSAL transaction whose entries are this
// transaction's entries with debit and credit swapped, preserving amounts and
// accounts. Only completed transactions can be reversed.
func (t Transaction) Reverse(reason, correlationID string) (Transaction, error) {
	if t.Status != StatusCompleted {
		return Transaction{}, ErrNotReversible
	}
	entries := make([]Entry, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = e.flip()
	}
	return Transaction{
		ID:            uuid.New(),
		Type:          TypeReversal,
		Description:   fmt.Sprintf("Reversal of %s: %s", t.ID, reason),
		CorrelationID: correlationID,
		Entries:       entries,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// NewTransfer builds a pending transfer: one debit on the source account and
// one credit on the destination, both for amount.
func NewTransfer(fromAccountID, toAccountID uuid.UUID, amount money.Money, description, correlationID string) (Transaction, error) {
	return NewBuilder(TypeTransfer, description, correlationID).
		AddDebit(fromAccountID, amount, description).
		AddCredit(toAccountID, amount, description).
		Build()
}

// NewDeposit builds a pending deposit: a debit against the system cash
// account balanced by a credit on the customer account.
func NewDeposit(accountID uuid.UUID, amount money.Money, description, correlationID string) (Transaction, error) {
	return NewBuilder(TypeDeposit, description, correlationID).
		AddDebit(SystemCashAccountID, amount, description).
		AddCredit(accountID, amount, description).
		Build()
}

// NewWithdrawal builds a pending payment out of the customer account: a debit
// on the account balanced by a credit to the system cash account.
func NewWithdrawal(accountID uuid.UUID, amount money.Money, description, correlationID string) (Transaction, error) {
	return NewBuilder(TypePayment, description, correlationID).
		AddDebit(accountID, amount, description).
		AddCredit(SystemCashAccountID, amount, description).
		Build()
}
