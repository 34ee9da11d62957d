package bank

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/meridian/internal/money"
)

// Event is a domain event produced by a successful mutation. Events are plain
// return values; delivery is the caller's concern.
type Event interface {
	EventName() string
}

// AccountOpened is emitted when a new account is created and funded.
type AccountOpened struct {
	AccountID      uuid.UUID
	AccountNumber  string
	CustomerID     uuid.UUID
	InitialDeposit money.Money
	OccurredAt     time.Time
}

func (AccountOpened) EventName() string { return "bank.account.opened" }

// AccountCredited is emitted when a deposit is applied.
type AccountCredited struct {
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Amount        money.Money
	NewBalance    money.Money
	OccurredAt    time.Time
}

func (AccountCredited) EventName() string { return "bank.account.credited" }

// AccountDebited is emitted when a debit is applied.
type AccountDebited struct {
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Amount        money.Money
	NewBalance    money.Money
	OccurredAt    time.Time
}

func (AccountDebited) EventName() string { return "bank.account.debited" }

// TransferCompleted is emitted when both legs of a transfer commit.
type TransferCompleted struct {
	TransactionID uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        money.Money
	OccurredAt    time.Time
}

func (TransferCompleted) EventName() string { return "bank.transfer.completed" }

// TransactionReversed is emitted when a completed transaction is reversed.
type TransactionReversed struct {
	OriginalID uuid.UUID
	ReversalID uuid.UUID
	Reason     string
	OccurredAt time.Time
}

func (TransactionReversed) EventName() string { return "bank.transaction.reversed" }

// OverdraftInterestCharged is emitted when a deposit clears a negative
// balance and the recovery surcharge is withheld from it.
type OverdraftInterestCharged struct {
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Interest      money.Money
	OccurredAt    time.Time
}

func (OverdraftInterestCharged) EventName() string { return "bank.overdraft.interest_charged" }
