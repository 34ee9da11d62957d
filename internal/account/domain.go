// Package account holds the Account aggregate: balance, type-specific limits
// and an optimistic-concurrency version. Debit and credit never mutate in
// place; they return a new Account with version+1.
package account

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/meridian/internal/money"
)

// Type enumerates account products.
type Type string

const (
	TypeSavings  Type = "SAVINGS"
	TypeChecking Type = "CHECKING"
	TypeBusiness Type = "BUSINESS"
)

// Status enumerates account lifecycle states.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusActive          Status = "ACTIVE"
	StatusSuspended       Status = "SUSPENDED"
	StatusClosed          Status = "CLOSED"
)

var (
	// ErrInvalidInitialDeposit indicates an opening amount below the product minimum.
	ErrInvalidInitialDeposit = errors.New("account: initial deposit below product minimum")
	// ErrInsufficientFunds indicates a debit that would breach the overdraft floor.
	ErrInsufficientFunds = errors.New("account: insufficient funds")
	// ErrInvalidAmount indicates a non-positive operation amount.
	ErrInvalidAmount = errors.New("account: amount must be positive")
	// ErrMissingReason indicates a mutation without an audit reason.
	ErrMissingReason = errors.New("account: reason required")
	// ErrNotTransactable indicates the account status blocks mutations.
	ErrNotTransactable = errors.New("account: account is not active")
	// ErrUnknownType indicates an account type outside the product table.
	ErrUnknownType = errors.New("account: unknown account type")
	// ErrInvalidStatusChange indicates a transition the state machine forbids.
	ErrInvalidStatusChange = errors.New("account: invalid status transition")
)

// rules fixes the per-product minimum opening deposit and overdraft floor,
// expressed in the account currency.
type rules struct {
	minInitialDeposit string
	overdraftFloor    string
}

var typeRules = map[Type]rules{
	TypeSavings:  {minInitialDeposit: "10.00", overdraftFloor: "0.00"},
	TypeChecking: {minInitialDeposit: "50.00", overdraftFloor: "-1000.00"},
	TypeBusiness: {minInitialDeposit: "500.00", overdraftFloor: "-5000.00"},
}

// MinInitialDeposit returns the opening minimum for a product in a currency.
func MinInitialDeposit(t Type, currency string) (money.Money, error) {
	r, ok := typeRules[t]
	if !ok {
		return money.Money{}, ErrUnknownType
	}
	return money.FromString(r.minInitialDeposit, currency)
}

// OverdraftFloor returns the lowest balance a product permits in a currency.
func OverdraftFloor(t Type, currency string) (money.Money, error) {
	r, ok := typeRules[t]
	if !ok {
		return money.Money{}, ErrUnknownType
	}
	return money.FromString(r.overdraftFloor, currency)
}

// Account is the aggregate root. Values are immutable; mutations return a new
// Account with Version incremented by exactly one.
type Account struct {
	ID         uuid.UUID
	Number     string
	CustomerID uuid.UUID
	Type       Type
	Balance    money.Money
	Status     Status
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Open creates an active account funded by the initial deposit. The deposit
// must be positive and at least the product minimum; the balance currency is
// fixed at creation.
func Open(customerID uuid.UUID, accountType Type, initialDeposit money.Money) (Account, error) {
	if _, ok := typeRules[accountType]; !ok {
		return Account{}, ErrUnknownType
	}
	if !initialDeposit.IsPositive() {
		return Account{}, ErrInvalidInitialDeposit
	}
	minimum, err := MinInitialDeposit(accountType, initialDeposit.Currency())
	if err != nil {
		return Account{}, err
	}
	enough, err := initialDeposit.GreaterThanOrEqual(minimum)
	if err != nil {
		return Account{}, err
	}
	if !enough {
		return Account{}, ErrInvalidInitialDeposit
	}

	now := time.Now().UTC()
	return Account{
		ID:         uuid.New(),
		CustomerID: customerID,
		Type:       accountType,
		Balance:    initialDeposit,
		Status:     StatusActive,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanTransact reports whether the status permits debits and credits.
func (a Account) CanTransact() bool {
	return a.Status == StatusActive
}

// CanDebit reports whether a debit of amount keeps the balance at or above
// the product's overdraft floor. A false result carries no error detail; use
// Debit for the typed failure.
func (a Account) CanDebit(amount money.Money) bool {
	if !a.CanTransact() || !amount.IsPositive() {
		return false
	}
	floor, err := OverdraftFloor(a.Type, a.Balance.Currency())
	if err != nil {
		return false
	}
	next, err := a.Balance.Sub(amount)
	if err != nil {
		return false
	}
	ok, err := next.GreaterThanOrEqual(floor)
	return err == nil && ok
}

// Debit returns a new Account with the amount removed from the balance.
func (a Account) Debit(amount money.Money, reason string) (Account, error) {
	if err := a.guard(amount, reason); err != nil {
		return Account{}, err
	}
	if !a.CanDebit(amount) {
		return Account{}, ErrInsufficientFunds
	}
	next, err := a.Balance.Sub(amount)
	if err != nil {
		return Account{}, err
	}
	return a.withBalance(next), nil
}

// Credit returns a new Account with the amount added to the balance. There is
// no upper bound check.
func (a Account) Credit(amount money.Money, reason string) (Account, error) {
	if err := a.guard(amount, reason); err != nil {
		return Account{}, err
	}
	next, err := a.Balance.Add(amount)
	if err != nil {
		return Account{}, err
	}
	return a.withBalance(next), nil
}

func (a Account) guard(amount money.Money, reason string) error {
	if !a.CanTransact() {
		return ErrNotTransactable
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if reason == "" {
		return ErrMissingReason
	}
	return nil
}

func (a Account) withBalance(balance money.Money) Account {
	next := a
	next.Balance = balance
	next.Version = a.Version + 1
	next.UpdatedAt = time.Now().UTC()
	return next
}

// validTransitions encodes the status machine. CLOSED is terminal; accounts
// are never physically destroyed.
var validTransitions = map[Status][]Status{
	StatusPendingApproval: {StatusActive},
	StatusActive:          {StatusSuspended, StatusClosed},
	StatusSuspended:       {StatusActive, StatusClosed},
	StatusClosed:          {},
}

// TransitionTo returns a copy in the new status, or ErrInvalidStatusChange.
func (a Account) TransitionTo(status Status) (Account, error) {
	for _, allowed := range validTransitions[a.Status] {
		if allowed == status {
			next := a
			next.Status = status
			next.Version = a.Version + 1
			next.UpdatedAt = time.Now().UTC()
			return next, nil
		}
	}
	return Account{}, ErrInvalidStatusChange
}
