package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/meridian/internal/money"
)

// Builder accumulates entries for a transaction and validates the
// double-entry rule at Build time. Entry-level validation errors are held
// until Build so calls can be chained.
type Builder struct {
	txType        TransactionType
	description   string
	correlationID string
	entries       []Entry
	err           error
}

// NewBuilder starts a transaction of the given type.
func NewBuilder(txType TransactionType, description, correlationID string) *Builder {
	return &Builder{txType: txType, description: description, correlationID: correlationID}
}

// AddDebit appends a debit entry.
func (b *Builder) AddDebit(accountID uuid.UUID, amount money.Money, description string) *Builder {
	return b.add(accountID, amount, EntryDebit, description)
}

// AddCredit appends a credit entry.
func (b *Builder) AddCredit(accountID uuid.UUID, amount money.Money, description string) *Builder {
	return b.add(accountID, amount, EntryCredit, description)
}

func (b *Builder) add(accountID uuid.UUID, amount money.Money, entryType EntryType, description string) *Builder {
	if b.err != nil {
		return b
	}
	entry, err := NewEntry(accountID, amount, entryType, description)
	if err != nil {
		b.err = err
		return b
	}
	b.entries = append(b.entries, entry)
	return b
}

// Build validates and returns the pending transaction.
func (b *Builder) Build() (Transaction, error) {
	if b.err != nil {
		return Transaction{}, b.err
	}
	if len(b.entries) < 2 {
		return Transaction{}, ErrTooFewEntries
	}

	currency := b.entries[0].Amount.Currency()
	debits, err := money.Zero(currency)
	if err != nil {
		return Transaction{}, err
	}
	credits := debits
	for _, e := range b.entries {
		switch e.Type {
		case EntryDebit:
			debits, err = debits.Add(e.Amount)
		case EntryCredit:
			credits, err = credits.Add(e.Amount)
		}
		if err != nil {
			return Transaction{}, err
		}
	}
	if !debits.Equal(credits) {
		return Transaction{}, ErrUnbalanced
	}

	return Transaction{
		ID:            uuid.New(),
		Type:          b.txType,
		Description:   b.description,
		CorrelationID: b.correlationID,
		Entries:       append([]Entry(nil), b.entries...),
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
