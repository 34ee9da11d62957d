// Package bank is the balance mutation gateway: it sequences the locked
// fetch, domain operation and version-checked persist cycle so concurrent
// operations on one account never interleave their reads and writes.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/meridian/internal/account"
	"github.com/meridianbank/meridian/internal/ledger"
	"github.com/meridianbank/meridian/internal/money"
)

var (
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("bank: account not found")
	// ErrTransactionNotFound indicates the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("bank: transaction not found")
	// ErrVersionConflict is returned by repositories when the persisted
	// version no longer matches the expected one.
	ErrVersionConflict = errors.New("bank: account version conflict")
	// ErrConcurrencyConflict indicates the retry budget for version conflicts
	// was exhausted; the caller should reload and retry.
	ErrConcurrencyConflict = errors.New("bank: concurrent modification, retry with a fresh read")
	// ErrPersistenceFailure wraps storage-layer errors. Never retried here.
	ErrPersistenceFailure = errors.New("bank: persistence failure")
)

// TxRepository exposes the operations that must commit atomically.
type TxRepository interface {
	// SaveAccount persists the account state if the stored version still
	// equals expectedVersion, otherwise returns ErrVersionConflict.
	SaveAccount(ctx context.Context, acct account.Account, expectedVersion int64) error
	InsertAccount(ctx context.Context, acct account.Account) error
	InsertTransaction(ctx context.Context, txn ledger.Transaction) error
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error
}

// RepositoryPort defines data access for the gateway.
type RepositoryPort interface {
	GenerateAccountNumber(ctx context.Context) (string, error)
	GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error)
	ListAccountTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]ledger.Transaction, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Locker serializes writers per account with a bounded wait.
type Locker interface {
	Acquire(ctx context.Context, accountID uuid.UUID) (func(), error)
}

// IdempotencyPort guards correlation keys against double processing.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

// Service implements the inbound command surface.
type Service struct {
	repo       RepositoryPort
	locks      Locker
	idem       IdempotencyPort
	logger     *slog.Logger
	maxRetries int
}

// NewService builds the gateway. maxRetries bounds the compare-and-swap retry
// loop; values below 1 are clamped to 1.
func NewService(repo RepositoryPort, locks Locker, idem IdempotencyPort, logger *slog.Logger, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{repo: repo, locks: locks, idem: idem, logger: logger, maxRetries: maxRetries}
}

// OpenAccountInput carries the account creation command.
type OpenAccountInput struct {
	CustomerID     uuid.UUID
	AccountType    account.Type
	InitialDeposit money.Money
	CorrelationID  string
}

// MutationInput carries a deposit or debit command.
type MutationInput struct {
	AccountID     uuid.UUID
	Amount        money.Money
	Description   string
	CorrelationID string
}

// TransferInput carries a transfer command.
type TransferInput struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        money.Money
	Description   string
	CorrelationID string
}

// ReverseInput carries a reversal command.
type ReverseInput struct {
	TransactionID uuid.UUID
	Reason        string
	CorrelationID string
}

// Result is the outcome of a successful mutation: the updated aggregates, the
// persisted transaction and the events the caller may deliver.
type Result struct {
	Account     account.Account
	ToAccount   *account.Account
	Transaction ledger.Transaction
	Events      []Event
}

// OpenAccount creates and funds a new account. The initial deposit is
// recorded as a regular deposit transaction for a complete audit trail.
func (s *Service) OpenAccount(ctx context.Context, in OpenAccountInput) (Result, error) {
	acct, err := account.Open(in.CustomerID, in.AccountType, in.InitialDeposit)
	if err != nil {
		return Result{}, err
	}

	number, err := s.repo.GenerateAccountNumber(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	acct.Number = number

	txn, err := ledger.NewDeposit(acct.ID, in.InitialDeposit, "Initial deposit", in.CorrelationID)
	if err != nil {
		return Result{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertAccount(ctx, acct); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.UpdateTransactionStatus(ctx, txn.ID, ledger.StatusCompleted)
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	now := time.Now().UTC()
	return Result{
		Account:     acct,
		Transaction: txn.WithStatus(ledger.StatusCompleted),
		Events: []Event{AccountOpened{
			AccountID:      acct.ID,
			AccountNumber:  acct.Number,
			CustomerID:     acct.CustomerID,
			InitialDeposit: in.InitialDeposit,
			OccurredAt:     now,
		}},
	}, nil
}

// Deposit credits an account. When the deposit clears a negative balance the
// overdraft recovery surcharge is withheld first, so the ledger movement and
// the balance change both reflect the net amount; the surcharge is recorded
// on the transaction metadata.
func (s *Service) Deposit(ctx context.Context, in MutationInput) (Result, error) {
	return s.withIdempotency(ctx, in.CorrelationID, "bank:deposit", func() (Result, error) {
		release, err := s.locks.Acquire(ctx, in.AccountID)
		if err != nil {
			return Result{}, err
		}
		defer release()

		return s.mutateWithRetry(ctx, func() (Result, error) {
			acct, err := s.repo.GetAccount(ctx, in.AccountID)
			if err != nil {
				return Result{}, err
			}

			interest, err := account.RecoveryInterest(acct.Balance, in.Amount)
			if err != nil {
				return Result{}, err
			}
			net := in.Amount
			if interest.IsPositive() {
				if net, err = in.Amount.Sub(interest); err != nil {
					return Result{}, err
				}
			}

			updated, err := acct.Credit(net, in.Description)
			if err != nil {
				return Result{}, err
			}

			txn, err := ledger.NewDeposit(acct.ID, net, in.Description, in.CorrelationID)
			if err != nil {
				return Result{}, err
			}
			if interest.IsPositive() {
				txn = txn.WithMetadata(ledger.MetadataInterestCharged, interest.String())
			}

			if err := s.persistMutation(ctx, txn, accountSave{acct: updated, expectedVersion: acct.Version}); err != nil {
				return Result{}, err
			}

			now := time.Now().UTC()
			events := []Event{AccountCredited{
				AccountID:     acct.ID,
				TransactionID: txn.ID,
				Amount:        net,
				NewBalance:    updated.Balance,
				OccurredAt:    now,
			}}
			if interest.IsPositive() {
				events = append(events, OverdraftInterestCharged{
					AccountID:     acct.ID,
					TransactionID: txn.ID,
					Interest:      interest,
					OccurredAt:    now,
				})
			}
			return Result{Account: updated, Transaction: txn.WithStatus(ledger.StatusCompleted), Events: events}, nil
		})
	})
}

// Debit withdraws from an account, bounded by the product's overdraft floor.
func (s *Service) Debit(ctx context.Context, in MutationInput) (Result, error) {
	return s.withIdempotency(ctx, in.CorrelationID, "bank:debit", func() (Result, error) {
		release, err := s.locks.Acquire(ctx, in.AccountID)
		if err != nil {
			return Result{}, err
		}
		defer release()

		return s.mutateWithRetry(ctx, func() (Result, error) {
			acct, err := s.repo.GetAccount(ctx, in.AccountID)
			if err != nil {
				return Result{}, err
			}

			updated, err := acct.Debit(in.Amount, in.Description)
			if err != nil {
				return Result{}, err
			}

			txn, err := ledger.NewWithdrawal(acct.ID, in.Amount, in.Description, in.CorrelationID)
			if err != nil {
				return Result{}, err
			}

			if err := s.persistMutation(ctx, txn, accountSave{acct: updated, expectedVersion: acct.Version}); err != nil {
				return Result{}, err
			}

			return Result{
				Account:     updated,
				Transaction: txn.WithStatus(ledger.StatusCompleted),
				Events: []Event{AccountDebited{
					AccountID:     acct.ID,
					TransactionID: txn.ID,
					Amount:        in.Amount,
					NewBalance:    updated.Balance,
					OccurredAt:    time.Now().UTC(),
				}},
			}, nil
		})
	})
}

// Transfer moves an amount between two accounts as a single balanced
// transaction. Locks are taken in account-id order so two opposing transfers
// cannot deadlock.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (Result, error) {
	if in.FromAccountID == in.ToAccountID {
		return Result{}, fmt.Errorf("%w: transfer to the same account", ledger.ErrInvalidAmount)
	}

	return s.withIdempotency(ctx, in.CorrelationID, "bank:transfer", func() (Result, error) {
		release, err := s.acquireOrdered(ctx, in.FromAccountID, in.ToAccountID)
		if err != nil {
			return Result{}, err
		}
		defer release()

		return s.mutateWithRetry(ctx, func() (Result, error) {
			from, err := s.repo.GetAccount(ctx, in.FromAccountID)
			if err != nil {
				return Result{}, err
			}
			to, err := s.repo.GetAccount(ctx, in.ToAccountID)
			if err != nil {
				return Result{}, err
			}

			updatedFrom, err := from.Debit(in.Amount, in.Description)
			if err != nil {
				return Result{}, err
			}
			updatedTo, err := to.Credit(in.Amount, in.Description)
			if err != nil {
				return Result{}, err
			}

			txn, err := ledger.NewTransfer(from.ID, to.ID, in.Amount, in.Description, in.CorrelationID)
			if err != nil {
				return Result{}, err
			}

			err = s.persistMutation(ctx, txn,
				accountSave{acct: updatedFrom, expectedVersion: from.Version},
				accountSave{acct: updatedTo, expectedVersion: to.Version},
			)
			if err != nil {
				return Result{}, err
			}

			return Result{
				Account:     updatedFrom,
				ToAccount:   &updatedTo,
				Transaction: txn.WithStatus(ledger.StatusCompleted),
				Events: []Event{TransferCompleted{
					TransactionID: txn.ID,
					FromAccountID: from.ID,
					ToAccountID:   to.ID,
					Amount:        in.Amount,
					OccurredAt:    time.Now().UTC(),
				}},
			}, nil
		})
	})
}

// Reverse applies the flipped entries of a completed transaction back to the
// affected accounts and records the reversal.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (Result, error) {
	return s.withIdempotency(ctx, in.CorrelationID, "bank:reverse", func() (Result, error) {
		original, err := s.repo.GetTransaction(ctx, in.TransactionID)
		if err != nil {
			return Result{}, err
		}

		reversal, err := original.Reverse(in.Reason, in.CorrelationID)
		if err != nil {
			return Result{}, err
		}

		accountIDs := customerAccountIDs(reversal)
		release, err := s.acquireOrdered(ctx, accountIDs...)
		if err != nil {
			return Result{}, err
		}
		defer release()

		return s.mutateWithRetry(ctx, func() (Result, error) {
			saves := make([]accountSave, 0, len(accountIDs))
			var first account.Account
			for i, id := range accountIDs {
				acct, err := s.repo.GetAccount(ctx, id)
				if err != nil {
					return Result{}, err
				}
				updated, err := applyEntries(acct, reversal)
				if err != nil {
					return Result{}, err
				}
				saves = append(saves, accountSave{acct: updated, expectedVersion: acct.Version})
				if i == 0 {
					first = updated
				}
			}

			if err := s.persistMutation(ctx, reversal, saves...); err != nil {
				return Result{}, err
			}

			return Result{
				Account:     first,
				Transaction: reversal.WithStatus(ledger.StatusCompleted),
				Events: []Event{TransactionReversed{
					OriginalID: original.ID,
					ReversalID: reversal.ID,
					Reason:     in.Reason,
					OccurredAt: time.Now().UTC(),
				}},
			}, nil
		})
	})
}

// GetAccount loads one account.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// GetTransaction loads one transaction.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListAccountTransactions returns an account's most recent transactions.
func (s *Service) ListAccountTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListAccountTransactions(ctx, accountID, limit)
}

type accountSave struct {
	acct            account.Account
	expectedVersion int64
}

// persistMutation commits the transaction record and the version-checked
// account writes atomically. ErrVersionConflict passes through untouched so
// the retry loop can see it; everything else is a persistence failure.
func (s *Service) persistMutation(ctx context.Context, txn ledger.Transaction, saves ...accountSave) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, save := range saves {
			if err := tx.SaveAccount(ctx, save.acct, save.expectedVersion); err != nil {
				return err
			}
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.UpdateTransactionStatus(ctx, txn.ID, ledger.StatusCompleted)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrVersionConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}

// mutateWithRetry runs the read-apply-persist cycle, retrying with a fresh
// read on version conflicts up to the configured budget.
func (s *Service) mutateWithRetry(ctx context.Context, attempt func() (Result, error)) (Result, error) {
	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		result, err := attempt()
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Result{}, err
		}
		lastErr = err
		if s.logger != nil {
			s.logger.Debug("version conflict, retrying", slog.Int("attempt", i+1))
		}
	}
	return Result{}, fmt.Errorf("%w: %w", ErrConcurrencyConflict, lastErr)
}

// withIdempotency guards a command behind its correlation key. The key is
// removed again when processing fails so the caller's retry is not rejected.
func (s *Service) withIdempotency(ctx context.Context, correlationID, scope string, fn func() (Result, error)) (Result, error) {
	if correlationID == "" || s.idem == nil {
		return fn()
	}
	if err := s.idem.CheckAndInsert(ctx, correlationID, scope); err != nil {
		return Result{}, err
	}
	result, err := fn()
	if err != nil {
		if delErr := s.idem.Delete(ctx, correlationID); delErr != nil && s.logger != nil {
			s.logger.Warn("release correlation key", slog.String("key", correlationID), slog.Any("error", delErr))
		}
		return Result{}, err
	}
	return result, nil
}

// acquireOrdered takes per-account locks in a stable order to avoid deadlock
// between commands touching the same accounts in opposite order.
func (s *Service) acquireOrdered(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, id := range ordered {
		release, err := s.locks.Acquire(ctx, id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// customerAccountIDs lists the distinct non-system accounts a transaction
// touches, in entry order.
func customerAccountIDs(txn ledger.Transaction) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(txn.Entries))
	var ids []uuid.UUID
	for _, e := range txn.Entries {
		if e.AccountID == ledger.SystemCashAccountID {
			continue
		}
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}
	return ids
}

// applyEntries replays a transaction's entries for one account onto its
// balance. Used by reversals, where each flipped entry becomes a debit or
// credit on the affected account.
func applyEntries(acct account.Account, txn ledger.Transaction) (account.Account, error) {
	updated := acct
	var err error
	for _, e := range txn.Entries {
		if e.AccountID != acct.ID {
			continue
		}
		switch e.Type {
		case ledger.EntryDebit:
			updated, err = updated.Debit(e.Amount, e.Description)
		case ledger.EntryCredit:
			updated, err = updated.Credit(e.Amount, e.Description)
		}
		if err != nil {
			return account.Account{}, err
		}
	}
	return updated, nil
}
