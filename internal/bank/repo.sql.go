package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridian/internal/account"
	"github.com/meridianbank/meridian/internal/ledger"
	"github.com/meridianbank/meridian/internal/money"
	"github.com/meridianbank/meridian/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for accounts and
// transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAccountNumber allocates the next display number from a sequence.
func (r *Repository) GenerateAccountNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('account_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("MER-%08d", seq), nil
}

const accountColumns = `id, number, customer_id, type, balance::text, currency, status, version, created_at, updated_at`

// GetAccount loads one account by id.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var (
		acct     account.Account
		amount   string
		currency string
		acctType string
		status   string
	)
	err := row.Scan(&acct.ID, &acct.Number, &acct.CustomerID, &acctType, &amount, &currency, &status, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}
		return account.Account{}, err
	}
	acct.Type = account.Type(acctType)
	acct.Status = account.Status(status)
	if acct.Balance, err = money.FromString(amount, currency); err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

// GetTransaction loads one transaction with its entries.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, type, description, correlation_id, status, version, metadata, created_at FROM transactions WHERE id=$1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		return ledger.Transaction{}, err
	}
	txn.Entries, err = r.listEntries(ctx, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return txn, nil
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var (
		txn      ledger.Transaction
		txType   string
		status   string
		metadata []byte
	)
	err := row.Scan(&txn.ID, &txType, &txn.Description, &txn.CorrelationID, &status, &txn.Version, &metadata, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Transaction{}, ErrTransactionNotFound
		}
		return ledger.Transaction{}, err
	}
	txn.Type = ledger.TransactionType(txType)
	txn.Status = ledger.TransactionStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &txn.Metadata); err != nil {
			return ledger.Transaction{}, fmt.Errorf("bank: decode transaction metadata: %w", err)
		}
	}
	return txn, nil
}

func (r *Repository) listEntries(ctx context.Context, transactionID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_id, amount::text, currency, entry_type, description FROM ledger_entries WHERE transaction_id=$1 ORDER BY position`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			entry     ledger.Entry
			amount    string
			currency  string
			entryType string
		)
		if err := rows.Scan(&entry.AccountID, &amount, &currency, &entryType, &entry.Description); err != nil {
			return nil, err
		}
		entry.Type = ledger.EntryType(entryType)
		if entry.Amount, err = money.FromString(amount, currency); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListAccountTransactions returns the most recent transactions that posted an
// entry against the account.
func (r *Repository) ListAccountTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]ledger.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT t.id, t.type, t.description, t.correlation_id, t.status, t.version, t.metadata, t.created_at
FROM transactions t
JOIN ledger_entries e ON e.transaction_id = t.id
WHERE e.account_id = $1
ORDER BY t.created_at DESC
LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range txns {
		if txns[i].Entries, err = r.listEntries(ctx, txns[i].ID); err != nil {
			return nil, err
		}
	}
	return txns, nil
}

// ListOverdrawn returns active accounts with a negative balance, for the
// overdraft exposure scan.
func (r *Repository) ListOverdrawn(ctx context.Context) ([]account.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE status='ACTIVE' AND balance < 0 ORDER BY balance`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

// InsertAccount persists a newly opened account.
func (t *txRepo) InsertAccount(ctx context.Context, acct account.Account) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO accounts (id, number, customer_id, type, balance, currency, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		acct.ID, acct.Number, acct.CustomerID, string(acct.Type),
		acct.Balance.Amount().String(), acct.Balance.Currency(),
		string(acct.Status), acct.Version, acct.CreatedAt, acct.UpdatedAt)
	return err
}

// SaveAccount performs the compare-and-swap write: the update only lands when
// the stored version still matches expectedVersion.
func (t *txRepo) SaveAccount(ctx context.Context, acct account.Account, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET balance=$1, status=$2, version=$3, updated_at=$4 WHERE id=$5 AND version=$6`,
		acct.Balance.Amount().String(), string(acct.Status), acct.Version, acct.UpdatedAt, acct.ID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// InsertTransaction persists the transaction header and its entries.
func (t *txRepo) InsertTransaction(ctx context.Context, txn ledger.Transaction) error {
	var metadata []byte
	if txn.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(txn.Metadata); err != nil {
			return fmt.Errorf("bank: encode transaction metadata: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (id, type, description, correlation_id, status, version, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, string(txn.Type), txn.Description, txn.CorrelationID, string(txn.Status), txn.Version, metadata, txn.CreatedAt)
	if err != nil {
		return err
	}
	for i, entry := range txn.Entries {
		_, err := t.tx.Exec(ctx, `INSERT INTO ledger_entries (transaction_id, position, account_id, amount, currency, entry_type, description)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			txn.ID, i, entry.AccountID, entry.Amount.Amount().String(), entry.Amount.Currency(), string(entry.Type), entry.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateTransactionStatus flips the lifecycle status of a stored transaction.
func (t *txRepo) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE transactions SET status=$1, version=version+1 WHERE id=$2`, string(status), id)
	return err
}
