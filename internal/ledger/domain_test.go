package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridian/internal/money"
)

func TestBuilderBalancedTransaction(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	amount := money.MustParse("500.00", "BRL")

	txn, err := NewBuilder(TypeTransfer, "invoice 42", "corr-1").
		AddDebit(from, amount, "invoice 42").
		AddCredit(to, amount, "invoice 42").
		Build()
	require.NoError(t, err)

	require.Equal(t, TypeTransfer, txn.Type)
	require.Equal(t, StatusPending, txn.Status)
	require.Equal(t, "corr-1", txn.CorrelationID)
	require.Len(t, txn.Entries, 2)
	require.Equal(t, "500.00 BRL", txn.TotalAmount().String())
}

func TestBuilderRejectsUnbalanced(t *testing.T) {
	_, err := NewBuilder(TypeTransfer, "bad", "corr-2").
		AddDebit(uuid.New(), money.MustParse("100.00", "BRL"), "bad").
		AddCredit(uuid.New(), money.MustParse("150.00", "BRL"), "bad").
		Build()
	require.ErrorIs(t, err, ErrUnbalanced)
}

func TestBuilderRejectsTooFewEntries(t *testing.T) {
	_, err := NewBuilder(TypePayment, "lonely", "corr-3").
		AddDebit(uuid.New(), money.MustParse("10.00", "BRL"), "lonely").
		Build()
	require.ErrorIs(t, err, ErrTooFewEntries)
}

func TestBuilderHoldsEntryErrors(t *testing.T) {
	zero, err := money.Zero("BRL")
	require.NoError(t, err)

	_, err = NewBuilder(TypeDeposit, "zero", "corr-4").
		AddDebit(uuid.New(), zero, "zero").
		AddCredit(uuid.New(), zero, "zero").
		Build()
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewBuilder(TypeDeposit, "blank", "corr-5").
		AddDebit(uuid.New(), money.MustParse("10.00", "BRL"), "").
		AddCredit(uuid.New(), money.MustParse("10.00", "BRL"), "ok").
		Build()
	require.ErrorIs(t, err, ErrMissingDescription)
}

func TestNewDepositShape(t *testing.T) {
	acctID := uuid.New()
	txn, err := NewDeposit(acctID, money.MustParse("250.00", "BRL"), "payroll", "corr-6")
	require.NoError(t, err)

	require.Equal(t, TypeDeposit, txn.Type)
	require.Equal(t, SystemCashAccountID, txn.Entries[0].AccountID)
	require.Equal(t, EntryDebit, txn.Entries[0].Type)
	require.Equal(t, acctID, txn.Entries[1].AccountID)
	require.Equal(t, EntryCredit, txn.Entries[1].Type)
}

func TestNewWithdrawalShape(t *testing.T) {
	acctID := uuid.New()
	txn, err := NewWithdrawal(acctID, money.MustParse("80.00", "BRL"), "atm", "corr-7")
	require.NoError(t, err)

	require.Equal(t, TypePayment, txn.Type)
	require.Equal(t, acctID, txn.Entries[0].AccountID)
	require.Equal(t, EntryDebit, txn.Entries[0].Type)
	require.Equal(t, SystemCashAccountID, txn.Entries[1].AccountID)
	require.Equal(t, EntryCredit, txn.Entries[1].Type)
}

func TestReverseFlipsEntries(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	original, err := NewTransfer(from, to, money.MustParse("300.00", "BRL"), "rent", "corr-8")
	require.NoError(t, err)
	completed := original.WithStatus(StatusCompleted)

	reversal, err := completed.Reverse("sent to wrong account", "corr-9")
	require.NoError(t, err)

	require.Equal(t, TypeReversal, reversal.Type)
	require.Equal(t, StatusPending, reversal.Status)
	require.NotEqual(t, completed.ID, reversal.ID)
	require.Contains(t, reversal.Description, completed.ID.String())
	require.Contains(t, reversal.Description, "sent to wrong account")

	require.Equal(t, from, reversal.Entries[0].AccountID)
	require.Equal(t, EntryCredit, reversal.Entries[0].Type)
	require.Equal(t, to, reversal.Entries[1].AccountID)
	require.Equal(t, EntryDebit, reversal.Entries[1].Type)
	require.Equal(t, "300.00 BRL", reversal.TotalAmount().String())
}

func TestReverseRequiresCompleted(t *testing.T) {
	pending, err := NewTransfer(uuid.New(), uuid.New(), money.MustParse("10.00", "BRL"), "x", "corr-10")
	require.NoError(t, err)

	_, err = pending.Reverse("oops", "corr-11")
	require.ErrorIs(t, err, ErrNotReversible)

	_, err = pending.WithStatus(StatusFailed).Reverse("oops", "corr-12")
	require.ErrorIs(t, err, ErrNotReversible)
}

func TestWithMetadataCopies(t *testing.T) {
	txn, err := NewDeposit(uuid.New(), money.MustParse("10.00", "BRL"), "d", "corr-13")
	require.NoError(t, err)

	tagged := txn.WithMetadata(MetadataInterestCharged, "1.02 BRL")
	require.Equal(t, "1.02 BRL", tagged.Metadata[MetadataInterestCharged])
	require.Empty(t, txn.Metadata)
}

func TestTotalAmountSumsDebitSide(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	txn, err := NewBuilder(TypePayment, "split", "corr-14").
		AddDebit(a, money.MustParse("300.00", "BRL"), "split").
		AddDebit(b, money.MustParse("200.00", "BRL"), "split").
		AddCredit(c, money.MustParse("500.00", "BRL"), "split").
		Build()
	require.NoError(t, err)
	require.Equal(t, "500.00 BRL", txn.TotalAmount().String())
}
