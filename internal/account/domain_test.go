package account

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridian/internal/money"
)

func TestOpenCheckingAccount(t *testing.T) {
	customerID := uuid.New()
	acct, err := Open(customerID, TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)

	require.Equal(t, customerID, acct.CustomerID)
	require.Equal(t, TypeChecking, acct.Type)
	require.Equal(t, StatusActive, acct.Status)
	require.Equal(t, int64(0), acct.Version)
	require.Equal(t, "100.00 BRL", acct.Balance.String())
}

func TestOpenEnforcesProductMinimums(t *testing.T) {
	cases := []struct {
		accountType Type
		deposit     string
		wantErr     error
	}{
		{TypeSavings, "10.00", nil},
		{TypeSavings, "9.99", ErrInvalidInitialDeposit},
		{TypeChecking, "50.00", nil},
		{TypeChecking, "49.99", ErrInvalidInitialDeposit},
		{TypeBusiness, "500.00", nil},
		{TypeBusiness, "499.99", ErrInvalidInitialDeposit},
	}
	for _, tc := range cases {
		_, err := Open(uuid.New(), tc.accountType, money.MustParse(tc.deposit, "BRL"))
		if tc.wantErr == nil {
			require.NoError(t, err, "%s %s", tc.accountType, tc.deposit)
		} else {
			require.ErrorIs(t, err, tc.wantErr, "%s %s", tc.accountType, tc.deposit)
		}
	}
}

func TestOpenRejectsNonPositiveDeposit(t *testing.T) {
	zero, err := money.Zero("BRL")
	require.NoError(t, err)

	_, err = Open(uuid.New(), TypeChecking, zero)
	require.ErrorIs(t, err, ErrInvalidInitialDeposit)

	_, err = Open(uuid.New(), TypeChecking, money.MustParse("-10.00", "BRL"))
	require.ErrorIs(t, err, ErrInvalidInitialDeposit)
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(uuid.New(), Type("PREMIUM"), money.MustParse("1000.00", "BRL"))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestDebitIntoOverdraft(t *testing.T) {
	acct, err := Open(uuid.New(), TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)

	updated, err := acct.Debit(money.MustParse("800.00", "BRL"), "supplier payment")
	require.NoError(t, err)

	require.Equal(t, "-700.00 BRL", updated.Balance.String())
	require.Equal(t, acct.Version+1, updated.Version)
	// original untouched
	require.Equal(t, "100.00 BRL", acct.Balance.String())
}

func TestDebitBeyondFloorFails(t *testing.T) {
	acct, err := Open(uuid.New(), TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)

	// 100 - 1000 = -900 is inside the -1000 floor
	inside, err := acct.Debit(money.MustParse("1000.00", "BRL"), "large payment")
	require.NoError(t, err)
	require.Equal(t, "-900.00 BRL", inside.Balance.String())

	// but 100 - 1101 = -1001 breaches it
	_, err = acct.Debit(money.MustParse("1101.00", "BRL"), "too large")
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSavingsHasNoOverdraft(t *testing.T) {
	acct, err := Open(uuid.New(), TypeSavings, money.MustParse("10.00", "BRL"))
	require.NoError(t, err)

	drained, err := acct.Debit(money.MustParse("10.00", "BRL"), "close out")
	require.NoError(t, err)
	require.True(t, drained.Balance.IsZero())

	_, err = acct.Debit(money.MustParse("0.01", "BRL"), "one cent over")
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestCreditIncrementsVersion(t *testing.T) {
	acct, err := Open(uuid.New(), TypeBusiness, money.MustParse("500.00", "BRL"))
	require.NoError(t, err)

	updated, err := acct.Credit(money.MustParse("250.00", "BRL"), "customer payment")
	require.NoError(t, err)
	require.Equal(t, "750.00 BRL", updated.Balance.String())
	require.Equal(t, int64(1), updated.Version)
}

func TestMutationGuards(t *testing.T) {
	acct, err := Open(uuid.New(), TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)

	_, err = acct.Credit(money.MustParse("-5.00", "BRL"), "bad amount")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = acct.Credit(money.MustParse("5.00", "BRL"), "")
	require.ErrorIs(t, err, ErrMissingReason)

	suspended, err := acct.TransitionTo(StatusSuspended)
	require.NoError(t, err)
	_, err = suspended.Credit(money.MustParse("5.00", "BRL"), "while suspended")
	require.ErrorIs(t, err, ErrNotTransactable)
	_, err = suspended.Debit(money.MustParse("5.00", "BRL"), "while suspended")
	require.ErrorIs(t, err, ErrNotTransactable)
}

func TestStatusMachine(t *testing.T) {
	acct, err := Open(uuid.New(), TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)

	suspended, err := acct.TransitionTo(StatusSuspended)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, suspended.Status)
	require.Equal(t, acct.Version+1, suspended.Version)

	reactivated, err := suspended.TransitionTo(StatusActive)
	require.NoError(t, err)
	require.Equal(t, StatusActive, reactivated.Status)

	closed, err := reactivated.TransitionTo(StatusClosed)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)

	// CLOSED is terminal
	_, err = closed.TransitionTo(StatusActive)
	require.ErrorIs(t, err, ErrInvalidStatusChange)

	// ACTIVE cannot go back to PENDING_APPROVAL
	_, err = acct.TransitionTo(StatusPendingApproval)
	require.ErrorIs(t, err, ErrInvalidStatusChange)
}

func TestCanDebit(t *testing.T) {
	acct, err := Open(uuid.New(), TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)

	require.True(t, acct.CanDebit(money.MustParse("1100.00", "BRL")))
	require.False(t, acct.CanDebit(money.MustParse("1100.01", "BRL")))
	require.False(t, acct.CanDebit(money.MustParse("-1.00", "BRL")))

	closed, err := acct.TransitionTo(StatusClosed)
	require.NoError(t, err)
	require.False(t, closed.CanDebit(money.MustParse("1.00", "BRL")))
}
