package account

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridian/internal/money"
)

func TestRecoveryInterestOnFullRecovery(t *testing.T) {
	balance := money.MustParse("-100.00", "BRL")
	deposit := money.MustParse("1000.00", "BRL")

	interest, err := RecoveryInterest(balance, deposit)
	require.NoError(t, err)
	require.Equal(t, "1.02 BRL", interest.String())
}

func TestRecoveryInterestScenario(t *testing.T) {
	// An account at -100.00 receives 1000.00. The surcharge is 1.02, the net
	// credit 998.98 and the resulting balance 898.98.
	acct, err := Open(uuid.New(), TypeChecking, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)
	overdrawn, err := acct.Debit(money.MustParse("200.00", "BRL"), "overdraw")
	require.NoError(t, err)
	require.Equal(t, "-100.00 BRL", overdrawn.Balance.String())

	deposit := money.MustParse("1000.00", "BRL")
	interest, err := RecoveryInterest(overdrawn.Balance, deposit)
	require.NoError(t, err)

	net, err := deposit.Sub(interest)
	require.NoError(t, err)
	require.Equal(t, "998.98 BRL", net.String())

	recovered, err := overdrawn.Credit(net, "recovery deposit")
	require.NoError(t, err)
	require.Equal(t, "898.98 BRL", recovered.Balance.String())
}

func TestRecoveryInterestExactClearance(t *testing.T) {
	interest, err := RecoveryInterest(money.MustParse("-100.00", "BRL"), money.MustParse("100.00", "BRL"))
	require.NoError(t, err)
	require.Equal(t, "1.02 BRL", interest.String())
}

func TestRecoveryInterestPartialRecoveryChargesNothing(t *testing.T) {
	interest, err := RecoveryInterest(money.MustParse("-500.00", "BRL"), money.MustParse("100.00", "BRL"))
	require.NoError(t, err)
	require.True(t, interest.IsZero())
}

func TestRecoveryInterestPositiveBalanceChargesNothing(t *testing.T) {
	interest, err := RecoveryInterest(money.MustParse("250.00", "BRL"), money.MustParse("100.00", "BRL"))
	require.NoError(t, err)
	require.True(t, interest.IsZero())

	zero, err := money.Zero("BRL")
	require.NoError(t, err)
	interest, err = RecoveryInterest(zero, money.MustParse("100.00", "BRL"))
	require.NoError(t, err)
	require.True(t, interest.IsZero())
}

func TestRecoveryInterestRounding(t *testing.T) {
	// -123.45 * 0.0102 = 1.25919 -> 1.26
	interest, err := RecoveryInterest(money.MustParse("-123.45", "BRL"), money.MustParse("200.00", "BRL"))
	require.NoError(t, err)
	require.Equal(t, "1.26 BRL", interest.String())
}
