package account

import (
	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridian/internal/money"
)

// OverdraftRecoveryRate is the gross rate applied to a negative balance when
// a deposit clears it. The surcharge is rate - 1, i.e. 1.02% of the
// outstanding negative amount.
var OverdraftRecoveryRate = decimal.RequireFromString("1.0102")

// RecoveryInterest computes the overdraft surcharge owed when a deposit
// clears a negative balance.
//
// The surcharge is |balanceBefore| * (rate - 1), rounded to the money scale,
// and fires only on full recovery: if the deposit is smaller than the
// outstanding negative amount, no interest is charged and zero is returned.
// The caller deducts the surcharge from the deposit before crediting, so the
// net credit is deposit - interest.
func RecoveryInterest(balanceBefore, deposit money.Money) (money.Money, error) {
	zero, err := money.Zero(balanceBefore.Currency())
	if err != nil {
		return money.Money{}, err
	}
	if !balanceBefore.IsNegative() {
		return zero, nil
	}

	outstanding := balanceBefore.Abs()
	clears, err := deposit.GreaterThanOrEqual(outstanding)
	if err != nil {
		return money.Money{}, err
	}
	if !clears {
		return zero, nil
	}

	surcharge := OverdraftRecoveryRate.Sub(decimal.NewFromInt(1))
	return outstanding.MulScalar(surcharge), nil
}
