package accounting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// ErrOverpayment is returned when a payment exceeds what is still owed on a fee.
type ErrOverpayment struct {
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e ErrOverpayment) Error() string {
	return fmt.Sprintf("payment amount (%s) exceeds outstanding balance (%s)", e.Amount.StringFixed(2), e.Outstanding.StringFixed(2))
}

// DeriveStatus maps a fee balance to its status.
func DeriveStatus(amountPaid, amountDue decimal.Decimal) string {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return StatusPaid
	case amountPaid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// ApplyAmount returns `fee` with `amount` added to its paid balance and its status re-derived.
// `paidOn` becomes the PaidDate when the fee is settled; partial and unpaid fees carry no PaidDate.
// It fails with ErrOverpayment instead of letting AmountPaid exceed AmountDue.
func ApplyAmount(fee TuitionFee, amount decimal.Decimal, paidOn time.Time) (TuitionFee, error) {
	if outstanding := fee.Outstanding(); amount.GreaterThan(outstanding) {
		return fee, ErrOverpayment{Amount: amount, Outstanding: outstanding}
	}
	fee.AmountPaid = fee.AmountPaid.Add(amount)
	fee.Status = DeriveStatus(fee.AmountPaid, fee.AmountDue)
	if fee.Status == StatusPaid {
		fee.PaidDate = null.TimeFrom(paidOn)
	} else {
		fee.PaidDate = null.Time{}
	}
	return fee, nil
}
