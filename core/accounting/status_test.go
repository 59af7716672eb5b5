package accounting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name       string
		paid, due  string
		wantStatus string
	}{
		{name: "nothing paid", paid: "0", due: "1000", wantStatus: StatusUnpaid},
		{name: "one cent", paid: "0.01", due: "1000", wantStatus: StatusPartial},
		{name: "half", paid: "500", due: "1000", wantStatus: StatusPartial},
		{name: "exact", paid: "1000.00", due: "1000", wantStatus: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, DeriveStatus(dec(tt.paid), dec(tt.due)))
		})
	}
}

func TestApplyAmount(t *testing.T) {
	today := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	fee := TuitionFee{ID: 1, AmountDue: dec("1000"), AmountPaid: decimal.Zero, Status: StatusUnpaid}

	tests := []struct {
		name        string
		paid        string
		amount      string
		wantPaid    string
		wantStatus  string
		wantPaidOn  bool
		wantOverpay bool
	}{
		{name: "first partial", paid: "0", amount: "500", wantPaid: "500", wantStatus: StatusPartial},
		{name: "settles", paid: "500", amount: "500", wantPaid: "1000", wantStatus: StatusPaid, wantPaidOn: true},
		{name: "overpays by a cent", paid: "500", amount: "500.01", wantOverpay: true},
		{name: "already settled", paid: "1000", amount: "0.01", wantOverpay: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fee
			in.AmountPaid = dec(tt.paid)
			in.Status = DeriveStatus(in.AmountPaid, in.AmountDue)

			got, err := ApplyAmount(in, dec(tt.amount), today)
			if tt.wantOverpay {
				var overpay ErrOverpayment
				require.ErrorAs(t, err, &overpay)
				assert.True(t, in.Outstanding().Equal(overpay.Outstanding))
				assert.Equal(t, in, got, "fee must be left untouched")
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.wantPaid).Equal(got.AmountPaid), "amount paid = %s", got.AmountPaid)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantPaidOn, got.PaidDate.Valid)
			if tt.wantPaidOn {
				assert.Equal(t, today, got.PaidDate.Time)
			}
		})
	}
}

func TestTuitionFee_PaymentPercentage(t *testing.T) {
	assert.EqualValues(t, 33, TuitionFee{AmountDue: dec("300"), AmountPaid: dec("100")}.PaymentPercentage())
	assert.EqualValues(t, 100, TuitionFee{AmountDue: dec("300"), AmountPaid: dec("300")}.PaymentPercentage())
	assert.EqualValues(t, 0, TuitionFee{}.PaymentPercentage())
}
