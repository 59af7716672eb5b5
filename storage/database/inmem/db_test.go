package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/accounting"
)

func TestDB_withinTx(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewAccountingRepository(db)
	ctx := context.Background()
	errBoom := errors.New("boom")

	expense := func(desc string) accounting.Expense {
		return accounting.Expense{Description: desc, Amount: decimal.NewFromInt(10), Date: core.Today(), Category: accounting.CategoryOther}
	}
	_, err = repo.CreateExpense(ctx, expense("before"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		fnErr     error
		wantCount int
	}{
		{name: "rolled back", fnErr: errBoom, wantCount: 1},
		{name: "committed", wantCount: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.WithinTx(ctx, func(tx accounting.Repository) error {
				if _, err := tx.CreateExpense(ctx, expense("first")); err != nil {
					return err
				}
				// nested calls join the running transaction
				if err := tx.WithinTx(ctx, func(inner accounting.Repository) error {
					_, err := inner.CreateExpense(ctx, expense("second"))
					return err
				}); err != nil {
					return err
				}
				return tt.fnErr
			})
			assert.Equal(t, tt.fnErr, err)

			list, err := repo.QueryExpenses(ctx, accounting.ExpenseFilter{})
			require.NoError(t, err)
			assert.Len(t, list, tt.wantCount)
		})
	}
}

func TestDB_withinTx_serialized(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = db.withinTx(false, func() error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	go func() {
		_ = db.withinTx(false, func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second transaction ran while the first was open")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
}

func TestRows(t *testing.T) {
	m := map[int]string{3: "c", 1: "a", 2: "b", 4: "d"}

	assert.Equal(t, []string{"a", "b", "c", "d"}, rows(m, nil))
	assert.Equal(t, []string{"b", "d"}, rows(m, func(s string) bool { return s == "b" || s == "d" }))
	assert.Empty(t, rows(map[int]string{}, nil))
}

func TestInRange(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		t        time.Time
		from, to time.Time
		want     bool
	}{
		{"open bounds", day(10), time.Time{}, time.Time{}, true},
		{"on lower bound", day(1), day(1), day(5), true},
		{"on upper bound", day(5), day(1), day(5), true},
		{"before", day(1), day(2), time.Time{}, false},
		{"after", day(6), time.Time{}, day(5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inRange(tt.t, tt.from, tt.to))
		})
	}
}
