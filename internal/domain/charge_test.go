package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func pendingCharge(t *testing.T) Charge {
	t.Helper()
	c, err := NewCharge(1, 2, dec("100.00"), "dinner", now)
	require.NoError(t, err)
	return c
}

func TestNewCharge(t *testing.T) {
	c := pendingCharge(t)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, MethodNone, c.PaymentMethod)
	assert.Nil(t, c.PaidAt)
	assert.Nil(t, c.CancelledAt)
	assert.Equal(t, now, c.CreatedAt)

	_, err := NewCharge(7, 7, dec("1"), "", now)
	assert.ErrorIs(t, err, ErrSelfCharge)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewCharge(1, 2, dec("0"), "", now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestChargeTransitions(t *testing.T) {
	later := now.Add(time.Hour)

	tests := []struct {
		name    string
		from    func(t *testing.T) Charge
		apply   func(c Charge) (Charge, error)
		want    ChargeStatus
		wantErr error
	}{
		{
			name: "pending to paid",
			from: pendingCharge,
			apply: func(c Charge) (Charge, error) {
				return c.MarkPaid(MethodBalance, "", TraceBalancePayment, later)
			},
			want: StatusPaid,
		},
		{
			name:  "pending to cancelled",
			from:  pendingCharge,
			apply: func(c Charge) (Charge, error) { return c.Cancel("", later) },
			want:  StatusCancelled,
		},
		{
			name: "paid to cancelled",
			from: func(t *testing.T) Charge {
				c, err := pendingCharge(t).MarkPaid(MethodCard, "1111", "APPROVED", now)
				require.NoError(t, err)
				return c
			},
			apply: func(c Charge) (Charge, error) { return c.Cancel("CANCELLED", later) },
			want:  StatusCancelled,
		},
		{
			name: "paid cannot be paid again",
			from: func(t *testing.T) Charge {
				c, err := pendingCharge(t).MarkPaid(MethodBalance, "", TraceBalancePayment, now)
				require.NoError(t, err)
				return c
			},
			apply: func(c Charge) (Charge, error) {
				return c.MarkPaid(MethodBalance, "", TraceBalancePayment, later)
			},
			want:    StatusPaid,
			wantErr: ErrInvalidState,
		},
		{
			name: "cancelled is terminal for cancel",
			from: func(t *testing.T) Charge {
				c, err := pendingCharge(t).Cancel("", now)
				require.NoError(t, err)
				return c
			},
			apply:   func(c Charge) (Charge, error) { return c.Cancel("", later) },
			want:    StatusCancelled,
			wantErr: ErrInvalidState,
		},
		{
			name: "cancelled is terminal for pay",
			from: func(t *testing.T) Charge {
				c, err := pendingCharge(t).Cancel("", now)
				require.NoError(t, err)
				return c
			},
			apply: func(c Charge) (Charge, error) {
				return c.MarkPaid(MethodCard, "1111", "APPROVED", later)
			},
			want:    StatusCancelled,
			wantErr: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.from(t)
			got, err := tt.apply(before)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, got, "failed transition must return the unchanged snapshot")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestMarkPaidRecordsMetadata(t *testing.T) {
	c, err := pendingCharge(t).MarkPaid(MethodCard, "4242", "APPROVED - Status: success, Authorization: true", now)
	require.NoError(t, err)

	assert.True(t, c.WasPaidByCard())
	assert.False(t, c.WasPaidByBalance())
	assert.Equal(t, "4242", c.CardLastFour)
	require.NotNil(t, c.PaidAt)
	assert.Equal(t, now, *c.PaidAt)
	assert.Nil(t, c.CancelledAt)

	_, err = pendingCharge(t).MarkPaid(MethodNone, "", "", now)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCancelTrace(t *testing.T) {
	paid, err := pendingCharge(t).MarkPaid(MethodBalance, "", TraceBalancePayment, now)
	require.NoError(t, err)

	kept, err := paid.Cancel("", now)
	require.NoError(t, err)
	assert.Equal(t, TraceBalancePayment, kept.AuthorizerTrace)
	assert.NotNil(t, kept.PaidAt, "paidAt survives cancellation")
	assert.NotNil(t, kept.CancelledAt)

	replaced, err := paid.Cancel(TraceBalanceReversal, now)
	require.NoError(t, err)
	assert.Equal(t, TraceBalanceReversal, replaced.AuthorizerTrace)
	assert.False(t, replaced.WasPaidByBalance(), "predicates derive from status")
}

func TestParseChargeStatus(t *testing.T) {
	s, err := ParseChargeStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	_, err = ParseChargeStatus("paid")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
