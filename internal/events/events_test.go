package events

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForCharge(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := domain.Charge{ID: 9, OriginatorID: 1, RecipientID: 2, Amount: decimal.RequireFromString("12.5"), PaymentMethod: domain.MethodCard}

	e := ForCharge(ChargePaid, c, at)
	_, err := ulid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, ChargePaid, e.Type)
	assert.Equal(t, int64(9), e.ChargeID)
	assert.Equal(t, "12.50", e.Amount)
	assert.Equal(t, "CARD", e.Method)
	assert.Equal(t, at, e.OccurredAt)

	assert.NotEqual(t, e.ID, ForCharge(ChargePaid, c, at).ID)
}

func TestForDeposit(t *testing.T) {
	e := ForDeposit(4, decimal.NewFromInt(30), time.Now())
	assert.Equal(t, AccountDeposited, e.Type)
	assert.Equal(t, int64(4), e.RecipientID)
	assert.Zero(t, e.ChargeID)
	assert.Equal(t, "30.00", e.Amount)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), Event{Type: ChargeCreated}, Event{Type: ChargePaid}))
	assert.Equal(t, []Type{ChargeCreated, ChargePaid}, r.Types())
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
