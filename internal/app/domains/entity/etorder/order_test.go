package etorder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapd/internal/app/pkg/errorx"
)

func validRequest() Request {
	return Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 10}
}

func TestNewOrder(t *testing.T) {
	order, err := NewOrder("order-1", validRequest())
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, StagePending, order.Stage)
	assert.Nil(t, order.Result)
	assert.Empty(t, order.Error)
	assert.False(t, order.CreatedAt.IsZero())
	assert.Equal(t, "SOL/USDC", order.Request.Pair())
}

func TestNewOrder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		paths []string
	}{
		{"missing amount", Request{TokenIn: "SOL", TokenOut: "USDC"}, []string{"amount"}},
		{"negative amount", Request{TokenIn: "SOL", TokenOut: "USDC", Amount: -1}, []string{"amount"}},
		{"blank tokenIn", Request{TokenIn: "  ", TokenOut: "USDC", Amount: 1}, []string{"tokenIn"}},
		{"everything missing", Request{}, []string{"tokenIn", "tokenOut", "amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder("order-1", tt.req)
			require.Error(t, err)

			var ve *errorx.ValidationError
			require.True(t, errors.As(err, &ve))
			paths := make([]string, 0, len(ve.Details))
			for _, d := range ve.Details {
				paths = append(paths, d.Path)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StagePending, StageRouting, true},
		{StageRouting, StageBuilding, true},
		{StageBuilding, StageSubmitted, true},
		{StageSubmitted, StageConfirmed, true},
		{StagePending, StageFailed, true},
		{StageRouting, StageFailed, true},
		{StageSubmitted, StageFailed, true},

		{StagePending, StageBuilding, false},
		{StagePending, StageConfirmed, false},
		{StageBuilding, StageRouting, false},
		{StageRouting, StageRouting, false},
		{StageConfirmed, StageFailed, false},
		{StageFailed, StageConfirmed, false},
		{StageFailed, StageFailed, false},
		{StageConfirmed, StageConfirmed, false},
		{Stage("bogus"), StageRouting, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrder_TransitionHappyPath(t *testing.T) {
	order, err := NewOrder("order-1", validRequest())
	require.NoError(t, err)

	quotes := []Quote{{Venue: "raydium", Price: 99.04}, {Venue: "meteora", Price: 97.71}}
	require.NoError(t, order.Transition(StageRouting, Payload{}))
	require.NoError(t, order.Transition(StageBuilding, Payload{Quotes: quotes}))
	require.NoError(t, order.Transition(StageSubmitted, Payload{}))
	require.NoError(t, order.Transition(StageConfirmed, Payload{
		Result: &Result{Venue: "raydium", Price: 99.01, Receipt: "abc"},
	}))

	assert.Equal(t, StageConfirmed, order.Stage)
	assert.Equal(t, quotes, order.Quotes)
	require.NotNil(t, order.Result)
	assert.Equal(t, "raydium", order.Result.Venue)

	ev := order.Event("")
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, StageConfirmed, ev.Stage)
	assert.Equal(t, DefaultMessage(StageConfirmed), ev.Message)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "abc", ev.Result.Receipt)
}

func TestOrder_TransitionRejected(t *testing.T) {
	order, err := NewOrder("order-1", validRequest())
	require.NoError(t, err)

	err = order.Transition(StageSubmitted, Payload{})
	assert.ErrorIs(t, err, errorx.ErrInvalidTransition)
	assert.Equal(t, StagePending, order.Stage)

	require.NoError(t, order.Transition(StageFailed, Payload{Error: "venue down"}))
	assert.Equal(t, "venue down", order.Event("").Error)

	// 终态之后不允许再写
	err = order.Transition(StageFailed, Payload{Error: "again"})
	assert.ErrorIs(t, err, errorx.ErrInvalidTransition)
	assert.Equal(t, "venue down", order.Error)
}

func TestOrder_TerminalPayloadRequired(t *testing.T) {
	order, err := NewOrder("order-1", validRequest())
	require.NoError(t, err)
	require.NoError(t, order.Transition(StageRouting, Payload{}))
	require.NoError(t, order.Transition(StageBuilding, Payload{}))
	require.NoError(t, order.Transition(StageSubmitted, Payload{}))

	assert.ErrorIs(t, order.Transition(StageConfirmed, Payload{}), errorx.ErrInvalidTransition)
	assert.ErrorIs(t, order.Transition(StageFailed, Payload{}), errorx.ErrInvalidTransition)
	assert.Equal(t, StageSubmitted, order.Stage)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "order-updates:abc", Topic("abc"))
}
