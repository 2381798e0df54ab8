package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions(t *testing.T) {
	assert.True(t, OrderPending.CanTransitionTo(OrderConfirmed))
	assert.True(t, OrderPending.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderConfirmed.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderPending.CanTransitionTo(OrderPreparing))
	assert.False(t, OrderDelivered.CanTransitionTo(OrderPending))

	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderReady.Terminal())
	assert.False(t, OrderStatus("paid").Valid())

	// every target is itself a known state
	for from, targets := range OrderTransitions {
		for _, to := range targets {
			assert.True(t, to.Valid(), "%s -> %s", from, to)
		}
	}
}

func TestReservationTransitions(t *testing.T) {
	assert.True(t, ReservationPending.CanTransitionTo(ReservationConfirmed))
	assert.True(t, ReservationConfirmed.CanTransitionTo(ReservationCancelled))
	assert.False(t, ReservationCancelled.CanTransitionTo(ReservationPending))
	assert.False(t, ReservationConfirmed.CanTransitionTo(ReservationPending))

	r := Reservation{Status: ReservationConfirmed}
	assert.True(t, r.Active())
	r.Status = ReservationCancelled
	assert.False(t, r.Active())
}

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
	}
	assert.True(t, decimal.RequireFromString("25.30").Equal(ComputeTotal(items)))
	assert.True(t, ComputeTotal(nil).IsZero())
}
