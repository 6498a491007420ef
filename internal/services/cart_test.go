package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-shop/internal/status"
	"ticket-shop/models"
)

func TestCart_AddOneRespectsAvailability(t *testing.T) {
	c := NewCart()
	vip := models.TicketType{ID: "vip", Name: "VIP", Price: 20000, Available: 2}

	require.NoError(t, c.AddOne(vip))
	require.NoError(t, c.AddOne(vip))
	err := c.AddOne(vip)

	assert.ErrorIs(t, err, status.ErrInsufficientAvailability)
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, int64(40000), c.Total())
}

func TestCart_SoldOutType(t *testing.T) {
	c := NewCart()

	err := c.AddOne(models.TicketType{ID: "ga", Name: "GA", Price: 100, Available: 0})

	assert.ErrorIs(t, err, status.ErrInsufficientAvailability)
	assert.Empty(t, c.Items())
}

func TestCart_RemoveOne(t *testing.T) {
	c := NewCart()
	ga := models.TicketType{ID: "ga", Name: "GA", Price: 5000, Available: 5}
	vip := models.TicketType{ID: "vip", Name: "VIP", Price: 20000, Available: 5}
	require.NoError(t, c.AddOne(ga))
	require.NoError(t, c.AddOne(vip))
	require.NoError(t, c.AddOne(ga))

	c.RemoveOne("ga")
	c.RemoveOne("unknown")
	assert.Equal(t, 2, c.Count())

	c.RemoveOne("ga")
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "vip", items[0].TicketTypeID)
	assert.Equal(t, []models.CartLine{{TicketTypeID: "vip", Quantity: 1}}, c.Lines())

	c.Clear()
	assert.Zero(t, c.Count())
	assert.Zero(t, c.Total())
}

func TestCart_ItemsIsACopy(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddOne(models.TicketType{ID: "ga", Name: "GA", Price: 1, Available: 3}))

	items := c.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, c.Count())
}
