package services

import (
	"fmt"

	"ticket-shop/internal/status"
	"ticket-shop/models"
)

// Cart is a client-side selection bounded by the availability snapshot of
// each type as it was added. The server re-validates at checkout.
type Cart struct {
	lines []models.CartItem
}

func NewCart() *Cart {
	return &Cart{}
}

// AddOne adds a single unit of t.
func (c *Cart) AddOne(t models.TicketType) error {
	for i := range c.lines {
		if c.lines[i].TicketTypeID != t.ID {
			continue
		}
		if c.lines[i].Quantity >= t.Available {
			return fmt.Errorf("only %d %s available: %w", t.Available, t.Name, status.ErrInsufficientAvailability)
		}
		c.lines[i].Quantity++
		return nil
	}

	if t.Available <= 0 {
		return fmt.Errorf("%s is sold out: %w", t.Name, status.ErrInsufficientAvailability)
	}
	c.lines = append(c.lines, models.CartItem{TicketTypeID: t.ID, Name: t.Name, Price: t.Price, Quantity: 1})
	return nil
}

// RemoveOne drops a unit of typeID. Unknown ids are ignored.
func (c *Cart) RemoveOne(typeID string) {
	for i := range c.lines {
		if c.lines[i].TicketTypeID != typeID {
			continue
		}
		c.lines[i].Quantity--
		if c.lines[i].Quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
		return
	}
}

func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Price * int64(l.Quantity)
	}
	return total
}

func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []models.CartItem {
	out := make([]models.CartItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Lines is the checkout payload for the cart.
func (c *Cart) Lines() []models.CartLine {
	out := make([]models.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, models.CartLine{TicketTypeID: l.TicketTypeID, Quantity: l.Quantity})
	}
	return out
}

func (c *Cart) Clear() {
	c.lines = nil
}
