package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-shop/models"
)

func newTestHoldService(ttl time.Duration) (*HoldService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	s := NewHoldService(db, ttl)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestHoldService_Place(t *testing.T) {
	s, mock := newTestHoldService(10 * time.Minute)
	expiry := fixedNow.Add(10 * time.Minute)

	mock.ExpectZAdd("hold:ga", redis.Z{Score: float64(expiry.Unix()), Member: "TS-1:2"}).SetVal(1)
	mock.ExpectExpire("hold:ga", 20*time.Minute).SetVal(true)
	mock.ExpectZAdd("hold:vip", redis.Z{Score: float64(expiry.Unix()), Member: "TS-1:1"}).SetVal(1)
	mock.ExpectExpire("hold:vip", 20*time.Minute).SetVal(true)

	got, err := s.Place(context.Background(), "TS-1", []models.CartItem{
		{TicketTypeID: "ga", Quantity: 2},
		{TicketTypeID: "vip", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, expiry, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldService_PlaceRedisError(t *testing.T) {
	s, mock := newTestHoldService(time.Minute)
	mock.ExpectZAdd("hold:ga", redis.Z{Score: float64(fixedNow.Add(time.Minute).Unix()), Member: "TS-1:1"}).SetErr(errors.New("READONLY"))

	_, err := s.Place(context.Background(), "TS-1", []models.CartItem{{TicketTypeID: "ga", Quantity: 1}})

	assert.Error(t, err)
}

func TestHoldService_HeldSumsActiveMembers(t *testing.T) {
	s, mock := newTestHoldService(time.Minute)
	now := "1748800800" // fixedNow

	mock.ExpectZRemRangeByScore("hold:ga", "-inf", now).SetVal(1)
	mock.ExpectZRangeByScore("hold:ga", &redis.ZRangeBy{Min: "(" + now, Max: "+inf"}).
		SetVal([]string{"TS-1:2", "TS-2:3", "garbage"})

	held, err := s.Held(context.Background(), "ga")

	require.NoError(t, err)
	assert.Equal(t, 5, held)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldService_HeldAllPropagatesErrors(t *testing.T) {
	s, mock := newTestHoldService(time.Minute)
	mock.ExpectZRemRangeByScore("hold:ga", "-inf", "1748800800").SetErr(errors.New("connection refused"))

	_, err := s.HeldAll(context.Background(), []string{"ga"})

	assert.Error(t, err)
}

func TestHoldService_Release(t *testing.T) {
	s, mock := newTestHoldService(time.Minute)
	mock.ExpectZRem("hold:ga", "TS-1:2").SetVal(1)
	mock.ExpectZRem("hold:vip", "TS-1:1").SetVal(0)

	err := s.Release(context.Background(), "TS-1", []models.CartItem{
		{TicketTypeID: "ga", Quantity: 2},
		{TicketTypeID: "vip", Quantity: 1},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberQuantity(t *testing.T) {
	assert.Equal(t, 4, memberQuantity("TS-1700000000000-ab12cd34:4"))
	assert.Equal(t, 0, memberQuantity("no-quantity"))
	assert.Equal(t, 0, memberQuantity("TS-1:-3"))
}
