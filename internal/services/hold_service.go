package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-shop/models"
)

// SeatHolds reserves capacity for checkouts that are waiting on payment.
// Holds are advisory: the issuance capacity check is authoritative.
type SeatHolds interface {
	Place(ctx context.Context, reference string, items []models.CartItem) (time.Time, error)
	Release(ctx context.Context, reference string, items []models.CartItem) error
	HeldAll(ctx context.Context, typeIDs []string) (map[string]int, error)
}

// NopHolds never holds anything.
type NopHolds struct{}

func (NopHolds) Place(context.Context, string, []models.CartItem) (time.Time, error) {
	return time.Time{}, nil
}

func (NopHolds) Release(context.Context, string, []models.CartItem) error {
	return nil
}

func (NopHolds) HeldAll(context.Context, []string) (map[string]int, error) {
	return map[string]int{}, nil
}

// HoldService keeps one sorted set per ticket type. Members are
// "{reference}:{qty}" scored by their expiry as a unix timestamp.
type HoldService struct {
	Redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewHoldService(redisClient *redis.Client, ttl time.Duration) *HoldService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &HoldService{Redis: redisClient, ttl: ttl, now: time.Now}
}

func holdKey(typeID string) string {
	return fmt.Sprintf("hold:%s", typeID)
}

func holdMember(reference string, qty int) string {
	return fmt.Sprintf("%s:%d", reference, qty)
}

func (s *HoldService) Place(ctx context.Context, reference string, items []models.CartItem) (time.Time, error) {
	expiresAt := s.now().Add(s.ttl)
	for _, item := range items {
		key := holdKey(item.TicketTypeID)
		err := s.Redis.ZAdd(ctx, key, redis.Z{
			Score:  float64(expiresAt.Unix()),
			Member: holdMember(reference, item.Quantity),
		}).Err()
		if err != nil {
			slog.Error("Failed to place seat hold", "error", err, "reference", reference, "ticket_type_id", item.TicketTypeID)
			return time.Time{}, err
		}
		// The set outlives its newest member by one TTL at most.
		s.Redis.Expire(ctx, key, 2*s.ttl)
	}
	return expiresAt, nil
}

func (s *HoldService) Release(ctx context.Context, reference string, items []models.CartItem) error {
	var firstErr error
	for _, item := range items {
		err := s.Redis.ZRem(ctx, holdKey(item.TicketTypeID), holdMember(reference, item.Quantity)).Err()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Held returns the quantity currently held for a type, pruning expired holds.
func (s *HoldService) Held(ctx context.Context, typeID string) (int, error) {
	key := holdKey(typeID)
	now := strconv.FormatInt(s.now().Unix(), 10)

	if err := s.Redis.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		return 0, err
	}
	members, err := s.Redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "(" + now,
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return 0, err
	}

	held := 0
	for _, m := range members {
		held += memberQuantity(m)
	}
	return held, nil
}

func (s *HoldService) HeldAll(ctx context.Context, typeIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(typeIDs))
	for _, id := range typeIDs {
		n, err := s.Held(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, nil
}

func memberQuantity(member string) int {
	i := strings.LastIndex(member, ":")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(member[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
