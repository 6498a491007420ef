package monitoring

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	seatsHeld = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketing_seats_held",
			Help: "Seats currently held by pending checkouts per ticket type",
		},
		[]string{"ticket_type_id"},
	)

	checkoutOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_checkout_operations_total",
			Help: "Checkout operations by outcome",
		},
		[]string{"operation", "status"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Tickets persisted by issuance",
		},
	)

	entryScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_entry_scans_total",
			Help: "Entry scans by result",
		},
		[]string{"result"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_gateway_verify_seconds",
			Help:    "Latency of gateway transaction verification",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "status"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketing_circuit_breaker_state",
			Help: "0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)
)

type Monitor struct {
	redis    *redis.Client
	interval time.Duration
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient, interval: 30 * time.Second}
}

// Run samples hold gauges until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m == nil || m.redis == nil {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.collectHoldMetrics(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collectHoldMetrics(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	iter := m.redis.Scan(ctx, 0, "hold:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		members, err := m.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"}).Result()
		if err != nil {
			continue
		}
		held := 0
		for _, member := range members {
			if i := strings.LastIndexByte(member, ':'); i >= 0 {
				n, _ := strconv.Atoi(member[i+1:])
				held += n
			}
		}
		seatsHeld.WithLabelValues(strings.TrimPrefix(key, "hold:")).Set(float64(held))
	}
	if err := iter.Err(); err != nil {
		slog.Warn("hold metrics scan failed", "error", err)
	}
}

func (m *Monitor) TrackCheckout(operation, status string) {
	checkoutOperations.WithLabelValues(operation, status).Inc()
}

func (m *Monitor) TrackIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func (m *Monitor) TrackScan(result string) {
	entryScans.WithLabelValues(result).Inc()
}

func (m *Monitor) TrackGatewayVerify(provider, status string, d time.Duration) {
	gatewayLatency.WithLabelValues(provider, status).Observe(d.Seconds())
}

func (m *Monitor) TrackBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
