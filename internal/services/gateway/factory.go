package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket-shop/internal/status"
	"ticket-shop/utils"
)

// Factory builds a Gateway for a provider.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Create never builds the mock provider; it is only reachable through
// Registry.Register.
func (f *Factory) Create(cfg Config) (Gateway, error) {
	switch cfg.Provider {
	case ProviderPaystack:
		return NewPaystack(cfg)
	case ProviderStripe:
		return NewStripe(cfg)
	default:
		return nil, fmt.Errorf("unsupported payment provider %q: %w", cfg.Provider, status.ErrPaymentUnavailable)
	}
}

func (f *Factory) SupportedProviders() []Provider {
	return []Provider{ProviderPaystack, ProviderStripe}
}

// Observer receives verification metrics.
type Observer interface {
	TrackGatewayVerify(provider, status string, d time.Duration)
	TrackBreakerState(name string, state int)
}

type creator interface {
	Create(cfg Config) (Gateway, error)
}

type registered struct {
	gateway   Gateway
	secretKey string
	baseURL   string
}

// Registry caches one gateway per provider and rebuilds it when the
// credentials change. Every gateway it hands out shares that provider's
// circuit breaker.
type Registry struct {
	factory  creator
	observer Observer

	mu       sync.Mutex
	gateways map[Provider]registered
	breakers map[Provider]*utils.CircuitBreaker
}

func NewRegistry(factory creator, observer Observer) *Registry {
	return &Registry{
		factory:  factory,
		observer: observer,
		gateways: make(map[Provider]registered),
		breakers: make(map[Provider]*utils.CircuitBreaker),
	}
}

// Register installs a prebuilt gateway, replacing any cached one.
func (r *Registry) Register(gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gateways[gw.Provider()] = registered{gateway: gw}
}

// Resolve returns the guarded gateway for cfg.
func (r *Registry) Resolve(cfg Config) (Gateway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.gateways[cfg.Provider]
	stale := ok && entry.secretKey != "" && (entry.secretKey != cfg.SecretKey || entry.baseURL != cfg.BaseURL)
	if !ok || stale {
		gw, err := r.factory.Create(cfg)
		if err != nil {
			return nil, err
		}
		entry = registered{gateway: gw, secretKey: cfg.SecretKey, baseURL: cfg.BaseURL}
		r.gateways[cfg.Provider] = entry
	}

	return &Guarded{
		next:     entry.gateway,
		breaker:  r.breaker(cfg.Provider),
		observer: r.observer,
	}, nil
}

func (r *Registry) breaker(p Provider) *utils.CircuitBreaker {
	if cb, ok := r.breakers[p]; ok {
		return cb
	}
	observer := r.observer
	cb := utils.NewCircuitBreakerWithSettings("gateway-"+string(p), utils.BreakerSettings{
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		OnStateChange: func(name string, _, to utils.State) {
			if observer != nil {
				observer.TrackBreakerState(name, int(to))
			}
		},
	})
	r.breakers[p] = cb
	return cb
}

// Guarded runs verification through a circuit breaker. Only unreachable
// gateways count as breaker failures; a declined payment is a valid answer.
type Guarded struct {
	next     Gateway
	breaker  *utils.CircuitBreaker
	observer Observer
}

func NewGuarded(next Gateway, breaker *utils.CircuitBreaker, observer Observer) *Guarded {
	return &Guarded{next: next, breaker: breaker, observer: observer}
}

func (g *Guarded) Provider() Provider {
	return g.next.Provider()
}

func (g *Guarded) VerifyTransaction(ctx context.Context, req VerifyRequest) (*Transaction, error) {
	start := time.Now()

	res, err := g.breaker.Execute(ctx, func() (any, error) {
		return g.next.VerifyTransaction(ctx, req)
	})

	outcome := "error"
	defer func() {
		if g.observer != nil {
			g.observer.TrackGatewayVerify(string(g.next.Provider()), outcome, time.Since(start))
		}
	}()

	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
		outcome = "rejected"
		return nil, fmt.Errorf("%s gateway: %v: %w", g.next.Provider(), err, status.ErrPaymentUnavailable)
	}
	if err != nil {
		if !errors.Is(err, status.ErrPaymentUnavailable) && ctx.Err() == nil {
			err = fmt.Errorf("%v: %w", err, status.ErrPaymentUnavailable)
		}
		return nil, err
	}

	tx, _ := res.(*Transaction)
	if tx == nil {
		return nil, fmt.Errorf("%s gateway returned no transaction: %w", g.next.Provider(), status.ErrPaymentUnavailable)
	}
	outcome = tx.Status
	return tx, nil
}
