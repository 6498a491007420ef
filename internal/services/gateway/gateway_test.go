package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"ticket-shop/internal/status"
	"ticket-shop/utils"
)

func newPaystackServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "/transaction/verify/TS-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPaystack_VerifySuccess(t *testing.T) {
	srv := newPaystackServer(t, http.StatusOK, `{
		"status": true,
		"message": "Verification successful",
		"data": {"id": 4099, "status": "success", "reference": "TS-1", "amount": 500000, "currency": "NGN", "paid_at": "2025-06-01T10:00:00Z"}
	}`)
	p, err := NewPaystack(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	require.NoError(t, err)

	tx, err := p.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})

	require.NoError(t, err)
	assert.True(t, tx.Succeeded())
	assert.Equal(t, int64(500000), tx.Amount)
	assert.Equal(t, "4099", tx.TransactionID)
	assert.Equal(t, "NGN", tx.Currency)
}

func TestPaystack_VerifyDeclined(t *testing.T) {
	srv := newPaystackServer(t, http.StatusOK, `{"status": true, "message": "ok", "data": {"status": "failed", "amount": 500000, "gateway_response": "Declined"}}`)
	p, err := NewPaystack(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	require.NoError(t, err)

	tx, err := p.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})

	require.NoError(t, err)
	assert.False(t, tx.Succeeded())
	assert.Equal(t, StatusFailed, tx.Status)
	assert.Equal(t, "Declined", tx.Message)
}

func TestPaystack_UnknownReference(t *testing.T) {
	srv := newPaystackServer(t, http.StatusBadRequest, `{"status": false, "message": "Transaction reference not found"}`)
	p, err := NewPaystack(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	require.NoError(t, err)

	tx, err := p.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})

	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, tx.Status)
}

func TestPaystack_ServerErrorIsUnavailable(t *testing.T) {
	srv := newPaystackServer(t, http.StatusBadGateway, `oops`)
	p, err := NewPaystack(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})

	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)
}

func TestPaystack_RequiresSecret(t *testing.T) {
	_, err := NewPaystack(Config{})
	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)
}

func TestStripe_Verify(t *testing.T) {
	s := &Stripe{get: func(id string) (*stripe.PaymentIntent, error) {
		require.Equal(t, "pi_123", id)
		return &stripe.PaymentIntent{
			ID:       "pi_123",
			Amount:   2500,
			Currency: "usd",
			Status:   stripe.PaymentIntentStatusSucceeded,
			Metadata: map[string]string{"reference": "TS-9"},
		}, nil
	}}

	tx, err := s.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-9", TransactionID: "pi_123"})
	require.NoError(t, err)
	assert.True(t, tx.Succeeded())
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, int64(2500), tx.Amount)

	tx, err = s.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-other", TransactionID: "pi_123"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, tx.Status)
}

func TestStripe_NotFoundAndTransport(t *testing.T) {
	s := &Stripe{get: func(string) (*stripe.PaymentIntent, error) {
		return nil, &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such payment_intent"}
	}}
	tx, err := s.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1", TransactionID: "pi_x"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, tx.Status)

	s.get = func(string) (*stripe.PaymentIntent, error) { return nil, errors.New("dial tcp: timeout") }
	_, err = s.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1", TransactionID: "pi_x"})
	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)

	tx, err = s.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, tx.Status)
}

func TestFactory_Create(t *testing.T) {
	f := NewFactory()

	gw, err := f.Create(Config{Provider: ProviderPaystack, SecretKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, ProviderPaystack, gw.Provider())

	_, err = f.Create(Config{Provider: "flutterwave", SecretKey: "sk"})
	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)

	_, err = f.Create(Config{Provider: ProviderMock})
	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)
}

func TestRegistry_MockRequiresRegistration(t *testing.T) {
	r := NewRegistry(NewFactory(), nil)

	_, err := r.Resolve(Config{Provider: ProviderMock})
	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)
}

type recordingObserver struct {
	verifies []string
	states   []int
}

func (o *recordingObserver) TrackGatewayVerify(_, st string, _ time.Duration) {
	o.verifies = append(o.verifies, st)
}

func (o *recordingObserver) TrackBreakerState(_ string, state int) {
	o.states = append(o.states, state)
}

func TestGuarded_DeclinesDoNotTripBreaker(t *testing.T) {
	mock := NewMock()
	mock.Script("TS-1", StatusFailed, 0)
	cb := utils.NewCircuitBreakerWithSettings("test", utils.BreakerSettings{ConsecutiveFailures: 2})
	g := NewGuarded(mock, cb, nil)

	for i := 0; i < 5; i++ {
		tx, err := g.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, tx.Status)
	}
	assert.Equal(t, utils.StateClosed, cb.State())
}

func TestGuarded_OpensOnTransportFailures(t *testing.T) {
	mock := NewMock()
	mock.Fail("TS-1", errors.New("connection refused"))
	obs := &recordingObserver{}
	cb := utils.NewCircuitBreakerWithSettings("test", utils.BreakerSettings{
		ConsecutiveFailures: 2,
		Timeout:             time.Hour,
		OnStateChange: func(_ string, _, to utils.State) {
			obs.TrackBreakerState("test", int(to))
		},
	})
	g := NewGuarded(mock, cb, obs)

	for i := 0; i < 2; i++ {
		_, err := g.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})
		assert.ErrorIs(t, err, status.ErrPaymentUnavailable)
	}
	require.Equal(t, 2, mock.Calls())

	_, err := g.VerifyTransaction(context.Background(), VerifyRequest{Reference: "TS-1"})
	assert.ErrorIs(t, err, status.ErrPaymentUnavailable)
	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, []int{int(utils.StateOpen)}, obs.states)
	assert.Equal(t, []string{"error", "error", "rejected"}, obs.verifies)
}

func TestRegistry_RebuildsOnKeyChange(t *testing.T) {
	r := NewRegistry(NewFactory(), nil)

	first, err := r.Resolve(Config{Provider: ProviderPaystack, SecretKey: "sk_1"})
	require.NoError(t, err)
	again, err := r.Resolve(Config{Provider: ProviderPaystack, SecretKey: "sk_1"})
	require.NoError(t, err)
	assert.Same(t, first.(*Guarded).next, again.(*Guarded).next)
	assert.Same(t, first.(*Guarded).breaker, again.(*Guarded).breaker)

	rotated, err := r.Resolve(Config{Provider: ProviderPaystack, SecretKey: "sk_2"})
	require.NoError(t, err)
	assert.NotSame(t, first.(*Guarded).next, rotated.(*Guarded).next)
	assert.Same(t, first.(*Guarded).breaker, rotated.(*Guarded).breaker)
}

func TestRegistry_RegisteredGatewayWins(t *testing.T) {
	r := NewRegistry(NewFactory(), nil)
	mock := NewMock()
	r.Register(mock)

	gw, err := r.Resolve(Config{Provider: ProviderMock})
	require.NoError(t, err)
	assert.Same(t, Gateway(mock), gw.(*Guarded).next)
}
