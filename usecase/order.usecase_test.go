package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/stretchr/testify/assert"
)

const testAccount = "0x56687bf447db6ffa42ffe2204a05edaa20f55839"

type fakeSigner struct{}

func (s *fakeSigner) Address() string { return testAccount }

func (s *fakeSigner) SignMessage(msg []byte) (string, error) { return "0xsigned", nil }

type fakeOrderAPI struct {
	placeCalls  int
	cancelCalls int
	placeErr    error
	cancelErr   error
	lastReq     *domain.OrderRequest
}

func (f *fakeOrderAPI) PlaceOrder(ctx context.Context, req *domain.OrderRequest, signer domain.Signer) (string, error) {
	f.placeCalls++
	f.lastReq = req
	if f.placeErr != nil {
		return "", f.placeErr
	}
	return "order-1", nil
}

func (f *fakeOrderAPI) CancelOrder(ctx context.Context, orderID string) error {
	f.cancelCalls++
	return f.cancelErr
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(key string) {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
}

func TestSubmit_ValidationHappensBeforeAnyNetworkCall(t *testing.T) {
	api := &fakeOrderAPI{}
	invalidator := &recordingInvalidator{}
	orders := NewOrderUseCase(api, &fakeSigner{}, testAccount, invalidator)

	req := &domain.OrderRequest{TokenID: "7132", Size: 5, Side: domain.SideBuy}
	_, err := orders.Submit(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrMissingPrice)
	assert.Equal(t, 0, api.placeCalls, "no network call may precede validation")
	assert.Empty(t, invalidator.keys)
}

func TestSubmit_InvalidatesOrdersAndPositions(t *testing.T) {
	api := &fakeOrderAPI{}
	invalidator := &recordingInvalidator{}
	orders := NewOrderUseCase(api, &fakeSigner{}, testAccount, invalidator)

	req := &domain.OrderRequest{TokenID: "7132", Size: 5, Price: 0.4, Side: domain.SideBuy}
	result, err := orders.Submit(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, []string{domain.CacheActiveOrders, domain.CachePositions}, invalidator.keys)
}

func TestSubmit_ExchangeRejectionPassesThroughWithoutRetry(t *testing.T) {
	api := &fakeOrderAPI{placeErr: errors.New("not enough balance / allowance")}
	invalidator := &recordingInvalidator{}
	orders := NewOrderUseCase(api, &fakeSigner{}, testAccount, invalidator)

	req := &domain.OrderRequest{TokenID: "7132", Size: 5, Price: 0.4, Side: domain.SideBuy}
	_, err := orders.Submit(context.Background(), req)

	assert.EqualError(t, err, "not enough balance / allowance")
	assert.Equal(t, 1, api.placeCalls, "financial operations are never silently retried")
	assert.Empty(t, invalidator.keys, "a rejected order invalidates nothing")
}

func TestCancel_InvalidatesActiveOrdersOnly(t *testing.T) {
	api := &fakeOrderAPI{}
	invalidator := &recordingInvalidator{}
	orders := NewOrderUseCase(api, &fakeSigner{}, testAccount, invalidator)

	assert.NoError(t, orders.Cancel(context.Background(), "order-1"))
	assert.Equal(t, []string{domain.CacheActiveOrders}, invalidator.keys)
}

func TestOrderUseCase_Preconditions(t *testing.T) {
	req := &domain.OrderRequest{TokenID: "7132", Size: 5, Price: 0.4, Side: domain.SideBuy}

	uninitialized := NewOrderUseCase(nil, &fakeSigner{}, testAccount, nil)
	_, err := uninitialized.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrClientNotInitialized)

	api := &fakeOrderAPI{}
	noAccount := NewOrderUseCase(api, &fakeSigner{}, "", nil)
	_, err = noAccount.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoAccount)
	assert.Equal(t, 0, api.placeCalls)

	orders := NewOrderUseCase(api, &fakeSigner{}, testAccount, nil)
	assert.ErrorIs(t, orders.Cancel(context.Background(), ""), ErrMissingOrderID)

	var nilOrders *OrderUseCase
	_, err = nilOrders.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrClientNotInitialized)
}
