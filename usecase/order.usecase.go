package usecase

import (
	"context"
	"errors"

	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/spooky-finn/go-polymarket-session/domain/interfaces"
	promclient "github.com/spooky-finn/go-polymarket-session/infrastructure/prometheus"
)

var (
	ErrClientNotInitialized = errors.New("exchange client is not initialized")
	ErrNoAccount            = errors.New("no account identifier present")
	ErrMissingOrderID       = errors.New("order id must not be empty")
)

type OrderResult struct {
	OrderID string
}

// OrderUseCase is the order command layer. Validation failures surface
// before any network call; exchange rejections pass through verbatim and
// are never retried, since a duplicated financial submission is a worse
// failure mode than a visible error.
type OrderUseCase struct {
	api         interfaces.OrderAPI
	signer      domain.Signer
	accountID   string
	invalidator domain.CacheInvalidator
}

func NewOrderUseCase(api interfaces.OrderAPI, signer domain.Signer, accountID string, invalidator domain.CacheInvalidator) *OrderUseCase {
	if invalidator == nil {
		invalidator = domain.InvalidatorFunc(func(string) {})
	}
	return &OrderUseCase{
		api:         api,
		signer:      signer,
		accountID:   accountID,
		invalidator: invalidator,
	}
}

func (u *OrderUseCase) Submit(ctx context.Context, req *domain.OrderRequest) (*OrderResult, error) {
	if u == nil || u.api == nil {
		return nil, ErrClientNotInitialized
	}
	if u.accountID == "" {
		return nil, ErrNoAccount
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	orderID, err := u.api.PlaceOrder(ctx, req, u.signer)
	if err != nil {
		return nil, err
	}

	promclient.OrdersPlaced.Inc()

	// A resting order may immediately affect both the order list and
	// exposure calculations.
	u.invalidator.Invalidate(domain.CacheActiveOrders)
	u.invalidator.Invalidate(domain.CachePositions)
	return &OrderResult{OrderID: orderID}, nil
}

func (u *OrderUseCase) Cancel(ctx context.Context, orderID string) error {
	if u == nil || u.api == nil {
		return ErrClientNotInitialized
	}
	if u.accountID == "" {
		return ErrNoAccount
	}
	if orderID == "" {
		return ErrMissingOrderID
	}

	if err := u.api.CancelOrder(ctx, orderID); err != nil {
		return err
	}

	promclient.OrdersCancelled.Inc()
	u.invalidator.Invalidate(domain.CacheActiveOrders)
	return nil
}
