package interfaces

import (
	"context"

	"github.com/spooky-finn/go-polymarket-session/domain"
)

// BootstrapAPI groups the remote adapters driven by the bootstrap state
// machine. Each call is a single async operation with no internal retry:
// when it fails, the bootstrap step fails and is retried only on the next
// explicit Initialize call.
type BootstrapAPI interface {
	IsProxyDeployed(ctx context.Context, proxyAddress string) (bool, error)
	DeployProxy(ctx context.Context, accountID string) error
	DeriveCredentials(ctx context.Context, signer domain.Signer) (*domain.Credentials, error)
	CheckApprovals(ctx context.Context, proxyAddress string) (bool, error)
	SetApprovals(ctx context.Context, signer domain.Signer) error
}

// HeartbeatAPI sends the resting-order liveness signal. The returned id is
// opaque and rotated by the server on every call; the empty string requests
// a fresh one.
type HeartbeatAPI interface {
	Heartbeat(ctx context.Context, id string) (string, error)
}

// OrderAPI submits and cancels orders. PlaceOrder builds and signs the
// order from the request; the exchange rejection text passes through
// verbatim in the returned error.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, req *domain.OrderRequest, signer domain.Signer) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}
