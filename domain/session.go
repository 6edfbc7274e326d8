package domain

import (
	"context"
	"time"
)

// SessionStep is the transient bootstrap step. It is never persisted; the
// persisted checkpoints on TradingSession decide which steps get skipped.
type SessionStep string

const (
	StepIdle        SessionStep = "idle"
	StepChecking    SessionStep = "checking"
	StepDeploying   SessionStep = "deploying"
	StepCredentials SessionStep = "credentials"
	StepApprovals   SessionStep = "approvals"
	StepComplete    SessionStep = "complete"
)

// TradingSession is the persisted bootstrap checkpoint for one account.
// Partial sessions are valid: a later Initialize resumes past every
// checkpoint already set.
type TradingSession struct {
	AccountID         string       `json:"account_id"`
	ProxyAddress      string       `json:"proxy_address"`
	IsProxyDeployed   bool         `json:"is_proxy_deployed"`
	HasAPICredentials bool         `json:"has_api_credentials"`
	HasApprovals      bool         `json:"has_approvals"`
	Credentials       *Credentials `json:"credentials,omitempty"`
	LastChecked       time.Time    `json:"last_checked"`
}

// Complete reports whether order submission is permitted for this session.
func (s *TradingSession) Complete() bool {
	return s != nil && s.IsProxyDeployed && s.HasAPICredentials && s.HasApprovals
}

// SessionStore owns the persisted TradingSession records, keyed by account
// identifier. Get returns (nil, nil) when no record exists. Callers must
// re-read before every read-then-write cycle; the gap between read and
// write spans an arbitrary number of suspension points.
type SessionStore interface {
	Get(ctx context.Context, accountID string) (*TradingSession, error)
	Put(ctx context.Context, session *TradingSession) error
	Delete(ctx context.Context, accountID string) error
}

// Signer is the external key-custody collaborator. The engine never
// inspects key material.
type Signer interface {
	Address() string
	SignMessage(msg []byte) (string, error)
}
