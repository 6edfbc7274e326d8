package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spooky-finn/go-polymarket-session/config"
	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/spooky-finn/go-polymarket-session/domain/interfaces"
	"github.com/spooky-finn/go-polymarket-session/helpers"
	"github.com/spooky-finn/go-polymarket-session/provider/clob"
	"golang.org/x/sync/singleflight"
)

var logger = log.New(log.Writer(), "[session] ", log.LstdFlags)

// BootstrapError wraps a failure of one bootstrap step. Checkpoints written
// before the failure stay in the store, so the next Initialize resumes past
// every completed step.
type BootstrapError struct {
	Step domain.SessionStep
	Err  error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("could not start trading session (step %s): %v", e.Step, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// Manager drives the resumable bootstrap pipeline
// idle -> checking -> (deploying)? -> (credentials)? -> approvals -> complete
// and owns the transient per-account step. The persisted checkpoint in the
// store is the source of truth: it is re-read at the start of every pass,
// never trusted from memory across the async gap.
type Manager struct {
	store      domain.SessionStore
	api        interfaces.BootstrapAPI
	signer     domain.Signer
	initClient func() error

	group singleflight.Group

	mu    sync.Mutex
	steps map[string]domain.SessionStep
}

// NewManager wires the bootstrap pipeline. initClient re-initializes the
// underlying exchange client handle on every pass (cheap, and it must
// reflect the current signer); nil is allowed.
func NewManager(store domain.SessionStore, api interfaces.BootstrapAPI, signer domain.Signer, initClient func() error) *Manager {
	return &Manager{
		store:      store,
		api:        api,
		signer:     signer,
		initClient: initClient,
		steps:      make(map[string]domain.SessionStep),
	}
}

// Initialize runs the bootstrap for one account and returns the completed
// session. It is idempotent and resumable: checkpointed steps are never
// redone, and concurrent calls for the same account share one in-flight
// pass.
func (m *Manager) Initialize(ctx context.Context, accountID string) (*domain.TradingSession, error) {
	v, err, _ := m.group.Do(accountID, func() (interface{}, error) {
		return m.initialize(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TradingSession), nil
}

// EndSession clears the persisted checkpoint and resets the transient step.
// This is the only supported way to force a full re-bootstrap.
func (m *Manager) EndSession(ctx context.Context, accountID string) error {
	if err := m.store.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("failed to clear session checkpoint for %s: %w", accountID, err)
	}
	m.setStep(accountID, domain.StepIdle)
	return nil
}

// Step reports the transient bootstrap step for an account.
func (m *Manager) Step(accountID string) domain.SessionStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step, ok := m.steps[accountID]; ok {
		return step
	}
	return domain.StepIdle
}

func (m *Manager) initialize(ctx context.Context, accountID string) (session *domain.TradingSession, err error) {
	defer func() {
		if err != nil {
			m.setStep(accountID, domain.StepIdle)
		}
	}()

	m.setStep(accountID, domain.StepChecking)

	checkpoint, err := m.store.Get(ctx, accountID)
	if err != nil {
		return nil, &BootstrapError{Step: domain.StepChecking, Err: err}
	}
	if checkpoint == nil {
		checkpoint = &domain.TradingSession{AccountID: accountID}
	}
	if config.DebugMode {
		logger.Printf("checkpoint for %s: %s", accountID, helpers.ToJsonString(checkpoint))
	}

	if m.initClient != nil {
		if err := m.initClient(); err != nil {
			return nil, &BootstrapError{Step: domain.StepChecking, Err: err}
		}
	}

	proxyAddress, err := clob.DeriveProxyAddress(accountID)
	if err != nil {
		return nil, &BootstrapError{Step: domain.StepChecking, Err: err}
	}
	checkpoint.ProxyAddress = proxyAddress

	if !checkpoint.IsProxyDeployed {
		deployed, err := m.api.IsProxyDeployed(ctx, checkpoint.ProxyAddress)
		if err != nil {
			return nil, &BootstrapError{Step: domain.StepChecking, Err: err}
		}
		if !deployed {
			m.setStep(accountID, domain.StepDeploying)
			if err := m.api.DeployProxy(ctx, accountID); err != nil {
				return nil, &BootstrapError{Step: domain.StepDeploying, Err: err}
			}
		}
		checkpoint.IsProxyDeployed = true
		if err := m.store.Put(ctx, checkpoint); err != nil {
			return nil, &BootstrapError{Step: domain.StepDeploying, Err: err}
		}
	}

	if !checkpoint.HasAPICredentials || !checkpoint.Credentials.Complete() {
		m.setStep(accountID, domain.StepCredentials)
		creds, err := m.api.DeriveCredentials(ctx, m.signer)
		if err != nil {
			return nil, &BootstrapError{Step: domain.StepCredentials, Err: err}
		}
		checkpoint.Credentials = creds
		checkpoint.HasAPICredentials = true
		if err := m.store.Put(ctx, checkpoint); err != nil {
			return nil, &BootstrapError{Step: domain.StepCredentials, Err: err}
		}
	}

	// The approvals step always runs, but the expensive remote calls are
	// skipped when the checkpoint already records complete approvals.
	m.setStep(accountID, domain.StepApprovals)
	if !checkpoint.HasApprovals {
		approved, err := m.api.CheckApprovals(ctx, checkpoint.ProxyAddress)
		if err != nil {
			return nil, &BootstrapError{Step: domain.StepApprovals, Err: err}
		}
		if !approved {
			if err := m.api.SetApprovals(ctx, m.signer); err != nil {
				return nil, &BootstrapError{Step: domain.StepApprovals, Err: err}
			}
		}
		checkpoint.HasApprovals = true
	}

	checkpoint.LastChecked = time.Now()
	if err := m.store.Put(ctx, checkpoint); err != nil {
		return nil, &BootstrapError{Step: domain.StepApprovals, Err: err}
	}

	m.setStep(accountID, domain.StepComplete)
	logger.Printf("trading session complete for %s (proxy %s)", accountID, checkpoint.ProxyAddress)
	return checkpoint, nil
}

func (m *Manager) setStep(accountID string, step domain.SessionStep) {
	m.mu.Lock()
	m.steps[accountID] = step
	m.mu.Unlock()
}
