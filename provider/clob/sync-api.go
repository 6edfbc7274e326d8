package clob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spooky-finn/go-polymarket-session/domain"
)

var logger = log.New(log.Writer(), "[clob] ", log.LstdFlags)

var ErrNoCredentials = errors.New("no api credentials set")

// HeartbeatError is returned when the server rejects a heartbeat but
// supplies the id it expected. The keeper treats this as a resync signal,
// not a failure.
type HeartbeatError struct {
	StatusCode  int
	CorrectedID string
}

func (e *HeartbeatError) Error() string {
	return fmt.Sprintf("heartbeat rejected with status %d, corrected id %q", e.StatusCode, e.CorrectedID)
}

// SyncAPI is the request/response side of the exchange: the relayer
// operations driven by the bootstrap and the L2-authenticated trading
// endpoints. One method per remote operation, no internal retry.
type SyncAPI struct {
	restEndpoint    string
	relayerEndpoint string
	httpClient      *http.Client

	mu    sync.Mutex
	creds *domain.Credentials
}

func NewSyncAPI(restEndpoint, relayerEndpoint string, timeout time.Duration) *SyncAPI {
	return &SyncAPI{
		restEndpoint:    restEndpoint,
		relayerEndpoint: relayerEndpoint,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// SetCredentials installs the L2 credential triple used to sign trading
// requests (heartbeat, orders). Safe to call while requests are in
// flight; each request snapshots the triple it signs with.
func (api *SyncAPI) SetCredentials(creds *domain.Credentials) {
	api.mu.Lock()
	api.creds = creds
	api.mu.Unlock()
}

func (api *SyncAPI) credentials() *domain.Credentials {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.creds
}

func (api *SyncAPI) IsProxyDeployed(ctx context.Context, proxyAddress string) (bool, error) {
	var resp struct {
		Deployed bool `json:"deployed"`
	}
	url := fmt.Sprintf("%s/proxy/deployed?address=%s", api.relayerEndpoint, proxyAddress)
	if err := api.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return false, fmt.Errorf("failed to query proxy deployment: %w", err)
	}
	return resp.Deployed, nil
}

func (api *SyncAPI) DeployProxy(ctx context.Context, accountID string) error {
	body := map[string]string{"from": accountID}
	url := api.relayerEndpoint + "/proxy/deploy"
	if err := api.doJSON(ctx, http.MethodPost, url, body, nil); err != nil {
		return fmt.Errorf("failed to deploy proxy for %s: %w", accountID, err)
	}
	return nil
}

func (api *SyncAPI) DeriveCredentials(ctx context.Context, signer domain.Signer) (*domain.Credentials, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := signer.SignMessage([]byte("This message attests that I control the given wallet. Timestamp: " + ts))
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential attestation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.restEndpoint+"/auth/derive-api-key", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("POLY_ADDRESS", signer.Address())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to derive api credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("derive-api-key returned status %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	creds := &domain.Credentials{}
	if err := json.NewDecoder(resp.Body).Decode(creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if !creds.Complete() {
		return nil, errors.New("derive-api-key returned an incomplete credential triple")
	}
	return creds, nil
}

func (api *SyncAPI) CheckApprovals(ctx context.Context, proxyAddress string) (bool, error) {
	var resp struct {
		Approved bool `json:"approved"`
	}
	url := fmt.Sprintf("%s/approvals?address=%s", api.relayerEndpoint, proxyAddress)
	if err := api.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return false, fmt.Errorf("failed to check token approvals: %w", err)
	}
	return resp.Approved, nil
}

func (api *SyncAPI) SetApprovals(ctx context.Context, signer domain.Signer) error {
	sig, err := signer.SignMessage([]byte("approve-token-spenders"))
	if err != nil {
		return fmt.Errorf("failed to sign approval request: %w", err)
	}
	body := map[string]string{"from": signer.Address(), "signature": sig}
	if err := api.doJSON(ctx, http.MethodPost, api.relayerEndpoint+"/approvals", body, nil); err != nil {
		return fmt.Errorf("failed to set token approvals: %w", err)
	}
	return nil
}

// Heartbeat sends the current liveness id and returns the rotated one.
// An empty id requests a fresh one.
func (api *SyncAPI) Heartbeat(ctx context.Context, id string) (string, error) {
	body := map[string]string{"heartbeat_id": id}
	payload, _ := json.Marshal(body)

	req, err := api.newAuthedRequest(ctx, http.MethodPost, "/heartbeat", payload)
	if err != nil {
		return "", err
	}

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()

	var hb struct {
		HeartbeatID string `json:"heartbeat_id"`
	}
	raw := readBody(resp.Body)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// The server tells us the id it expected when ours went stale.
		if err := json.Unmarshal([]byte(raw), &hb); err == nil && hb.HeartbeatID != "" {
			return "", &HeartbeatError{StatusCode: resp.StatusCode, CorrectedID: hb.HeartbeatID}
		}
		return "", fmt.Errorf("heartbeat rejected with status %d: %s", resp.StatusCode, raw)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("heartbeat returned status %d: %s", resp.StatusCode, raw)
	}

	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		return "", fmt.Errorf("failed to unmarshal heartbeat response: %w", err)
	}
	return hb.HeartbeatID, nil
}

func (api *SyncAPI) PlaceOrder(ctx context.Context, req *domain.OrderRequest, signer domain.Signer) (string, error) {
	order, err := BuildOrder(req, signer)
	if err != nil {
		return "", err
	}

	payload, _ := json.Marshal(order)
	httpReq, err := api.newAuthedRequest(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return "", err
	}

	resp, err := api.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success  bool   `json:"success"`
		OrderID  string `json:"orderID"`
		ErrorMsg string `json:"errorMsg"`
	}
	raw := readBody(resp.Body)
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal order response (status %d): %s", resp.StatusCode, raw)
	}

	// Traders need the rejection reason, so it passes through untouched.
	if resp.StatusCode != http.StatusOK || !result.Success {
		if result.ErrorMsg != "" {
			return "", errors.New(result.ErrorMsg)
		}
		return "", fmt.Errorf("order rejected with status %d: %s", resp.StatusCode, raw)
	}
	return result.OrderID, nil
}

func (api *SyncAPI) CancelOrder(ctx context.Context, orderID string) error {
	payload, _ := json.Marshal(map[string]string{"orderID": orderID})
	req, err := api.newAuthedRequest(ctx, http.MethodDelete, "/order", payload)
	if err != nil {
		return err
	}

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cancel rejected with status %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

func (api *SyncAPI) newAuthedRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	creds := api.credentials()
	if !creds.Complete() {
		return nil, ErrNoCredentials
	}

	req, err := http.NewRequestWithContext(ctx, method, api.restEndpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(creds.Secret))
	mac.Write([]byte(ts + method + path))
	mac.Write(payload)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", creds.Key)
	req.Header.Set("POLY_PASSPHRASE", creds.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_SIGNATURE", base64.URLEncoding.EncodeToString(mac.Sum(nil)))
	return req, nil
}

func (api *SyncAPI) doJSON(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return ""
	}
	return string(b)
}

// Order execution policies. Market orders are all-or-nothing and
// immediate; limit orders rest on the book until filled or cancelled.
const (
	OrderTypeFOK = "FOK"
	OrderTypeGTC = "GTC"
)

// SignedOrder is the wire form of an order. For market orders Amount
// carries the request size under the order's side (quote notional for BUY,
// base quantity for SELL) and Price stays empty: the exchange resolves the
// execution price from its book.
type SignedOrder struct {
	ClientID  string `json:"client_id"`
	TokenID   string `json:"token_id"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Price     string `json:"price,omitempty"`
	Size      string `json:"size,omitempty"`
	Amount    string `json:"amount,omitempty"`
	NegRisk   bool   `json:"neg_risk"`
	Maker     string `json:"maker"`
	Signature string `json:"signature"`
}

// BuildOrder validates, shapes and signs an order request. It never
// computes an execution price for a market order.
func BuildOrder(req *domain.OrderRequest, signer domain.Signer) (*SignedOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	order := &SignedOrder{
		ClientID: uuid.NewString(),
		TokenID:  req.TokenID,
		Side:     string(req.Side),
		NegRisk:  req.NegRisk,
		Maker:    signer.Address(),
	}

	if req.IsMarketOrder {
		order.OrderType = OrderTypeFOK
		order.Amount = strconv.FormatFloat(req.Size, 'f', -1, 64)
	} else {
		order.OrderType = OrderTypeGTC
		order.Price = strconv.FormatFloat(req.Price, 'f', -1, 64)
		order.Size = strconv.FormatFloat(req.Size, 'f', -1, 64)
	}

	digest, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignMessage(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}
	order.Signature = sig
	return order, nil
}
