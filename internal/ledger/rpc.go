package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// RPCClient talks JSON-RPC 2.0 to the ledger gateway fronting the game
// contract. The gateway holds the signing key; this client only shapes
// requests and classifies failures.
type RPCClient struct {
	endpoint string
	contract string
	window   uint64
	http     *http.Client
	reqID    atomic.Int64
}

func NewRPCClient(endpoint, contract string, maxQueryWindow uint64) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		contract: contract,
		window:   maxQueryWindow,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip. Transport failures come back as
// plain errors so callers can decide the broadcast flag; gateway-reported
// rejections are classified against the revert taxonomy.
func (c *RPCClient) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %v", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %v", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned HTTP %d for %s", resp.StatusCode, method)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %v", method, err)
	}

	if rpcResp.Error != nil {
		return classifyRejection(rpcResp.Error.Message)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %v", method, err)
		}
	}

	return nil
}

type submitParams struct {
	Contract string `json:"contract"`
	Call     Call   `json:"call"`
}

func (c *RPCClient) SubmitCall(ctx context.Context, call Call) (string, error) {
	var txHash string
	err := c.call(ctx, "game_submit", submitParams{Contract: c.contract, Call: call}, &txHash)
	if err != nil {
		if isTaxonomyError(err) {
			// Gateway rejected the call before broadcasting it.
			return "", err
		}
		return "", &TransportError{Op: "submit", Broadcast: false, Err: err}
	}

	return txHash, nil
}

type receiptParams struct {
	TxHash string `json:"transaction_hash"`
}

// WaitReceipt polls the gateway until the transaction is included. A
// broadcast transaction cannot be retracted, so there is no client-side
// deadline beyond the caller's context; transport failures here carry
// Broadcast=true.
func (c *RPCClient) WaitReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt *Receipt

	poll := backoff.NewExponentialBackOff()
	poll.InitialInterval = 500 * time.Millisecond
	poll.MaxInterval = 10 * time.Second
	poll.MaxElapsedTime = 0 // block inclusion time is unbounded

	err := backoff.Retry(func() error {
		var r *Receipt
		if err := c.call(ctx, "game_getReceipt", receiptParams{TxHash: txHash}, &r); err != nil {
			if isTaxonomyError(err) {
				return backoff.Permanent(err)
			}
			logrus.Warnf("receipt poll for %s failed: %v, retrying...", txHash, err)
			return err
		}

		if r == nil {
			return fmt.Errorf("transaction %s not yet included", txHash)
		}

		receipt = r
		return nil
	}, backoff.WithContext(poll, ctx))

	if err != nil {
		if isTaxonomyError(err) {
			return nil, err
		}
		return nil, &TransportError{Op: "confirmation", Broadcast: true, Err: err}
	}

	if !receipt.Succeeded {
		return nil, classifyRejection(receipt.RevertReason)
	}

	return receipt, nil
}

func (c *RPCClient) HeadBlock(ctx context.Context) (uint64, error) {
	var head uint64
	if err := c.call(ctx, "game_blockNumber", struct{}{}, &head); err != nil {
		return 0, fmt.Errorf("failed to fetch head block: %v", err)
	}
	return head, nil
}

type queryParams struct {
	Contract  string  `json:"contract"`
	Event     string  `json:"event"`
	FromBlock uint64  `json:"from_block"`
	ToBlock   uint64  `json:"to_block"`
	SessionID *uint64 `json:"session_id,omitempty"`
}

func (c *RPCClient) QueryEvents(ctx context.Context, name string, fromBlock, toBlock uint64, sessionID *uint64) ([]Event, error) {
	var events []Event
	err := c.call(ctx, "game_getLogs", queryParams{
		Contract:  c.contract,
		Event:     name,
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		SessionID: sessionID,
	}, &events)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s events [%d,%d]: %v", name, fromBlock, toBlock, err)
	}

	return events, nil
}

type sessionParams struct {
	Contract  string `json:"contract"`
	SessionID uint64 `json:"session_id"`
}

func (c *RPCClient) GetSession(ctx context.Context, sessionID uint64) (*SessionState, error) {
	var state *SessionState
	err := c.call(ctx, "game_getSession", sessionParams{Contract: c.contract, SessionID: sessionID}, &state)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session %d: %v", sessionID, err)
	}

	if state == nil {
		return nil, fmt.Errorf("session %d not found", sessionID)
	}

	return state, nil
}

func (c *RPCClient) EntropyFee(ctx context.Context) (string, error) {
	var fee string
	if err := c.call(ctx, "game_entropyFee", struct{ Contract string `json:"contract"` }{c.contract}, &fee); err != nil {
		return "", fmt.Errorf("failed to fetch entropy fee: %v", err)
	}
	return fee, nil
}

func (c *RPCClient) MaxQueryWindow() uint64 {
	return c.window
}

// isTaxonomyError reports whether err is already one of the typed ledger
// errors and should pass through unwrapped.
func isTaxonomyError(err error) bool {
	switch err.(type) {
	case *ValidationError, *AuthorizationError, *InsolvencyError, *ProtocolMismatchError, *TransportError:
		return true
	default:
		return false
	}
}
