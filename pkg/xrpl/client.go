// client.go implements the one-shot JSON-RPC surface: account_tx,
// account_info, account_lines, and submit_and_wait, tried against each
// configured endpoint in order.
package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Client is a one-shot JSON-RPC client against one or more XRPL nodes.
type Client struct {
	endpoints  []string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient overrides the client's underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient constructs a Client trying endpoints in listed order.
func NewClient(endpoints []string, opts ...Option) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one JSON-RPC endpoint is required")
	}
	c := &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.New(log.Writer(), "[XRPL] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

type rpcResult struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"error_message"`
}

// call issues method with params against each endpoint in order, returning
// the first successful raw result. An actNotFound answer is returned at
// once as ErrAccountNotFound; any other failure moves on to the next
// endpoint, and ErrLedgerUnavailable is returned when every endpoint fails.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	req := rpcRequest{Method: method, Params: []json.RawMessage{rawParams}}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		result, err := c.post(ctx, endpoint, body)
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		if err != nil {
			lastErr = err
			c.logger.Printf("endpoint %s failed for %s: %v", endpoint, method, err)
			continue
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, lastErr)
	}
	return nil, ErrLedgerUnavailable
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var status rpcResult
	if err := json.Unmarshal(rpcResp.Result, &status); err == nil && status.Status == "error" {
		msg := status.Message
		if msg == "" {
			msg = status.Error
		}
		if status.Error == "actNotFound" {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("rippled error: %s", msg)
	}

	return rpcResp.Result, nil
}

// AccountTx returns paginated transaction history for address between
// minLedger and maxLedger (-1 meaning "first"/"validated" respectively).
func (c *Client) AccountTx(ctx context.Context, address string, minLedger, maxLedger int64, limit int, marker json.RawMessage) ([]TxRecord, json.RawMessage, error) {
	params := map[string]interface{}{
		"account":          address,
		"ledger_index_min": minLedger,
		"ledger_index_max": maxLedger,
		"limit":            limit,
		"binary":           false,
	}
	if marker != nil {
		params["marker"] = marker
	}

	raw, err := c.call(ctx, "account_tx", params)
	if err != nil {
		return nil, nil, err
	}

	var parsed struct {
		Transactions []TxRecord      `json:"transactions"`
		Marker       json.RawMessage `json:"marker"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse account_tx result: %w", err)
	}
	return parsed.Transactions, parsed.Marker, nil
}

// AccountInfo returns basic account state for address.
func (c *Client) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	raw, err := c.call(ctx, "account_info", map[string]interface{}{"account": address})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		AccountData AccountInfo `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse account_info result: %w", err)
	}
	return &parsed.AccountData, nil
}

// AccountLines returns every trust line held by address.
func (c *Client) AccountLines(ctx context.Context, address string) ([]TrustLine, error) {
	raw, err := c.call(ctx, "account_lines", map[string]interface{}{"account": address})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Lines []TrustLine `json:"lines"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse account_lines result: %w", err)
	}
	return parsed.Lines, nil
}

// SubmitAndWait submits a signed transaction blob (tx_blob, hex-encoded)
// and checks the server's preliminary engine_result. It does not wait for
// the transaction to be validated, and TransactionResult and Validated in
// the returned SubmitResult are left unset.
func (c *Client) SubmitAndWait(ctx context.Context, txBlobHex string) (*SubmitResult, error) {
	raw, err := c.call(ctx, "submit", map[string]interface{}{
		"tx_blob": txBlobHex,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		EngineResult string `json:"engine_result"`
		Tx           struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse submit result: %w", err)
	}

	result := &SubmitResult{
		Hash:         parsed.Tx.Hash,
		EngineResult: parsed.EngineResult,
	}
	if err := c.waitForValidation(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// waitForValidation does not poll the ledger: it checks the preliminary
// engine_result of submit and returns ErrSubmissionRejected unless it is
// tesSUCCESS or a ter*/tel* code.
func (c *Client) waitForValidation(ctx context.Context, result *SubmitResult) error {
	prefix := result.EngineResult
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if result.EngineResult != "tesSUCCESS" && prefix != "ter" && prefix != "tel" {
		return fmt.Errorf("%w: %s", ErrSubmissionRejected, result.EngineResult)
	}
	return nil
}
