// Package gateway provides the client for the transaction Gateway JSON-RPC
// API: transaction optimization, tip instruction preview, and submission.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// BuildOptions control how the Gateway optimizes a transaction. The Gateway
// injects compute-budget and tip instructions itself, so the caller submits
// bare business instructions and lets tiers steer the spend.
type BuildOptions struct {
	TipTier      types.TipTier
	PriorityTier types.PriorityTier
}

// BuildResult is the optimized transaction returned by the Gateway. The
// returned transaction replaces the caller's blockhash and instruction list
// and must be re-signed before submission.
type BuildResult struct {
	Transaction *solana.Transaction
	// FeeLamports is the Gateway's fee estimate for the optimized
	// transaction. Zero when the Gateway omits an estimate.
	FeeLamports uint64
}

// SubmitResult reports a landed transaction.
type SubmitResult struct {
	Signature string
	// FeeLamports is the fee actually charged. Zero when the delivery route
	// does not report it; callers fall back to the build estimate.
	FeeLamports uint64
	// TipRefundLamports is the portion of the delivery tip returned because
	// a cheaper route landed the transaction first.
	TipRefundLamports uint64
	// Route names the delivery path that landed the transaction.
	Route string
}

// EncodedInstruction is a tip instruction as returned by the Gateway,
// kept wire-encoded for preview purposes.
type EncodedInstruction struct {
	ProgramID string           `json:"programId"`
	Accounts  []EncodedAccount `json:"accounts"`
	Data      string           `json:"data"` // base64
}

// EncodedAccount is one account meta of an encoded instruction.
type EncodedAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// Client is the Gateway API surface the benchmark uses.
type Client interface {
	// BuildTransaction optimizes a transaction: the Gateway refreshes the
	// blockhash and injects compute-budget and tip instructions per options.
	BuildTransaction(ctx context.Context, tx *solana.Transaction, opts BuildOptions) (*BuildResult, error)

	// TipInstructions returns the raw tip instructions the Gateway would
	// inject for the given fee payer and tier. Diagnostic use only: the
	// benchmark path relies on BuildTransaction injecting tips itself.
	TipInstructions(ctx context.Context, feePayer solana.PublicKey, tier types.TipTier) ([]EncodedInstruction, error)

	// Submit sends a signed transaction through the Gateway.
	Submit(ctx context.Context, tx *solana.Transaction) (*SubmitResult, error)
}

// ClientConfig holds configuration for the Gateway HTTP client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Network types.Network
	Timeout time.Duration
	Logger  *slog.Logger
}

// HTTPClient implements Client against the Gateway's JSON-RPC endpoint.
// Calls are single-attempt: the runner records a failed attempt and moves
// on, so retrying here would distort latency measurements.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a Gateway client. The endpoint embeds the network
// and API key the way the Gateway expects.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPClient{
		endpoint:   fmt.Sprintf("%s/v1/%s?api-key=%s", cfg.BaseURL, cfg.Network, cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is an application-level Gateway error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// HTTPStatusError represents a non-2xx Gateway response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s (body: %s)", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	return rpcResp.Result, nil
}

// BuildTransaction optimizes a transaction through the Gateway.
func (c *HTTPClient) BuildTransaction(ctx context.Context, tx *solana.Transaction, opts BuildOptions) (*BuildResult, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	params := []interface{}{map[string]interface{}{
		"transaction":     encoded,
		"encoding":        "base64",
		"deliveryTipTier": opts.TipTier,
		"cuPriceTier":     opts.PriorityTier,
	}}

	result, err := c.call(ctx, "buildGatewayTransaction", params)
	if err != nil {
		return nil, fmt.Errorf("buildGatewayTransaction: %w", err)
	}

	var resp struct {
		Transaction string `json:"transaction"`
		FeeLamports uint64 `json:"feeLamports"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal build result: %w", err)
	}

	optimized, err := decodeTransaction(resp.Transaction)
	if err != nil {
		return nil, err
	}

	return &BuildResult{Transaction: optimized, FeeLamports: resp.FeeLamports}, nil
}

// TipInstructions fetches the tip instructions for a fee payer and tier.
func (c *HTTPClient) TipInstructions(ctx context.Context, feePayer solana.PublicKey, tier types.TipTier) ([]EncodedInstruction, error) {
	params := []interface{}{map[string]interface{}{
		"feePayer": feePayer.String(),
		"tipTier":  tier,
	}}

	result, err := c.call(ctx, "getTipInstructions", params)
	if err != nil {
		return nil, fmt.Errorf("getTipInstructions: %w", err)
	}

	var instrs []EncodedInstruction
	if err := json.Unmarshal(result, &instrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tip instructions: %w", err)
	}
	return instrs, nil
}

// Submit sends a signed transaction through the Gateway.
func (c *HTTPClient) Submit(ctx context.Context, tx *solana.Transaction) (*SubmitResult, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	params := []interface{}{encoded, map[string]string{"encoding": "base64"}}
	result, err := c.call(ctx, "sendTransaction", params)
	if err != nil {
		return nil, fmt.Errorf("sendTransaction: %w", err)
	}

	// The Gateway returns either a bare signature string or an object with
	// delivery details, depending on API version.
	var signature string
	if err := json.Unmarshal(result, &signature); err == nil {
		return &SubmitResult{Signature: signature}, nil
	}

	var resp struct {
		Signature         string `json:"signature"`
		FeeLamports       uint64 `json:"feeLamports"`
		TipRefundLamports uint64 `json:"tipRefundLamports"`
		Route             string `json:"route"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submit result: %w", err)
	}
	return &SubmitResult{
		Signature:         resp.Signature,
		FeeLamports:       resp.FeeLamports,
		TipRefundLamports: resp.TipRefundLamports,
		Route:             resp.Route,
	}, nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return tx, nil
}
