package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var ErrEpochUnavailable = errors.New("epoch source unavailable")

// EpochSource reports the ledger's current logical checkpoint number.
type EpochSource interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// RPCClient fetches the current epoch over the ledger's JSON-RPC endpoint.
type RPCClient struct {
	endpoint string
	client   *http.Client
}

func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type epochResult struct {
	Epoch string `json:"epoch"`
}

func (c *RPCClient) CurrentEpoch(ctx context.Context) (uint64, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "veil_getLatestEpoch",
		Params:  []any{},
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEpochUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrEpochUnavailable, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEpochUnavailable, err)
	}
	if decoded.Error != nil {
		return 0, fmt.Errorf("%w: rpc %d %s", ErrEpochUnavailable, decoded.Error.Code, decoded.Error.Message)
	}
	var result epochResult
	if err := json.Unmarshal(decoded.Result, &result); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEpochUnavailable, err)
	}
	epoch, err := strconv.ParseUint(result.Epoch, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed epoch %q", ErrEpochUnavailable, result.Epoch)
	}
	return epoch, nil
}

// FixedEpochSource returns a constant epoch. Test substitute.
type FixedEpochSource uint64

func (f FixedEpochSource) CurrentEpoch(context.Context) (uint64, error) {
	return uint64(f), nil
}
