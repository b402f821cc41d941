// Package prover talks to the external zero-knowledge proof service. The
// artifact it returns is verified by the ledger on submission; this client
// never inspects it.
package prover

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrUnavailable  = errors.New("proof service unavailable")
	ErrRejected     = errors.New("proof service rejected the request")
	ErrEmptyRequest = errors.New("incomplete proof request")
)

// Request carries everything the proof service needs to bind the proof to
// one ephemeral key, epoch window and identity.
type Request struct {
	PublicKey  []byte
	MaxEpoch   uint64
	Randomness []byte
	Salt       []byte
	IDToken    string
}

// Artifact is the opaque proof payload, kept exactly as returned.
type Artifact struct {
	Proof json.RawMessage `json:"proof"`
}

// Client is the narrow boundary the assembler depends on.
type Client interface {
	Prove(ctx context.Context, req Request) (Artifact, error)
}

// HTTPClient posts proof requests to the service endpoint, with a local
// rate limiter so retry storms cannot hammer it.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 45 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
	}
}

type wireRequest struct {
	PublicKey  string `json:"ephemeral_public_key"`
	MaxEpoch   string `json:"max_epoch"`
	Randomness string `json:"randomness"`
	Salt       string `json:"salt"`
	IDToken    string `json:"id_token"`
}

func (c *HTTPClient) Prove(ctx context.Context, req Request) (Artifact, error) {
	if len(req.PublicKey) == 0 || len(req.Salt) == 0 || req.IDToken == "" {
		return Artifact{}, ErrEmptyRequest
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Artifact{}, err
	}

	body, err := json.Marshal(wireRequest{
		PublicKey:  base64.StdEncoding.EncodeToString(req.PublicKey),
		MaxEpoch:   strconv.FormatUint(req.MaxEpoch, 10),
		Randomness: base64.StdEncoding.EncodeToString(req.Randomness),
		Salt:       base64.StdEncoding.EncodeToString(req.Salt),
		IDToken:    req.IDToken,
	})
	if err != nil {
		return Artifact{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Artifact{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return Artifact{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		// 4xx means the request itself is bad; retrying the same inputs
		// cannot succeed.
		return Artifact{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var artifact Artifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(artifact.Proof) == 0 {
		return Artifact{}, fmt.Errorf("%w: empty proof", ErrUnavailable)
	}
	return artifact, nil
}

// CannedClient returns a fixed artifact. Test substitute.
type CannedClient struct {
	Artifact Artifact
	Err      error
	Requests []Request
}

func (c *CannedClient) Prove(_ context.Context, req Request) (Artifact, error) {
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return Artifact{}, c.Err
	}
	return c.Artifact, nil
}
