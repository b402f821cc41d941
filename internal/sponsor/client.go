// Package sponsor submits an assembled transaction to the gas sponsorship
// endpoint. Quota accounting lives on the sponsor side; this client only
// delivers a well-formed package and reports the verdict.
package sponsor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"veilpoll/go-client/internal/authorize"
)

var (
	ErrUnavailable   = errors.New("sponsorship endpoint unavailable")
	ErrQuotaExceeded = errors.New("sponsorship quota exceeded")
	ErrRejected      = errors.New("sponsorship request rejected")
)

// SponsoredTx is the co-signed transaction ready for chain submission.
type SponsoredTx struct {
	TxBytes          []byte `json:"tx_bytes"`
	SponsorSignature []byte `json:"sponsor_signature"`
	RemainingQuota   uint64 `json:"remaining_quota"`
}

type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type wireRequest struct {
	TxBytes string            `json:"tx_bytes"`
	Package authorize.Package `json:"signature_package"`
}

type wireResponse struct {
	TxBytes          string `json:"tx_bytes"`
	SponsorSignature string `json:"sponsor_signature"`
	RemainingQuota   uint64 `json:"remaining_quota"`
}

func (c *Client) Sponsor(ctx context.Context, txBytes []byte, pkg authorize.Package) (SponsoredTx, error) {
	body, err := json.Marshal(wireRequest{
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
		Package: pkg,
	})
	if err != nil {
		return SponsoredTx{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return SponsoredTx{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return SponsoredTx{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return SponsoredTx{}, ErrQuotaExceeded
	case resp.StatusCode >= 500:
		return SponsoredTx{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return SponsoredTx{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var decoded wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SponsoredTx{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	outTx, err := base64.StdEncoding.DecodeString(decoded.TxBytes)
	if err != nil {
		return SponsoredTx{}, fmt.Errorf("%w: malformed tx bytes", ErrRejected)
	}
	signature, err := base64.StdEncoding.DecodeString(decoded.SponsorSignature)
	if err != nil {
		return SponsoredTx{}, fmt.Errorf("%w: malformed sponsor signature", ErrRejected)
	}
	return SponsoredTx{
		TxBytes:          outTx,
		SponsorSignature: signature,
		RemainingQuota:   decoded.RemainingQuota,
	}, nil
}
