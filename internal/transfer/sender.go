package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSignerTimeout bounds one signer round trip. Signing plus broadcast
// can be slow on congested chains.
const DefaultSignerTimeout = 60 * time.Second

// HTTPSender performs transfers through an external signer service. The
// service owns the keys; this process never sees them.
type HTTPSender struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewHTTPSender creates an HTTPSender for the given signer endpoint.
func NewHTTPSender(endpoint string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSender{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		timeout:  DefaultSignerTimeout,
	}
}

var _ Sender = (*HTTPSender)(nil)

type signerRequest struct {
	Chain       string  `json:"chain"`
	Network     string  `json:"network"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	Amount      float64 `json:"amount"`
	PIN         string  `json:"pin"`
}

type signerResponse struct {
	TxHash  string `json:"txHash"`
	Message string `json:"message"`
}

// Send submits the transfer to the signer and returns the transaction hash.
func (s *HTTPSender) Send(ctx context.Context, req SendRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(signerRequest{
		Chain:       req.Chain,
		Network:     req.Network,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Amount:      req.Amount,
		PIN:         req.PIN,
	})
	if err != nil {
		return "", fmt.Errorf("marshal signer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create signer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("signer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read signer response: %w", err)
	}

	var out signerResponse
	if jerr := json.Unmarshal(body, &out); jerr != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("unmarshal signer response: %w", jerr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", fmt.Errorf("transfer rejected: %s", msg)
	}
	if out.TxHash == "" {
		return "", errors.New("signer returned no transaction hash")
	}
	return out.TxHash, nil
}
