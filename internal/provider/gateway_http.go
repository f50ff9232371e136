package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPGateway talks to the identity authority over its JSON API. It performs
// exactly one HTTP call per method; retry policy lives in the Client.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPGatewayOption configures an HTTPGateway.
type HTTPGatewayOption func(*HTTPGateway)

// WithHTTPClient replaces the underlying http.Client, mainly for tests.
func WithHTTPClient(client *http.Client) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.client = client }
}

func NewHTTPGateway(baseURL, apiKey string, opts ...HTTPGatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type startChallengeRequest struct {
	IdentifierType  string `json:"identifierType"`
	IdentifierValue string `json:"identifierValue"`
}

type startChallengeResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

type confirmChallengeRequest struct {
	IdentifierValue string `json:"identifierValue"`
	OTP             string `json:"otp"`
}

type confirmChallengeResponse struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason,omitempty"`
}

func (g *HTTPGateway) StartChallenge(ctx context.Context, req StartRequest) (StartResponse, error) {
	var body startChallengeResponse
	err := g.post(ctx, "/challenge/start", req.CorrelationID, startChallengeRequest{
		IdentifierType:  req.IdentifierType,
		IdentifierValue: req.IdentifierValue,
	}, &body)
	if err != nil {
		return StartResponse{}, err
	}
	return StartResponse{
		Accepted: body.Accepted,
		Reason:   body.Reason,
		Contact:  body.Contact,
	}, nil
}

func (g *HTTPGateway) ConfirmChallenge(ctx context.Context, req ConfirmRequest) (ConfirmResponse, error) {
	var body confirmChallengeResponse
	err := g.post(ctx, "/challenge/confirm", req.CorrelationID, confirmChallengeRequest{
		IdentifierValue: req.IdentifierValue,
		OTP:             req.OTP,
	}, &body)
	if err != nil {
		return ConfirmResponse{}, err
	}
	verdict := Verdict(body.Verdict)
	switch verdict {
	case VerdictVerified, VerdictInvalid, VerdictExpired, VerdictUnknownReference:
	default:
		return ConfirmResponse{}, NewUpstreamError(CategoryBadResponse,
			fmt.Sprintf("unrecognized verdict %q", body.Verdict), nil)
	}
	return ConfirmResponse{Verdict: verdict, Reason: body.Reason}, nil
}

// post sends a JSON request and decodes a JSON response, mapping transport
// and status failures onto upstream error categories.
func (g *HTTPGateway) post(ctx context.Context, path, correlationID string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return NewUpstreamError(CategoryInternal, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return NewUpstreamError(CategoryInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", g.apiKey)
	req.Header.Set("X-Correlation-ID", correlationID)

	resp, err := g.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewUpstreamError(CategoryBadResponse, "decode response", err)
	}
	return nil
}

func classifyTransportError(err error) *UpstreamError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewUpstreamError(CategoryTimeout, "request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamError(CategoryTimeout, "request timed out", err)
	}
	return NewUpstreamError(CategoryOutage, "request failed", err)
}

func classifyStatus(status int) *UpstreamError {
	switch {
	case status == http.StatusTooManyRequests:
		return NewUpstreamError(CategoryRateLimited, "rate limited", nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewUpstreamError(CategoryAuthentication, fmt.Sprintf("status %d", status), nil)
	case status >= 500:
		return NewUpstreamError(CategoryOutage, fmt.Sprintf("status %d", status), nil)
	default:
		return NewUpstreamError(CategoryBadResponse, fmt.Sprintf("unexpected status %d", status), nil)
	}
}
