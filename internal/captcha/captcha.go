// Package captcha wraps the external human-verification service
// (Turnstile-compatible siteverify contract).
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	dErrors "provisio/pkg/domain-errors"
)

// Verifier checks a challenge response token.
type Verifier interface {
	// Verify returns whether the token passed. The error is reserved for
	// transport failures against the verification service.
	Verify(ctx context.Context, secret, token, remoteIP string) (bool, error)
}

// Client calls the siteverify endpoint.
type Client struct {
	verifyURL  string
	httpClient *http.Client
}

func NewClient(verifyURL string) *Client {
	return &Client{
		verifyURL:  verifyURL,
		httpClient: http.DefaultClient,
	}
}

type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip,omitempty"`
}

type verifyResponse struct {
	Success bool `json:"success"`
}

func (c *Client) Verify(ctx context.Context, secret, token, remoteIP string) (bool, error) {
	body, err := json.Marshal(verifyRequest{Secret: secret, Response: token, RemoteIP: remoteIP})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "encode captcha request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "build captcha request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeExternal, "captcha verification unavailable")
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeExternal, "malformed captcha response")
	}
	return out.Success, nil
}
