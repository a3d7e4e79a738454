// Package venue implements the provider adapters consumed by the flash
// engine: REST clients for remote lending and swap venues and the price
// oracle, plus a cache-fronted oracle decorator. Deterministic in-process
// counterparts for paper trading and tests live in venue/sim.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/flashlend/internal/crypto"
)

// restClient is the shared plumbing for venue REST adapters: base URL,
// request authentication, and JSON request/response handling.
type restClient struct {
	baseURL    string
	auth       crypto.RequestAuth
	httpClient *http.Client
}

func newRESTClient(baseURL string, auth crypto.RequestAuth) restClient {
	return restClient{
		baseURL: baseURL,
		auth:    auth,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// doJSON issues one request and decodes the response body into out (when out
// is non-nil). Non-2xx responses are returned as errors carrying the body.
func (c *restClient) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	var payload []byte
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("venue: encode request: %w", err)
		}
		payload = data
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("venue: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(method, path, string(payload)) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("venue: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("venue: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("venue: %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("venue: decode response: %w", err)
		}
	}
	return nil
}
