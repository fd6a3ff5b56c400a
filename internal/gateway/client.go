package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// apiClient is the small HTTP helper every adapter composes. It owns request
// encoding, response decoding and the HTTP-status-to-taxonomy translation so
// adapters only describe their wire shapes.
type apiClient struct {
	provider   string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

func newAPIClient(provider, baseURL string, headers map[string]string) *apiClient {
	return &apiClient{
		provider:   provider,
		baseURL:    baseURL,
		headers:    headers,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return NewError(c.provider, ErrCodeUnknown, fmt.Sprintf("failed to marshal request: %v", err))
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return NewError(c.provider, ErrCodeUnknown, fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{
			Provider: c.provider,
			Code:     ErrCodeGatewayUnavailable,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(c.provider, ErrCodeGatewayUnavailable, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ErrorFromHTTPStatus(c.provider, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return NewError(c.provider, ErrCodeUnknown, fmt.Sprintf("failed to decode response: %v", err))
		}
	}

	return nil
}
