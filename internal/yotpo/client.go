// Package yotpo is the outbound HTTP client of the Yotpo reviews and loyalty APIs.
// It performs single dispatches; retry decisions belong to the caller.
package yotpo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

const module = "yotpo"

// maxErrorBody bounds the response body kept on a StatusError.
const maxErrorBody = 4096

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("yotpo responded with status %d: %s", e.StatusCode, e.Body)
}

// Client posts JSON payloads below one base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. A nil httpClient gets a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Clients bundles the reviews and loyalty API clients.
type Clients struct {
	Reviews *Client
	Loyalty *Client
}

// NewClients builds both API clients from configuration. They share one
// http.Client whose timeout is yotpo.request_timeout_seconds.
func NewClients(cfg *config.Config) *Clients {
	y := cfg.Sync.Yotpo
	timeout := time.Duration(y.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Clients{
		Reviews: NewClient(y.APIBaseURL, httpClient),
		Loyalty: NewClient(y.LoyaltyBaseURL, httpClient),
	}
}

// Send posts payload as JSON to endpoint with query appended.
//
// A non-2xx response returns a *StatusError. A 2xx response is successful
// unless its body reports a non-2xx status.code or code. Transport failures
// are returned as a *exception.BatchError, retryable when temporary.
func (c *Client) Send(ctx context.Context, endpoint string, payload interface{}, query url.Values) (bool, error) {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, exception.NewBatchError(module, "failed to encode payload", err, false, false)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return false, exception.NewBatchError(module, "failed to create request", err, false, false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.ContentLength = int64(len(body))

	logger.Debugf("POST %s/%s (%d bytes)", c.baseURL, strings.TrimLeft(endpoint, "/"), len(body))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, exception.NewBatchError(module, fmt.Sprintf("request to %s failed", endpoint), err, false, exception.IsTemporary(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, exception.NewBatchError(module, fmt.Sprintf("failed to read response of %s", endpoint), err, false, true)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(respBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return false, &StatusError{StatusCode: resp.StatusCode, Body: text}
	}
	return bodyReportsSuccess(respBody), nil
}

// bodyReportsSuccess reads the SaaS status from status.code or code.
// An absent or unparsable status counts as success.
func bodyReportsSuccess(body []byte) bool {
	var parsed map[string]interface{}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &parsed) != nil {
		return true
	}
	if status, ok := parsed["status"].(map[string]interface{}); ok {
		if code, ok := statusCode(status["code"]); ok {
			return is2xx(code)
		}
	}
	if code, ok := statusCode(parsed["code"]); ok {
		return is2xx(code)
	}
	return true
}

func statusCode(v interface{}) (int, bool) {
	switch c := v.(type) {
	case float64:
		return int(c), true
	case string:
		n, err := strconv.Atoi(c)
		return n, err == nil
	default:
		return 0, false
	}
}

func is2xx(code int) bool {
	return code >= 200 && code <= 299
}
