// Package auth exchanges app credentials for a Yotpo utoken.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

const module = "auth"

// AuthResult is the outcome of a credential exchange. ErrorResult is set
// whenever Token is empty.
type AuthResult struct {
	ErrorResult bool
	Token       string
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Client calls the authentication endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client for cfg.APIBaseURL + cfg.AuthPath.
func NewClient(cfg *config.Config) *Client {
	y := cfg.Sync.Yotpo
	path := y.AuthPath
	if path == "" {
		path = "/auth"
	}
	timeout := time.Duration(y.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(y.APIBaseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a Client posting to url with httpClient.
func NewClientWithHTTP(url string, httpClient *http.Client) *Client {
	return &Client{url: url, httpClient: httpClient}
}

// Authenticate exchanges appKey and clientSecret for a token.
//
// Missing credentials, a non-200 status and a response without a token all
// yield ErrorResult=true. Only transport failures return an error.
func (c *Client) Authenticate(ctx context.Context, appKey, clientSecret string) (AuthResult, error) {
	if appKey == "" || clientSecret == "" {
		logger.Warnf("Authentication skipped: app key or client secret is not configured.")
		return AuthResult{ErrorResult: true}, nil
	}

	body, err := json.Marshal(tokenRequest{ClientID: appKey, ClientSecret: clientSecret, GrantType: "client_credentials"})
	if err != nil {
		return AuthResult{ErrorResult: true}, exception.NewBatchError(module, "failed to encode auth request", err, false, false)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return AuthResult{ErrorResult: true}, exception.NewBatchError(module, "failed to create auth request", err, false, false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AuthResult{ErrorResult: true}, exception.NewBatchError(module, "auth request failed", err, false, exception.IsTemporary(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return AuthResult{ErrorResult: true}, exception.NewBatchError(module, "failed to read auth response", err, false, true)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Errorf("Authentication failed for app key %s: status %d", appKey, resp.StatusCode)
		return AuthResult{ErrorResult: true}, nil
	}

	var parsed tokenResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.AccessToken == "" {
		logger.Errorf("Authentication response for app key %s carries no access token.", appKey)
		return AuthResult{ErrorResult: true}, nil
	}
	logger.Debugf("Obtained access token for app key %s.", appKey)
	return AuthResult{Token: parsed.AccessToken}, nil
}
