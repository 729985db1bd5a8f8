// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dotmatrix-chat/dotmatrix/lib/netutil"
	"github.com/dotmatrix-chat/dotmatrix/lib/secret"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the homeserver, e.g.
	// "https://matrix.example.org".
	HomeserverURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is an unauthenticated Matrix client. It holds the homeserver
// URL and HTTP transport shared by every session derived from it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. The URL must be absolute with an http or
// https scheme and a host.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}

	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q must use http or https", config.HomeserverURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q has no host", config.HomeserverURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the homeserver URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Connect checks that the homeserver is reachable and speaks the
// client-server API by fetching its supported versions.
func (c *Client) Connect(ctx context.Context) (*ServerVersionsResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/versions", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: server versions failed: %w", err)
	}

	var response ServerVersionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse versions response: %w", err)
	}
	if len(response.Versions) == 0 {
		return nil, fmt.Errorf("messaging: %s advertises no client-server API versions", c.baseURL)
	}

	c.logger.Debug("connected to homeserver",
		"homeserver", c.baseURL,
		"versions", response.Versions,
	)
	return &response, nil
}

// LoginFlows returns the login flows the homeserver advertises.
func (c *Client) LoginFlows(ctx context.Context) ([]LoginFlow, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/login", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: listing login flows failed: %w", err)
	}

	var response LoginFlowsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login flows: %w", err)
	}
	return response.Flows, nil
}

// PasswordLogin holds the inputs of an m.login.password login.
type PasswordLogin struct {
	// Username is a localpart or a full user ID.
	Username string
	// Password is read but not closed; the caller retains ownership.
	Password *secret.Buffer
	// DeviceDisplayName names the new device in the user's session list.
	DeviceDisplayName string
}

// Login authenticates with a username and password.
func (c *Client) Login(ctx context.Context, request PasswordLogin) (*DirectSession, error) {
	if request.Username == "" {
		return nil, fmt.Errorf("messaging: username is required for login")
	}
	if request.Password == nil {
		return nil, fmt.Errorf("messaging: password is required for login")
	}

	// Password is converted to string at the JSON serialization boundary.
	return c.login(ctx, LoginRequest{
		Type:                     LoginTypePassword,
		Identifier:               &UserIdentifier{Type: "m.id.user", User: request.Username},
		Password:                 request.Password.String(),
		InitialDeviceDisplayName: request.DeviceDisplayName,
	})
}

// LoginToken completes a login with a short-lived m.login.token, as
// handed out at the end of an SSO round trip.
func (c *Client) LoginToken(ctx context.Context, token, deviceDisplayName string) (*DirectSession, error) {
	if token == "" {
		return nil, fmt.Errorf("messaging: login token is required")
	}
	return c.login(ctx, LoginRequest{
		Type:                     LoginTypeToken,
		Token:                    token,
		InitialDeviceDisplayName: deviceDisplayName,
	})
}

func (c *Client) login(ctx context.Context, request LoginRequest) (*DirectSession, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", nil, request)
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}

	var authResponse AuthResponse
	if err := json.Unmarshal(body, &authResponse); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login response: %w", err)
	}
	if authResponse.AccessToken == "" {
		return nil, fmt.Errorf("messaging: login response has no access token")
	}

	c.logger.Info("logged in to matrix",
		"user_id", authResponse.UserID,
		"device_id", authResponse.DeviceID,
		"login_type", request.Type,
	)

	return c.sessionFromAuth(&authResponse)
}

func (c *Client) sessionFromAuth(auth *AuthResponse) (*DirectSession, error) {
	tokenBuffer, err := secret.NewFromString(auth.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &DirectSession{
		client:      c,
		accessToken: tokenBuffer,
		userID:      auth.UserID,
		deviceID:    auth.DeviceID,
	}, nil
}

// doRequest performs an HTTP request to the homeserver and returns the
// response body. On 2xx it returns the body. On 4xx/5xx it returns the
// body together with a *MatrixError. accessToken may be nil for
// unauthenticated endpoints.
func (c *Client) doRequest(ctx context.Context, method, path string, accessToken *secret.Buffer, requestBody any, query ...url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 && query[0] != nil {
		requestURL += "?" + query[0].Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}

	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All Matrix error responses use the same JSON shape. Anything else
	// (a proxy's HTML error page) is reported with its status so that
	// callers can still classify it.
	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil || matrixErr.Code == "" {
		matrixErr = MatrixError{
			Code:    ErrCodeUnknown,
			Message: fmt.Sprintf("unexpected response from %s %s: %s", method, path, http.StatusText(response.StatusCode)),
		}
	}
	matrixErr.StatusCode = response.StatusCode

	return responseBody, &matrixErr
}
