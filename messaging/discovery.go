// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dotmatrix-chat/dotmatrix/lib/netutil"
)

// DiscoverHomeserver resolves the client-server API base URL for
// serverURL through .well-known/matrix/client. When the server
// publishes no document (or it cannot be fetched) serverURL itself is
// returned. A document that exists but is malformed, or names an
// invalid base URL, is an error. httpClient may be nil.
func DiscoverHomeserver(ctx context.Context, httpClient *http.Client, serverURL string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	serverURL = strings.TrimRight(serverURL, "/")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/.well-known/matrix/client", nil)
	if err != nil {
		return "", fmt.Errorf("messaging: building well-known request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := httpClient.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return serverURL, nil
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return serverURL, nil
	}

	var document WellKnownClient
	if err := netutil.DecodeResponse(response.Body, netutil.MaxDocumentSize, &document); err != nil {
		return "", fmt.Errorf("messaging: malformed well-known document at %s: %w", serverURL, err)
	}

	baseURL := strings.TrimRight(document.Homeserver.BaseURL, "/")
	if baseURL == "" {
		return "", fmt.Errorf("messaging: well-known document at %s has no m.homeserver.base_url", serverURL)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("messaging: well-known document at %s names invalid base_url %q", serverURL, baseURL)
	}
	return baseURL, nil
}
