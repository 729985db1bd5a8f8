// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/browser"
)

// SSOLogin holds the inputs of a browser single sign-on login.
type SSOLogin struct {
	// IdentityProviderID selects an upstream provider. Empty lets the
	// homeserver choose.
	IdentityProviderID string

	// DeviceDisplayName names the new device in the user's session list.
	DeviceDisplayName string

	// OpenURL shows the homeserver's SSO page to the user. Nil opens
	// the system browser.
	OpenURL func(string) error

	// ListenAddress is the loopback address of the callback server.
	// Empty means 127.0.0.1 on a free port.
	ListenAddress string
}

const ssoCallbackPath = "/sso-callback"

const ssoCompletePage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Dotmatrix</title></head>
<body><p>Login complete. You can close this window and return to the terminal.</p></body>
</html>
`

// SSORedirectURL returns the homeserver URL that starts an SSO login
// and sends the browser back to redirectURL with a loginToken query
// parameter.
func (c *Client) SSORedirectURL(identityProviderID, redirectURL string) string {
	path := "/_matrix/client/v3/login/sso/redirect"
	if identityProviderID != "" {
		path += "/" + url.PathEscape(identityProviderID)
	}
	return c.baseURL + path + "?" + url.Values{"redirectUrl": {redirectURL}}.Encode()
}

// LoginSSO runs a browser SSO round trip. It starts a loopback
// callback server, opens the homeserver's SSO page, waits for the
// browser to return with a login token, and exchanges the token for a
// session with m.login.token. Cancelling ctx abandons the wait.
//
// When the page cannot be opened the URL is logged at warn level so
// that the user can open it by hand.
func (c *Client) LoginSSO(ctx context.Context, request SSOLogin) (*DirectSession, error) {
	address := request.ListenAddress
	if address == "" {
		address = "127.0.0.1:0"
	}
	openURL := request.OpenURL
	if openURL == nil {
		openURL = browser.OpenURL
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("messaging: starting sso callback server: %w", err)
	}

	tokens := make(chan string, 1)
	server := &http.Server{
		Handler:           ssoCallbackRouter(tokens),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Warn("sso callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-serveDone
	}()

	callbackURL := "http://" + listener.Addr().String() + ssoCallbackPath
	redirect := c.SSORedirectURL(request.IdentityProviderID, callbackURL)

	c.logger.Info("starting sso login",
		"identity_provider", request.IdentityProviderID,
		"callback", callbackURL,
	)
	if err := openURL(redirect); err != nil {
		c.logger.Warn("could not open a browser, open this URL to continue", "url", redirect, "error", err)
	}

	var token string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("messaging: sso login abandoned: %w", ctx.Err())
	case token = <-tokens:
	}

	return c.LoginToken(ctx, token, request.DeviceDisplayName)
}

// ssoCallbackRouter accepts the browser's return from the homeserver.
// The first token wins; later callbacks are acknowledged and ignored.
func ssoCallbackRouter(tokens chan<- string) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.NoCache)
	router.Get(ssoCallbackPath, func(writer http.ResponseWriter, request *http.Request) {
		token := request.URL.Query().Get("loginToken")
		if token == "" {
			http.Error(writer, "missing loginToken", http.StatusBadRequest)
			return
		}
		select {
		case tokens <- token:
		default:
		}
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(writer, ssoCompletePage)
	})
	return router
}
