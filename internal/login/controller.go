// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dotmatrix-chat/dotmatrix/lib/config"
	"github.com/dotmatrix-chat/dotmatrix/lib/secret"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// Config holds configuration for creating a Controller.
type Config struct {
	// HTTPClient is used for every homeserver request. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// DeviceDisplayName is sent with every login.
	DeviceDisplayName string

	// SSOProviders decides the fate of SSO flows that list identity
	// providers.
	SSOProviders config.SSOProviderPolicy

	// SSOListenAddress is the loopback address of the SSO callback
	// server.
	SSOListenAddress string

	// WellKnown enables .well-known lookups for bare host names.
	WellKnown bool

	// OpenURL opens the SSO page. Nil uses the system browser.
	OpenURL func(string) error
}

// discoveryResult is one message on the discovery slot. Client is set
// with the Resolved state.
type discoveryResult struct {
	state  DiscoveryState
	client *messaging.Client
}

// loginResult is one message on the login slot. Session is set with the
// Succeeded state.
type loginResult struct {
	state   LoginState
	session *messaging.DirectSession
}

// slot is a background operation's reporting channel and the cancel
// function of its context. Capacity must cover every message the
// operation sends, so the sender never blocks.
type slot[T any] struct {
	channel chan T
	cancel  context.CancelFunc
}

func (s *slot[T]) restart(parent context.Context, capacity int) (context.Context, chan<- T) {
	s.stop()
	ctx, cancel := context.WithCancel(parent)
	s.channel = make(chan T, capacity)
	s.cancel = cancel
	return ctx, s.channel
}

func (s *slot[T]) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.channel = nil
	s.cancel = nil
}

// Controller is the login flow state machine. All methods must be
// called from the UI goroutine; only the slot channels cross goroutines.
type Controller struct {
	config Config
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	homeserver string
	username   string

	discovery DiscoveryState
	login     LoginState

	// client is the unauthenticated connection from the last successful
	// discovery; session the authenticated result of login.
	client  *messaging.Client
	session *messaging.DirectSession

	discoverySlot slot[discoveryResult]
	loginSlot     slot[loginResult]
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SSOProviders == "" {
		cfg.SSOProviders = config.SSOExpand
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		config: cfg,
		logger: cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Discovery returns the discovery state.
func (c *Controller) Discovery() DiscoveryState { return c.discovery }

// Login returns the login state.
func (c *Controller) Login() LoginState { return c.login }

// Homeserver returns the homeserver input of the last discovery.
func (c *Controller) Homeserver() string { return c.homeserver }

// Username returns the username of the last login attempt.
func (c *Controller) Username() string { return c.username }

// Connected reports whether discovery has produced a connection.
func (c *Controller) Connected() bool { return c.client != nil }

// CanSubmitHomeserver reports whether a homeserver submission would
// start discovery: not while one is already resolving, and not while a
// password login is running. A pending SSO login may be abandoned.
func (c *Controller) CanSubmitHomeserver() bool {
	return !c.discovery.InFlight() && c.login.Status != LoginInProgress
}

// CanSubmitLogin reports whether a login submission would be accepted:
// a connection exists and no login is running or done.
func (c *Controller) CanSubmitLogin() bool {
	return c.client != nil && !c.login.InFlight() && c.login.Status != LoginSucceeded
}

// SubmitHomeserver starts discovery unless one is in flight. It reports
// whether discovery started.
func (c *Controller) SubmitHomeserver(homeserver string) bool {
	if !c.CanSubmitHomeserver() {
		return false
	}
	c.StartDiscovery(homeserver)
	return true
}

// StartDiscovery resolves homeserver and lists its login methods in the
// background. Any in-flight discovery or login is cancelled and its
// result discarded. The previous connection is dropped.
func (c *Controller) StartDiscovery(homeserver string) {
	c.homeserver = homeserver
	c.client = nil
	c.loginSlot.stop()
	c.releaseSession()
	c.login = LoginState{Status: LoginIdle}
	c.discovery = DiscoveryState{Status: DiscoveryResolving}

	// Enumerating, then Resolved or Failed.
	ctx, results := c.discoverySlot.restart(c.ctx, 2)
	go c.discover(ctx, homeserver, results)
}

// SubmitPassword logs in with m.login.password in the background. It
// reports whether the submission was accepted (see CanSubmitLogin).
func (c *Controller) SubmitPassword(username, password string) bool {
	if !c.CanSubmitLogin() {
		return false
	}
	c.username = username
	c.login = LoginState{Status: LoginInProgress}

	client := c.client
	request := messaging.PasswordLogin{
		Username:          strings.TrimSpace(username),
		DeviceDisplayName: c.config.DeviceDisplayName,
	}
	ctx, results := c.loginSlot.restart(c.ctx, 1)
	go func() {
		buffer, err := secret.NewFromString(password)
		if err != nil {
			results <- failedLogin(err)
			return
		}
		defer buffer.Close()
		request.Password = buffer
		session, err := client.Login(ctx, request)
		c.finishLogin(ctx, results, session, err)
	}()
	return true
}

// SubmitSSO logs in through the browser in the background. The state
// is AwaitingVerification until the browser returns. It reports whether
// the submission was accepted.
func (c *Controller) SubmitSSO(method Method) bool {
	if method.Kind != MethodSSO || !c.CanSubmitLogin() {
		return false
	}
	c.login = LoginState{Status: LoginAwaitingVerification}

	client := c.client
	request := messaging.SSOLogin{
		DeviceDisplayName: c.config.DeviceDisplayName,
		OpenURL:           c.config.OpenURL,
		ListenAddress:     c.config.SSOListenAddress,
	}
	if method.Provider != nil {
		request.IdentityProviderID = method.Provider.ID
	}
	ctx, results := c.loginSlot.restart(c.ctx, 1)
	go func() {
		session, err := client.LoginSSO(ctx, request)
		c.finishLogin(ctx, results, session, err)
	}()
	return true
}

// Poll applies at most one pending result from each slot. It never
// blocks and does nothing when no result is pending.
func (c *Controller) Poll() {
	select {
	case result := <-c.discoverySlot.channel:
		c.discovery = result.state
		if result.client != nil {
			c.client = result.client
		}
		if result.state.Status == DiscoveryResolved || result.state.Status == DiscoveryFailed {
			c.discoverySlot.stop()
		}
	default:
	}

	select {
	case result := <-c.loginSlot.channel:
		c.login = result.state
		if result.session != nil {
			c.releaseSession()
			c.session = result.session
		}
		c.loginSlot.stop()
	default:
	}
}

// Ready reports whether login has succeeded.
func (c *Controller) Ready() bool {
	return c.login.Status == LoginSucceeded
}

// TakeSession hands over the authenticated session. It returns nil on
// every call after the first, and before login succeeds.
func (c *Controller) TakeSession() *messaging.DirectSession {
	session := c.session
	c.session = nil
	return session
}

// Close cancels every background operation and releases a session that
// was never taken.
func (c *Controller) Close() {
	c.discoverySlot.stop()
	c.loginSlot.stop()
	c.cancel()
	c.releaseSession()
}

func (c *Controller) releaseSession() {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
}

func (c *Controller) discover(ctx context.Context, homeserver string, results chan<- discoveryResult) {
	fail := func(kind FailureKind, message string, err error) {
		results <- discoveryResult{state: DiscoveryState{
			Status:  DiscoveryFailed,
			Failure: &Failure{Kind: kind, Message: message, Err: err},
		}}
	}

	target, bareHost, err := homeserverURL(homeserver)
	if err != nil {
		fail(InvalidAddress, err.Error(), err)
		return
	}

	baseURL := target.String()
	if bareHost && c.config.WellKnown {
		discovered, err := messaging.DiscoverHomeserver(ctx, c.config.HTTPClient, baseURL)
		if err != nil {
			fail(HostUnreachable, err.Error(), err)
			return
		}
		baseURL = discovered
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: baseURL,
		HTTPClient:    c.config.HTTPClient,
		Logger:        c.logger,
	})
	if err != nil {
		fail(InvalidAddress, err.Error(), err)
		return
	}

	if _, err := client.Connect(ctx); err != nil {
		fail(HostUnreachable, messaging.ServerMessage(err), err)
		return
	}

	results <- discoveryResult{state: DiscoveryState{Status: DiscoveryEnumeratingMethods}}

	flows, err := client.LoginFlows(ctx)
	if err != nil {
		fail(MethodEnumerationFailed, messaging.ServerMessage(err), err)
		return
	}

	methods := FilterMethods(flows, c.config.SSOProviders)
	c.logger.Info("homeserver discovered",
		"homeserver", client.BaseURL(),
		"flows", len(flows),
		"methods", len(methods),
	)
	results <- discoveryResult{
		state:  DiscoveryState{Status: DiscoveryResolved, Methods: methods},
		client: client,
	}
}

// finishLogin reports a login outcome. A session that arrives after its
// slot was cancelled is closed rather than reported.
func (c *Controller) finishLogin(ctx context.Context, results chan<- loginResult, session *messaging.DirectSession, err error) {
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("login failed", "error", err)
		}
		results <- failedLogin(err)
		return
	}
	if ctx.Err() != nil {
		session.Close()
		return
	}
	results <- loginResult{state: LoginState{Status: LoginSucceeded}, session: session}
}

func failedLogin(err error) loginResult {
	return loginResult{state: LoginState{
		Status:  LoginFailed,
		Failure: &Failure{Kind: AuthenticationFailed, Message: messaging.ServerMessage(err), Err: err},
	}}
}

// homeserverURL builds the connection target for user input. Input
// without a scheme is taken as a host name and served over https.
func homeserverURL(input string) (target *url.URL, bareHost bool, err error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, false, fmt.Errorf("empty homeserver address")
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
		bareHost = true
	}

	target, err = url.Parse(trimmed)
	if err != nil {
		return nil, false, fmt.Errorf("%q is not a valid URL", input)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, false, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}
	if target.Hostname() == "" {
		return nil, false, fmt.Errorf("%q has no host", input)
	}
	target.Path = strings.TrimRight(target.Path, "/")
	target.RawPath = strings.TrimRight(target.RawPath, "/")
	if bareHost && (target.Path != "" || target.RawQuery != "") {
		bareHost = false
	}
	target.RawQuery = ""
	target.Fragment = ""
	return target, bareHost, nil
}
