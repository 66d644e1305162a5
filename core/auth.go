package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

var ErrExchangeInFlight = errors.New("token exchange already in flight")

const permissionDeniedMessage = "Access denied. You need to give Strava permission to access your activities."

// exchangeState is the single-flight guard on the token exchange. Both
// the startup expiry check and an incoming popup message can try to
// exchange at the same time; only one caller may hold the guard, the
// other is rejected with ErrExchangeInFlight.
type exchangeState int

const (
	exchangeIdle exchangeState = iota
	exchangeInFlight
)

// AuthState is the snapshot read by the UI shell.
type AuthState struct {
	View             AuthView
	IsAuthenticating bool
	IsCheckingToken  bool
	AccessToken      string
	Error            string
}

// AuthManager owns the authentication state machine. It is driven by
// the Messenger (popup results) and the TokenBroker (exchanges), and
// persists the session through the SessionStore. The cached access
// token is for rendering decisions only; the store owns the session.
type AuthManager struct {
	store     SessionStore
	broker    TokenBroker
	crypto    *CryptoService
	messenger *Messenger
	config    *Config
	logf      func(string, ...any)

	mu       sync.Mutex
	state    AuthState
	exchange exchangeState

	wg sync.WaitGroup
}

func NewAuthManager(store SessionStore, broker TokenBroker, crypto *CryptoService, messenger *Messenger, config *Config, logf func(string, ...any)) *AuthManager {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &AuthManager{
		store:     store,
		broker:    broker,
		crypto:    crypto,
		messenger: messenger,
		config:    config,
		logf:      logf,
		state: AuthState{
			View:            ViewHomeScreen,
			IsCheckingToken: true,
		},
	}
}

// Start registers the message handler for the lifetime of the manager.
func (m *AuthManager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range m.messenger.Messages() {
			m.handleMessage(context.Background(), msg)
		}
	}()
}

// Stop detaches the message listener and waits for it to drain.
func (m *AuthManager) Stop() {
	m.messenger.Close()
	m.wg.Wait()
}

// State returns a copy of the current auth state.
func (m *AuthManager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AccessToken returns the cached access token, empty when logged out.
func (m *AuthManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AccessToken
}

// SetView switches the rendered view directly, e.g. home screen to
// authenticated when a valid token is already cached.
func (m *AuthManager) SetView(view AuthView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.View = view
}

// ViewForLocation computes the initial view from the page location: a
// redirect landing page shows success or failure depending on whether
// the provider appended an error parameter, everything else starts on
// the home screen.
func (m *AuthManager) ViewForLocation(path, rawQuery string) AuthView {
	if !strings.Contains(path, m.config.RedirectPath) {
		return ViewHomeScreen
	}
	if strings.Contains(rawQuery, "error") {
		return ViewFailure
	}
	return ViewSuccess
}

// AuthorizeURL builds the provider authorization endpoint URL with a
// redirect back to this app's own landing page and the fixed read-only
// scope.
func (m *AuthManager) AuthorizeURL() string {
	params := url.Values{}
	params.Set("client_id", m.config.StravaClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", m.config.RedirectURI())
	params.Set("approval_prompt", "auto")
	params.Set("scope", m.config.StravaScope)
	return "https://www.strava.com/oauth/authorize?" + params.Encode()
}

// Authenticate marks the authentication attempt as started and returns
// the authorization URL for the UI to open in a popup. Re-invocation
// simply yields the URL again.
func (m *AuthManager) Authenticate() string {
	m.mu.Lock()
	m.state.IsAuthenticating = true
	m.state.Error = ""
	m.mu.Unlock()

	return m.AuthorizeURL()
}

func (m *AuthManager) handleMessage(ctx context.Context, msg AuthMessage) {
	switch msg.Type {
	case MessageAuthCode:
		if msg.Code == "" {
			return
		}
		if err := m.exchangeCode(ctx, msg.Code); errors.Is(err, ErrExchangeInFlight) {
			m.logf("auth message %s dropped: %v", msg.ID, err)
		}
	case MessagePermissionDenied:
		m.failAuthentication(permissionDeniedMessage)
	}
}

// StartupCheck seeds state from the persisted session once at process
// start. A complete unexpired session authenticates without any network
// call; an expired one is silently refreshed, and the outcome is
// awaited before the check is marked complete.
func (m *AuthManager) StartupCheck(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.state.IsCheckingToken = false
		m.mu.Unlock()
	}()

	session, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.logf("loading session: %v", err)
		}
		return
	}
	if !session.Complete() {
		return
	}

	m.mu.Lock()
	m.state.AccessToken = session.AccessToken
	m.mu.Unlock()

	if time.Now().Unix() >= session.ExpiresAt {
		refreshToken, err := m.crypto.DecryptToken(session.RefreshToken)
		if err != nil {
			m.logf("decrypting refresh token: %v", err)
			return
		}
		if err := m.refreshSession(ctx, refreshToken); err != nil && !errors.Is(err, ErrExchangeInFlight) {
			m.logf("startup token refresh: %v", err)
		}
		return
	}

	m.mu.Lock()
	m.state.View = ViewAuthenticated
	m.mu.Unlock()
}

// Logout clears the persisted session and resets all state to the
// initial home screen configuration.
func (m *AuthManager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	m.mu.Lock()
	m.state = AuthState{View: ViewHomeScreen}
	m.mu.Unlock()

	return nil
}

func (m *AuthManager) exchangeCode(ctx context.Context, code string) error {
	if err := m.beginExchange(); err != nil {
		return err
	}
	defer m.endExchange()

	tokens, err := m.broker.ExchangeCode(ctx, code)
	if err != nil {
		m.failAuthentication(err.Error())
		return err
	}

	return m.completeAuthentication(ctx, tokens)
}

func (m *AuthManager) refreshSession(ctx context.Context, refreshToken string) error {
	if err := m.beginExchange(); err != nil {
		return err
	}
	defer m.endExchange()

	tokens, err := m.broker.RefreshToken(ctx, refreshToken)
	if err != nil {
		m.failAuthentication(err.Error())
		return err
	}

	return m.completeAuthentication(ctx, tokens)
}

// completeAuthentication persists the exchanged tokens, with the
// refresh token encrypted at rest, and moves the machine to the
// authenticated view.
func (m *AuthManager) completeAuthentication(ctx context.Context, tokens *OAuthTokens) error {
	encrypted, err := m.crypto.EncryptToken(tokens.RefreshToken)
	if err != nil {
		m.failAuthentication(err.Error())
		return fmt.Errorf("encrypting refresh token: %w", err)
	}

	session := &Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: encrypted,
		ExpiresAt:    tokens.ExpiresAt,
	}
	if err := m.store.Save(ctx, session); err != nil {
		m.failAuthentication(err.Error())
		return fmt.Errorf("persisting session: %w", err)
	}

	m.mu.Lock()
	m.state.AccessToken = tokens.AccessToken
	m.state.View = ViewAuthenticated
	m.state.IsAuthenticating = false
	m.state.Error = ""
	m.mu.Unlock()

	return nil
}

// failAuthentication surfaces a user-facing message and clears the
// authenticating flag; the view is left unchanged so the UI stays on a
// stable pre-authenticated screen.
func (m *AuthManager) failAuthentication(message string) {
	m.mu.Lock()
	m.state.Error = message
	m.state.IsAuthenticating = false
	m.mu.Unlock()
}

func (m *AuthManager) beginExchange() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exchange == exchangeInFlight {
		return ErrExchangeInFlight
	}
	m.exchange = exchangeInFlight
	return nil
}

func (m *AuthManager) endExchange() {
	m.mu.Lock()
	m.exchange = exchangeIdle
	m.mu.Unlock()
}
