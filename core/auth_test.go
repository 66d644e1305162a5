package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stanleypliu/routemapper/core"
	"github.com/stanleypliu/routemapper/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:8080"

func testConfig() *core.Config {
	return &core.Config{
		Origin:               testOrigin,
		RedirectPath:         "/redirect",
		StravaClientID:       "test_client_id",
		StravaClientSecret:   "test_client_secret",
		StravaScope:          "activity:read",
		JWTSecret:            "test-secret-key-for-testing-purposes-only",
		SessionTokenDuration: 1800,
		EncryptionKey:        storage.TestEncryptionKey,
	}
}

type stubBroker struct {
	mu            sync.Mutex
	exchangeCalls int
	refreshCalls  int
	tokens        *core.OAuthTokens
	err           error
	block         chan struct{} // when set, RefreshToken waits on it
}

func (b *stubBroker) ExchangeCode(ctx context.Context, code string) (*core.OAuthTokens, error) {
	b.mu.Lock()
	b.exchangeCalls++
	b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}
	return b.tokens, nil
}

func (b *stubBroker) RefreshToken(ctx context.Context, refreshToken string) (*core.OAuthTokens, error) {
	b.mu.Lock()
	b.refreshCalls++
	block := b.block
	b.mu.Unlock()

	if block != nil {
		<-block
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.tokens, nil
}

func (b *stubBroker) calls() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchangeCalls, b.refreshCalls
}

func freshTokens() *core.OAuthTokens {
	return &core.OAuthTokens{
		AccessToken:  "new_access_token",
		RefreshToken: "new_refresh_token",
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	}
}

func newTestAuthManager(t *testing.T, store core.SessionStore, broker core.TokenBroker) (*core.AuthManager, *core.Messenger) {
	t.Helper()

	crypto, err := core.NewCryptoService(storage.TestEncryptionKey)
	require.NoError(t, err)

	messenger := core.NewMessenger(testOrigin)
	manager := core.NewAuthManager(store, broker, crypto, messenger, testConfig(), nil)
	return manager, messenger
}

func TestAuthenticate_MarksStartAndBuildsURL(t *testing.T) {
	manager, _ := newTestAuthManager(t, storage.NewMockSessionStore(), &stubBroker{})

	url := manager.Authenticate()

	state := manager.State()
	assert.True(t, state.IsAuthenticating)
	assert.Empty(t, state.Error)
	assert.Contains(t, url, "client_id=test_client_id")
	assert.Contains(t, url, "response_type=code")
	assert.Contains(t, url, "scope=activity%3Aread")
	assert.Contains(t, url, "redirect_uri=http%3A%2F%2Flocalhost%3A8080%2Fredirect")
}

func TestAuthCodeMessage_ExchangesAndPersists(t *testing.T) {
	store := storage.NewMockSessionStore()
	broker := &stubBroker{tokens: freshTokens()}
	manager, messenger := newTestAuthManager(t, store, broker)

	manager.Start()
	defer manager.Stop()

	manager.Authenticate()
	messenger.Post(testOrigin, core.AuthMessage{Type: core.MessageAuthCode, Code: "auth_code_1"})

	require.Eventually(t, func() bool {
		return manager.State().View == core.ViewAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	state := manager.State()
	assert.False(t, state.IsAuthenticating)
	assert.Equal(t, "new_access_token", state.AccessToken)
	assert.Empty(t, state.Error)

	session, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new_access_token", session.AccessToken)
	assert.NotEqual(t, "new_refresh_token", session.RefreshToken) // encrypted at rest

	crypto, err := core.NewCryptoService(storage.TestEncryptionKey)
	require.NoError(t, err)
	decrypted, err := crypto.DecryptToken(session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "new_refresh_token", decrypted)
}

func TestPermissionDeniedMessage_SurfacesError(t *testing.T) {
	manager, messenger := newTestAuthManager(t, storage.NewMockSessionStore(), &stubBroker{})

	manager.Start()
	defer manager.Stop()

	manager.Authenticate()
	messenger.Post(testOrigin, core.AuthMessage{Type: core.MessagePermissionDenied})

	require.Eventually(t, func() bool {
		return manager.State().Error != ""
	}, 2*time.Second, 10*time.Millisecond)

	state := manager.State()
	assert.Contains(t, state.Error, "Access denied")
	assert.False(t, state.IsAuthenticating)
	assert.Equal(t, core.ViewHomeScreen, state.View)
}

func TestForeignOriginMessage_NoStateChange(t *testing.T) {
	broker := &stubBroker{tokens: freshTokens()}
	manager, messenger := newTestAuthManager(t, storage.NewMockSessionStore(), broker)

	manager.Start()
	defer manager.Stop()

	before := manager.State()
	messenger.Post("https://evil.example", core.AuthMessage{Type: core.MessageAuthCode, Code: "stolen_code"})
	messenger.Post("https://evil.example", core.AuthMessage{Type: core.MessagePermissionDenied})

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, before, manager.State())
	exchanges, refreshes := broker.calls()
	assert.Zero(t, exchanges)
	assert.Zero(t, refreshes)
}

func TestExchangeFailure_LeavesViewUnchanged(t *testing.T) {
	broker := &stubBroker{err: errors.New("status 400: invalid_grant")}
	manager, messenger := newTestAuthManager(t, storage.NewMockSessionStore(), broker)

	manager.Start()
	defer manager.Stop()

	manager.Authenticate()
	messenger.Post(testOrigin, core.AuthMessage{Type: core.MessageAuthCode, Code: "bad_code"})

	require.Eventually(t, func() bool {
		return manager.State().Error != ""
	}, 2*time.Second, 10*time.Millisecond)

	state := manager.State()
	assert.Equal(t, core.ViewHomeScreen, state.View)
	assert.False(t, state.IsAuthenticating)
}

func TestStartupCheck_FreshSessionAuthenticatesWithoutNetwork(t *testing.T) {
	store := storage.NewMockSessionStore()
	store.Seed(storage.FreshSession())
	broker := &stubBroker{tokens: freshTokens()}
	manager, _ := newTestAuthManager(t, store, broker)

	manager.StartupCheck(context.Background())

	state := manager.State()
	assert.Equal(t, core.ViewAuthenticated, state.View)
	assert.False(t, state.IsCheckingToken)
	assert.Equal(t, "stored_access_token", state.AccessToken)

	exchanges, refreshes := broker.calls()
	assert.Zero(t, exchanges)
	assert.Zero(t, refreshes)
}

func TestStartupCheck_NoSessionCompletesWithoutNetwork(t *testing.T) {
	broker := &stubBroker{}
	manager, _ := newTestAuthManager(t, storage.NewMockSessionStore(), broker)

	manager.StartupCheck(context.Background())

	state := manager.State()
	assert.Equal(t, core.ViewHomeScreen, state.View)
	assert.False(t, state.IsCheckingToken)

	exchanges, refreshes := broker.calls()
	assert.Zero(t, exchanges)
	assert.Zero(t, refreshes)
}

func TestStartupCheck_ExpiredSessionRefreshes(t *testing.T) {
	store := storage.NewMockSessionStore()
	store.Seed(storage.ExpiredSession())
	broker := &stubBroker{tokens: freshTokens()}
	manager, _ := newTestAuthManager(t, store, broker)

	manager.StartupCheck(context.Background())

	state := manager.State()
	assert.Equal(t, core.ViewAuthenticated, state.View)
	assert.False(t, state.IsCheckingToken)
	assert.Equal(t, "new_access_token", state.AccessToken)

	exchanges, refreshes := broker.calls()
	assert.Zero(t, exchanges)
	assert.Equal(t, 1, refreshes)

	session, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new_access_token", session.AccessToken)
}

func TestStartupCheck_ConcurrentTriggersRefreshOnce(t *testing.T) {
	store := storage.NewMockSessionStore()
	store.Seed(storage.ExpiredSession())
	broker := &stubBroker{tokens: freshTokens(), block: make(chan struct{})}
	manager, _ := newTestAuthManager(t, store, broker)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.StartupCheck(context.Background())
		}()
	}

	// Let both goroutines reach the exchange guard before releasing
	// the in-flight call.
	time.Sleep(100 * time.Millisecond)
	close(broker.block)
	wg.Wait()

	_, refreshes := broker.calls()
	assert.Equal(t, 1, refreshes)
}

func TestLogout_ClearsSessionAndResetsState(t *testing.T) {
	store := storage.NewMockSessionStore()
	broker := &stubBroker{tokens: freshTokens()}
	manager, messenger := newTestAuthManager(t, store, broker)

	manager.Start()
	defer manager.Stop()

	messenger.Post(testOrigin, core.AuthMessage{Type: core.MessageAuthCode, Code: "auth_code_1"})
	require.Eventually(t, func() bool {
		return manager.State().View == core.ViewAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, manager.Logout(context.Background()))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrNoSession)

	state := manager.State()
	assert.Equal(t, core.ViewHomeScreen, state.View)
	assert.Empty(t, state.AccessToken)
	assert.Empty(t, state.Error)
	assert.False(t, state.IsAuthenticating)
	assert.False(t, state.IsCheckingToken)
}

func TestViewForLocation(t *testing.T) {
	manager, _ := newTestAuthManager(t, storage.NewMockSessionStore(), &stubBroker{})

	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     core.AuthView
	}{
		{"redirect with code", "/redirect", "code=abc123", core.ViewSuccess},
		{"redirect with error", "/redirect", "error=access_denied", core.ViewFailure},
		{"home", "/", "", core.ViewHomeScreen},
		{"other page", "/about", "code=abc123", core.ViewHomeScreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, manager.ViewForLocation(tt.path, tt.rawQuery))
		})
	}
}
