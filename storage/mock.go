package storage

import (
	"context"
	"sync"
	"time"

	"github.com/stanleypliu/routemapper/core"
)

// TestEncryptionKey is the 32-byte key test fixtures are encrypted
// with.
const TestEncryptionKey = "12345678901234567890123456789012"

func testEncrypt(plaintext string) string {
	crypto, _ := core.NewCryptoService(TestEncryptionKey)
	encrypted, _ := crypto.EncryptToken(plaintext)
	return encrypted
}

// FreshSession is a complete session whose access token is still valid.
func FreshSession() *core.Session {
	return &core.Session{
		AccessToken:  "stored_access_token",
		RefreshToken: testEncrypt("stored_refresh_token"),
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	}
}

// ExpiredSession is a complete session past its expiry.
func ExpiredSession() *core.Session {
	return &core.Session{
		AccessToken:  "stale_access_token",
		RefreshToken: testEncrypt("stored_refresh_token"),
		ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
	}
}

// MockSessionStore is the in-memory store used by tests and by the
// mock db type.
type MockSessionStore struct {
	mu      sync.Mutex
	session *core.Session

	SaveErr error // when set, Save fails with this error
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{}
}

// Seed installs a session without going through Save validation.
func (s *MockSessionStore) Seed(session *core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *MockSessionStore) Load(ctx context.Context) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, core.ErrNoSession
	}
	session := *s.session
	return &session, nil
}

func (s *MockSessionStore) Save(ctx context.Context, session *core.Session) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if err := validateSession(session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *session
	s.session = &saved
	return nil
}

func (s *MockSessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
