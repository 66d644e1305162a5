package core

type Config struct {
	// Server configuration
	Origin       string // Public origin of this app, e.g. http://localhost:8080
	RedirectPath string // Path the OAuth popup lands on, e.g. /redirect

	// Strava OAuth configuration
	StravaClientID     string
	StravaClientSecret string
	StravaScope        string // Read-only activity scope

	// Session token configuration
	JWTSecret            string // Secret key for signing UI session tokens
	SessionTokenDuration int    // UI session token lifetime in seconds

	// Crypto configuration
	EncryptionKey string // 32-byte key for encrypting the refresh token at rest

	// Map configuration
	FallbackLongitude float64
	FallbackLatitude  float64
	FallbackZoom      float64
}

// RedirectURI is the full redirect landing URL registered with the provider.
func (c *Config) RedirectURI() string {
	return c.Origin + c.RedirectPath
}
