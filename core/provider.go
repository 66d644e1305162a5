package core

import (
	"context"
	"errors"
)

var (
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrActivityFetch    = errors.New("activity fetch failed")
	ErrPermissionDenied = errors.New("permission denied by user")
)

// TokenBroker performs the authorization-code / refresh-token exchange
// against the provider's token endpoint. Pure request/response, no
// retries; retry policy belongs to the caller.
type TokenBroker interface {
	ExchangeCode(ctx context.Context, code string) (*OAuthTokens, error)

	RefreshToken(ctx context.Context, refreshToken string) (*OAuthTokens, error)
}

// ActivityFeed is the paginated remote activity feed. before and after
// are Unix-second bounds; zero means unbounded.
type ActivityFeed interface {
	Activities(ctx context.Context, accessToken string, page int, before, after int64) ([]Activity, error)
}
