package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stanleypliu/routemapper/core"
)

type ClientConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	OAuthBaseURL string `yaml:"oauth_base_url"`
	APIBaseURL   string `yaml:"api_base_url"`
}

// Client talks to the Strava token endpoint and activity feed. It
// implements core.TokenBroker and core.ActivityFeed. No retries
// anywhere; every failure is terminal for that attempt.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

func NewClient(config *ClientConfig) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

// feedActivity is the wire shape of one activity record.
type feedActivity struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Distance         float64 `json:"distance"`
	AverageSpeed     float64 `json:"average_speed"`
	MaxSpeed         float64 `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"`
	StartDate        string  `json:"start_date"`
	KudosCount       int     `json:"kudos_count"`
	Map              struct {
		ID              string `json:"id"`
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
}

func (c *Client) ExchangeCode(ctx context.Context, code string) (*core.OAuthTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	return c.exchange(ctx, data)
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*core.OAuthTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	return c.exchange(ctx, data)
}

func (c *Client) exchange(ctx context.Context, data url.Values) (*core.OAuthTokens, error) {
	data.Set("client_id", c.config.ClientID)
	data.Set("client_secret", c.config.ClientSecret)

	tokenURL := c.config.OAuthBaseURL + "/oauth/token"
	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		tokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTokenExchange, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrTokenExchange, resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTokenExchange, err)
	}

	return &core.OAuthTokens{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    tokenResp.ExpiresAt,
	}, nil
}

// Activities fetches one page of the athlete's activity feed. before
// and after are Unix-second bounds applied server-side; zero means
// unbounded.
func (c *Client) Activities(ctx context.Context, accessToken string, page int, before, after int64) ([]core.Activity, error) {
	feedURL, err := url.Parse(c.config.APIBaseURL + "/api/v3/athlete/activities")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrActivityFetch, err)
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if before != 0 {
		params.Set("before", strconv.FormatInt(before, 10))
	}
	if after != 0 {
		params.Set("after", strconv.FormatInt(after, 10))
	}
	feedURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", feedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrActivityFetch, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrActivityFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrActivityFetch, resp.StatusCode, string(body))
	}

	var feed []feedActivity
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrActivityFetch, err)
	}

	activities := make([]core.Activity, 0, len(feed))
	for _, record := range feed {
		activities = append(activities, core.Activity{
			ID:               record.ID,
			Name:             record.Name,
			Distance:         record.Distance,
			AverageSpeed:     record.AverageSpeed,
			MaxSpeed:         record.MaxSpeed,
			AverageHeartrate: record.AverageHeartrate,
			StartDate:        record.StartDate,
			KudosCount:       record.KudosCount,
			SummaryPolyline:  record.Map.SummaryPolyline,
		})
	}

	return activities, nil
}
