package integration_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "modernc.org/sqlite"
)

type LoginResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

type StatusResponse struct {
	View             string `json:"view"`
	IsAuthenticating bool   `json:"is_authenticating"`
	IsCheckingToken  bool   `json:"is_checking_token"`
	Authenticated    bool   `json:"authenticated"`
	Error            string `json:"error"`
	SessionToken     string `json:"session_token"`
}

type ActivityResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	StartDate       string `json:"start_date"`
	SummaryPolyline string `json:"summary_polyline"`
	Color           string `json:"color"`
}

type YearResponse struct {
	Year    int  `json:"year"`
	Checked bool `json:"checked"`
}

type LayerResponse struct {
	ID          string       `json:"id"`
	Coordinates [][2]float64 `json:"coordinates"`
	Color       string       `json:"color"`
	Width       float64      `json:"width"`
}

type SelectedResponse struct {
	Selected *struct {
		ID           int64   `json:"id"`
		Name         string  `json:"name"`
		AverageSpeed int     `json:"average_speed"`
		MaxSpeed     int     `json:"max_speed"`
		StartDate    string  `json:"start_date"`
		Lng          float64 `json:"lng"`
		Lat          float64 `json:"lat"`
	} `json:"selected"`
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func login(baseURL string) (*LoginResponse, error) {
	resp, err := httpClient.Post(baseURL+"/api/auth/login", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var result LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// completeConsent plays the popup's role: it lands on the redirect page
// with the authorization code, which relays it to the main window.
func completeConsent(baseURL, code string) (*http.Response, error) {
	return httpClient.Get(baseURL + "/redirect?code=" + code + "&scope=activity:read")
}

func denyConsent(baseURL string) (*http.Response, error) {
	return httpClient.Get(baseURL + "/redirect?error=access_denied")
}

func postAuthMessage(baseURL, origin string, payload map[string]string) (*http.Response, error) {
	jsonBody, _ := json.Marshal(payload)

	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/auth/message", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	return httpClient.Do(req)
}

func getStatus(baseURL string) (*StatusResponse, error) {
	resp, err := httpClient.Get(baseURL + "/api/auth/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func waitForAuthenticated(baseURL string, maxAttempts int) (*StatusResponse, error) {
	for i := 0; i < maxAttempts; i++ {
		status, err := getStatus(baseURL)
		if err == nil && status.Authenticated {
			return status, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("not authenticated after %d attempts", maxAttempts)
}

func waitForAuthError(baseURL string, maxAttempts int) (*StatusResponse, error) {
	for i := 0; i < maxAttempts; i++ {
		status, err := getStatus(baseURL)
		if err == nil && status.Error != "" {
			return status, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("no auth error after %d attempts", maxAttempts)
}

func doAuthorized(method, url, sessionToken string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken)
	}
	return httpClient.Do(req)
}

func decodeResponse(resp *http.Response, dest any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

func logout(baseURL string) (*http.Response, error) {
	return httpClient.Post(baseURL+"/api/auth/logout", "application/json", nil)
}

func countSessionRows(dbPath string) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM session").Scan(&count)
	return count, err
}

func sessionValue(dbPath, key string) (string, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var value string
	err = db.QueryRow("SELECT value FROM session WHERE key = ?", key).Scan(&value)
	return value, err
}

func waitForServer(baseURL string, maxAttempts int) error {
	client := &http.Client{Timeout: 1 * time.Second}
	for i := 0; i < maxAttempts; i++ {
		resp, err := client.Get(baseURL + "/health")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("server failed to start after %d attempts", maxAttempts)
}
