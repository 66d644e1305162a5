package integration_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// The codes the mock consent flow accepts. Anything else is an
// invalid_grant, same as the real token endpoint.
var validCodes = map[string]bool{
	"valid_code_1": true,
	"valid_code_2": true,
}

type mockActivity struct {
	ID              int64
	Name            string
	AverageSpeed    float64
	MaxSpeed        float64
	StartDate       string
	KudosCount      int
	SummaryPolyline string
}

// Page 1 of the mock feed: five activities, three with geometry. Pages
// beyond 1 are empty so pagination terminates.
var mockFeedPage1 = []mockActivity{
	{ID: 9001, Name: "Morning Ride", AverageSpeed: 6.9, MaxSpeed: 15.2, StartDate: "2023-05-01T10:00:00Z", KudosCount: 12, SummaryPolyline: "_ibE_ibE"},
	{ID: 9002, Name: "Treadmill Run", AverageSpeed: 2.8, MaxSpeed: 3.5, StartDate: "2023-05-02T10:00:00Z"},
	{ID: 9003, Name: "Gravel Loop", AverageSpeed: 5.4, MaxSpeed: 12.1, StartDate: "2022-06-10T10:00:00Z", KudosCount: 4, SummaryPolyline: "_p~iF~ps|U_ulLnnqC"},
	{ID: 9004, Name: "Yoga", StartDate: "2023-05-04T10:00:00Z"},
	{ID: 9005, Name: "Evening Spin", AverageSpeed: 4.2, MaxSpeed: 8.3, StartDate: "2023-07-20T10:00:00Z", KudosCount: 2, SummaryPolyline: "_ibE_ibE"},
}

// MockStravaServer stands in for both the Strava token endpoint and the
// activity feed.
type MockStravaServer struct {
	server *httptest.Server

	mu            sync.Mutex
	refreshTokens map[string]bool
	exchangeCalls int
	feedCalls     int
}

func NewMockStravaServer() *MockStravaServer {
	m := &MockStravaServer{
		refreshTokens: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", m.handleToken)
	mux.HandleFunc("/api/v3/athlete/activities", m.handleActivities)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockStravaServer) URL() string {
	return m.server.URL
}

func (m *MockStravaServer) Close() {
	m.server.Close()
}

func (m *MockStravaServer) ExchangeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchangeCalls
}

func (m *MockStravaServer) FeedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feedCalls
}

func (m *MockStravaServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := make([]byte, r.ContentLength)
	r.Body.Read(body)
	params, _ := url.ParseQuery(string(body))

	expiresAt := time.Now().Add(6 * time.Hour).Unix()

	switch params.Get("grant_type") {
	case "authorization_code":
		code := params.Get("code")
		if validCodes[code] {
			refreshToken := "refresh_" + code
			m.mu.Lock()
			m.exchangeCalls++
			m.refreshTokens[refreshToken] = true
			m.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access_" + code,
				"refresh_token": refreshToken,
				"expires_at":    expiresAt,
				"token_type":    "Bearer",
			})
			return
		}

	case "refresh_token":
		refreshToken := params.Get("refresh_token")
		m.mu.Lock()
		ok := m.refreshTokens[refreshToken]
		m.mu.Unlock()

		if ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access_refreshed",
				"refresh_token": refreshToken,
				"expires_at":    expiresAt,
				"token_type":    "Bearer",
			})
			return
		}
	}

	w.WriteHeader(http.StatusBadRequest)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
}

func (m *MockStravaServer) handleActivities(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer access_") {
		w.WriteHeader(http.StatusUnauthorized)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Authorization Error"})
		return
	}

	m.mu.Lock()
	m.feedCalls++
	m.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	before, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	records := []map[string]interface{}{}
	if page <= 1 {
		for _, activity := range mockFeedPage1 {
			started, _ := time.Parse(time.RFC3339, activity.StartDate)
			if before != 0 && started.Unix() > before {
				continue
			}
			if after != 0 && started.Unix() < after {
				continue
			}
			records = append(records, map[string]interface{}{
				"id":            activity.ID,
				"name":          activity.Name,
				"average_speed": activity.AverageSpeed,
				"max_speed":     activity.MaxSpeed,
				"start_date":    activity.StartDate,
				"kudos_count":   activity.KudosCount,
				"map": map[string]string{
					"id":               "a" + strconv.FormatInt(activity.ID, 10),
					"summary_polyline": activity.SummaryPolyline,
				},
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
