package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"
)

// Server is the HTTP surface the UI shell consumes. Everything visual
// happens client-side; these endpoints only expose the state owned by
// the auth manager and the route pipeline.
type Server struct {
	config    *Config
	auth      *AuthManager
	messenger *Messenger
	fetcher   *Fetcher
	index     *RouteIndex
	resolver  *Resolver
}

func NewServer(config *Config, auth *AuthManager, messenger *Messenger, fetcher *Fetcher, index *RouteIndex, resolver *Resolver) *Server {
	return &Server{
		config:    config,
		auth:      auth,
		messenger: messenger,
		fetcher:   fetcher,
		index:     index,
		resolver:  resolver,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc(s.config.RedirectPath, s.HandleRedirect).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", s.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/qr", s.HandleAuthQR).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/message", s.HandleAuthMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/status", s.HandleAuthStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/logout", s.HandleLogout).Methods(http.MethodPost)

	r.HandleFunc("/api/routes", s.requireSession(s.HandleRoutes)).Methods(http.MethodGet)
	r.HandleFunc("/api/routes/fetch", s.requireSession(s.HandleRoutesFetch)).Methods(http.MethodPost)
	r.HandleFunc("/api/routes/more", s.requireSession(s.HandleRoutesMore)).Methods(http.MethodPost)
	r.HandleFunc("/api/routes/{id}/gpx", s.requireSession(s.HandleRouteGPX)).Methods(http.MethodGet)
	r.HandleFunc("/api/years", s.requireSession(s.HandleYears)).Methods(http.MethodGet)
	r.HandleFunc("/api/years/{year}/toggle", s.requireSession(s.HandleYearToggle)).Methods(http.MethodPost)
	r.HandleFunc("/api/map/layers", s.requireSession(s.HandleLayers)).Methods(http.MethodGet)
	r.HandleFunc("/api/map/click", s.requireSession(s.HandleMapClick)).Methods(http.MethodPost)
	r.HandleFunc("/api/map/pointer", s.requireSession(s.HandleMapPointer)).Methods(http.MethodPost)
	r.HandleFunc("/api/map/cursor", s.requireSession(s.HandleMapCursor)).Methods(http.MethodGet)
	r.HandleFunc("/api/map/selected", s.requireSession(s.HandleMapSelected)).Methods(http.MethodGet)
	r.HandleFunc("/api/map/popup/close", s.requireSession(s.HandlePopupClose)).Methods(http.MethodPost)
	r.HandleFunc("/api/map/viewstate", s.requireSession(s.HandleViewState)).Methods(http.MethodGet)

	return r
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleLogin marks the authentication attempt started and hands the
// UI the authorization URL to open in a popup window.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"authorize_url": s.auth.Authenticate(),
	})
}

// HandleAuthQR serves the authorization URL as a QR code so the consent
// page can be opened on another device.
func (s *Server) HandleAuthQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(s.auth.AuthorizeURL(), qrcode.Medium, 256)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// HandleRedirect is the provider's landing page. The authorization code
// or error flag from the query string is relayed to the main window
// through the messenger; this is the only path by which the popup
// communicates back.
func (s *Server) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if code := query.Get("code"); code != "" {
		s.messenger.Post(s.config.Origin, AuthMessage{Type: MessageAuthCode, Code: code})
	} else if query.Get("error") != "" {
		s.messenger.Post(s.config.Origin, AuthMessage{Type: MessagePermissionDenied})
	}

	view := s.auth.ViewForLocation(r.URL.Path, r.URL.RawQuery)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if view == ViewFailure {
		fmt.Fprint(w, "<!DOCTYPE html><html><body>Failed to authorize Strava. Please try again.</body></html>")
		return
	}
	fmt.Fprint(w, "<!DOCTYPE html><html><body>Successfully authorized. You can close this page and return to the application.</body></html>")
}

// HandleAuthMessage is the postMessage bridge. The caller's Origin
// header is handed to the messenger, which discards anything that is
// not this app's own origin. The response is 204 either way so a
// hostile caller learns nothing.
func (s *Server) HandleAuthMessage(w http.ResponseWriter, r *http.Request) {
	var msg AuthMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.messenger.Post(r.Header.Get("Origin"), msg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	state := s.auth.State()

	resp := map[string]any{
		"view":              state.View,
		"is_authenticating": state.IsAuthenticating,
		"is_checking_token": state.IsCheckingToken,
		"authenticated":     state.View == ViewAuthenticated,
		"error":             state.Error,
	}

	if state.View == ViewAuthenticated {
		token, err := GenerateSessionToken(s.config)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "Failed to issue session token")
			return
		}
		resp["session_token"] = token
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to logout")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "logged_out",
	})
}

func (s *Server) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.index.Activities())
}

func (s *Server) HandleRoutesFetch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page int `json:"page"`
		Year int `json:"year"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}

	s.fetcher.FetchPage(r.Context(), req.Page, req.Year)

	respondJSON(w, http.StatusOK, map[string]int{
		"total": s.index.Len(),
	})
}

func (s *Server) HandleRoutesMore(w http.ResponseWriter, r *http.Request) {
	s.fetcher.FetchMore(r.Context())

	respondJSON(w, http.StatusOK, map[string]int{
		"total": s.index.Len(),
		"page":  s.fetcher.Page(),
	})
}

func (s *Server) HandleRouteGPX(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	activity, ok := s.index.ByLayerID(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown_route", "No route with that id")
		return
	}

	gpx, err := BuildGPX(&activity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to build GPX")
		return
	}

	w.Header().Set("Content-Type", "application/gpx+xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, gpx)
}

func (s *Server) HandleYears(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.index.Years())
}

func (s *Server) HandleYearToggle(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Year must be a number")
		return
	}

	if !s.index.ToggleYear(year) {
		respondError(w, http.StatusNotFound, "unknown_year", "No activities for that year")
		return
	}

	respondJSON(w, http.StatusOK, s.index.Years())
}

func (s *Server) HandleLayers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, BuildLayers(s.index.Visible()))
}

func (s *Server) HandleMapClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Layers []string `json:"layers"`
		Lng    float64  `json:"lng"`
		Lat    float64  `json:"lat"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	selected := s.resolver.Click(req.Layers, req.Lng, req.Lat)

	respondJSON(w, http.StatusOK, map[string]any{
		"selected": selected,
	})
}

func (s *Server) HandleMapPointer(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"cursor": s.resolver.PointerChange(),
	})
}

func (s *Server) HandleMapCursor(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"cursor": s.resolver.Cursor(),
	})
}

func (s *Server) HandleMapSelected(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"selected": s.resolver.Selected(),
	})
}

func (s *Server) HandlePopupClose(w http.ResponseWriter, r *http.Request) {
	s.resolver.ClosePopup()
	w.WriteHeader(http.StatusNoContent)
}

// HandleViewState serves the configured fallback center; the browser's
// own one-shot geolocation query takes precedence client-side.
func (s *Server) HandleViewState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ViewState{
		Longitude: s.config.FallbackLongitude,
		Latitude:  s.config.FallbackLatitude,
		Zoom:      s.config.FallbackZoom,
	})
}

// Helper functions

func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing authorization token")
			return
		}

		if err := ValidateSessionToken(token, s.config); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing authorization token")
			return
		}

		next(w, r)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return parts[1], nil
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
