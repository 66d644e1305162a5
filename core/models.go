package core

// AuthView is the view the UI shell should be rendering.
type AuthView string

const (
	ViewHomeScreen    AuthView = "homeScreen"
	ViewAuthenticated AuthView = "authenticated"
	ViewSuccess       AuthView = "success"
	ViewFailure       AuthView = "failure"
)

// Session is the persisted Strava credential set. ExpiresAt is epoch
// seconds. RefreshToken and ExpiresAt are either both present or both
// absent.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Complete reports whether all three fields are present, which is the
// sole "is logged in" signal at startup.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != "" && s.ExpiresAt != 0
}

// OAuthTokens is the result of a token exchange with the provider.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Activity is a retained activity record from the feed. Values stay in
// feed-native units (speeds in m/s, distance in meters); display
// conversion happens at selection time. Color is synthetic, assigned
// once when the record is created, and is not part of the remote schema.
type Activity struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Distance         float64 `json:"distance"`
	AverageSpeed     float64 `json:"average_speed"`
	MaxSpeed         float64 `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"`
	StartDate        string  `json:"start_date"`
	KudosCount       int     `json:"kudos_count"`
	SummaryPolyline  string  `json:"summary_polyline"`
	Color            string  `json:"color"`
}

// YearFilter is one checkbox entry in the year filter.
type YearFilter struct {
	Year    int  `json:"year"`
	Checked bool `json:"checked"`
}

// SelectedActivity is the view model for the activity under the popup,
// paired with the click coordinate. StartDate is reformatted for display
// and the speeds are converted to km/h, rounded to integers.
type SelectedActivity struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Distance         float64 `json:"distance"`
	AverageSpeed     int     `json:"average_speed"`
	MaxSpeed         int     `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"`
	StartDate        string  `json:"start_date"`
	KudosCount       int     `json:"kudos_count"`
	Color            string  `json:"color"`
	Lng              float64 `json:"lng"`
	Lat              float64 `json:"lat"`
}

// RouteLayer is one named line source/layer handed to the map widget.
// The layer id is the activity's stable id, so hit-tested clicks map
// back to the originating record regardless of filtering order.
type RouteLayer struct {
	ID          string       `json:"id"`
	Coordinates [][2]float64 `json:"coordinates"` // [lon, lat] pairs
	Color       string       `json:"color"`
	Width       float64      `json:"width"`
}

// ViewState centers the initial map view.
type ViewState struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}
