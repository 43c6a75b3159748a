package models

// RouteOption is one distinct driving route.
type RouteOption struct {
	Summary  string `json:"summary"`
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Polyline string `json:"polyline"`
}

// RoutesResponse is the body of GET /routes.
type RoutesResponse struct {
	Routes []RouteOption `json:"routes"`
	// Mode is "intercity" or "lastmile".
	Mode       string  `json:"mode,omitempty"`
	DistanceKm float64 `json:"distanceKm,omitempty"`
}
