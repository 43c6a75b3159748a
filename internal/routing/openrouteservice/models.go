package openrouteservice

// orsRequest is the body of a driving directions request.
type orsRequest struct {
	Coordinates       [][]float64            `json:"coordinates"`
	AlternativeRoutes *alternativeRoutesOpts `json:"alternative_routes,omitempty"`
	Options           *routeOptions          `json:"options,omitempty"`
	Instructions      bool                   `json:"instructions"`
	Units             string                 `json:"units"`
	Language          string                 `json:"language"`
}

// alternativeRoutesOpts configures alternative route generation.
type alternativeRoutesOpts struct {
	TargetCount  int     `json:"target_count"`
	WeightFactor float64 `json:"weight_factor,omitempty"`
	ShareFactor  float64 `json:"share_factor,omitempty"`
}

type routeOptions struct {
	AvoidFeatures []string `json:"avoid_features,omitempty"`
}

type orsResponse struct {
	Routes []orsRoute `json:"routes"`
}

type orsRoute struct {
	Summary  routeSummary   `json:"summary"`
	Segments []routeSegment `json:"segments,omitempty"`
	BBox     []float64      `json:"bbox,omitempty"`
	Geometry string         `json:"geometry"` // encoded polyline, precision 5
}

type routeSummary struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

type routeSegment struct {
	Steps []routeStep `json:"steps,omitempty"`
}

type routeStep struct {
	Distance float64 `json:"distance"`
	Name     string  `json:"name"`
}

type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ORS internal error codes.
const (
	orsErrorCodeNotFound         = 2009 // route not found
	orsErrorCodePointNotFound    = 2010 // point not routable
	orsErrorCodeDistanceExceeded = 2004 // request exceeds distance limits
)
