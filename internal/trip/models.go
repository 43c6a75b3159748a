// Package trip coordinates acquiring candidate driving routes for a trip and turning
// them into colored, renderable paths.
package trip

import (
	"errors"
	"strings"

	"github.com/tripmap/tripmap/pkg/polyline"
)

// Sentinel errors for trip operations.
var (
	// ErrInvalidQuery indicates the origin or destination is empty.
	ErrInvalidQuery = errors.New("origin and destination are required")
	// ErrLookupRequired indicates the live strategy was selected without a lookup.
	ErrLookupRequired = errors.New("live strategy requires a directions lookup")
	// ErrAlternativeUnavailable indicates the secondary source has no route at the requested rank.
	ErrAlternativeUnavailable = errors.New("alternative not available")
)

// RouteSummary is one candidate route as returned by the routing backend.
// Summaries are immutable once received.
type RouteSummary struct {
	Summary  string `json:"summary,omitempty"`
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Polyline string `json:"polyline"`
}

// TripQuery is the user-supplied origin and destination for one submission.
type TripQuery struct {
	Origin      string
	Destination string
}

// Validate checks that both places are present.
func (q TripQuery) Validate() error {
	if strings.TrimSpace(q.Origin) == "" || strings.TrimSpace(q.Destination) == "" {
		return ErrInvalidQuery
	}
	return nil
}

// Color is a CSS hex color used to stroke a route.
type Color string

// Palette is the fixed set of colors assigned to alternatives by rank.
type Palette []Color

// DefaultPalette is blue, green, red for the first three alternatives.
var DefaultPalette = Palette{"#0069ff", "#00b894", "#d63031"}

// ColorFor returns the color for an alternative index.
func (p Palette) ColorFor(index int) Color {
	if len(p) == 0 {
		return DefaultPalette.ColorFor(index)
	}
	if index < 0 {
		index = -index
	}
	return p[index%len(p)]
}

// ColoredRoute is a decoded alternative ready for rendering.
// Index is the position of the originating RouteSummary and never changes.
type ColoredRoute struct {
	Index    int
	Color    Color
	Path     []polyline.Coordinate
	Summary  string
	Distance string
	Duration string
}
