// Package render draws colored trip routes as GeoJSON feature collections that
// any web map can overlay.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tripmap/tripmap/internal/trip"
)

// Stroke styling applied to every route.
const (
	DefaultStrokeOpacity = 0.9
	DefaultStrokeWeight  = 4
)

// Viewport is the map view shown when there is nothing to fit.
type Viewport struct {
	Center orb.Point // [lng, lat]
	Zoom   int
}

// DefaultViewport centers on Riyadh.
var DefaultViewport = Viewport{Center: orb.Point{46.6753, 24.7136}, Zoom: 6}

// Style holds stroke settings for route overlays.
type Style struct {
	Opacity float64
	Weight  int
}

// Config holds configuration for the GeoJSON renderer.
type Config struct {
	Style       Style
	Placeholder Viewport
	Indent      bool
}

// GeoJSONRenderer implements trip.Renderer by writing one FeatureCollection per call.
type GeoJSONRenderer struct {
	w      io.Writer
	style  Style
	view   Viewport
	indent bool

	mu   sync.Mutex
	last *geojson.FeatureCollection
}

// NewGeoJSONRenderer creates a renderer writing to w. Zero config fields take defaults.
func NewGeoJSONRenderer(w io.Writer, cfg Config) *GeoJSONRenderer {
	style := cfg.Style
	if style.Opacity == 0 {
		style.Opacity = DefaultStrokeOpacity
	}
	if style.Weight == 0 {
		style.Weight = DefaultStrokeWeight
	}

	view := cfg.Placeholder
	if view.Zoom == 0 {
		view = DefaultViewport
	}

	return &GeoJSONRenderer{w: w, style: style, view: view, indent: cfg.Indent}
}

// Render writes routes as LineString features fitted by a bbox. With no routes
// it writes an empty collection carrying the placeholder center and zoom.
func (r *GeoJSONRenderer) Render(routes []trip.ColoredRoute) error {
	fc := Collection(routes, r.style, r.view)

	var (
		data []byte
		err  error
	)
	if r.indent {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = json.Marshal(fc)
	}
	if err != nil {
		return fmt.Errorf("encoding routes: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = fc

	if r.w == nil {
		return nil
	}
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing routes: %w", err)
	}
	return nil
}

// Last returns the most recently rendered collection, or nil.
func (r *GeoJSONRenderer) Last() *geojson.FeatureCollection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Collection builds the feature collection for routes.
func Collection(routes []trip.ColoredRoute, style Style, placeholder Viewport) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	var bound orb.Bound
	fitted := false

	for _, route := range routes {
		if len(route.Path) == 0 {
			continue
		}

		line := make(orb.LineString, 0, len(route.Path))
		for _, c := range route.Path {
			line = append(line, orb.Point{c.Lon, c.Lat})
		}

		f := geojson.NewFeature(line)
		f.Properties["index"] = route.Index
		f.Properties["stroke"] = string(route.Color)
		f.Properties["stroke-opacity"] = style.Opacity
		f.Properties["stroke-width"] = style.Weight
		if route.Summary != "" {
			f.Properties["summary"] = route.Summary
		}
		if route.Distance != "" {
			f.Properties["distance"] = route.Distance
		}
		if route.Duration != "" {
			f.Properties["duration"] = route.Duration
		}
		fc.Append(f)

		if !fitted {
			bound = line.Bound()
			fitted = true
		} else {
			bound = bound.Union(line.Bound())
		}
	}

	if !fitted {
		fc.ExtraMembers = geojson.Properties{
			"center": []float64{placeholder.Center.Lon(), placeholder.Center.Lat()},
			"zoom":   placeholder.Zoom,
		}
		return fc
	}

	fc.BBox = geojson.NewBBox(bound)
	center := bound.Center()
	fc.ExtraMembers = geojson.Properties{
		"center": []float64{center.Lon(), center.Lat()},
	}
	return fc
}
