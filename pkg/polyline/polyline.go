// Package polyline provides encoding and decoding utilities for Google's polyline algorithm.
// The polyline algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is wrapped by every DecodeError.
var ErrMalformed = errors.New("malformed polyline")

const (
	// precision is the fixed scale factor of the standard encoding (5 decimal places).
	precision = 1e5

	// minChunk and maxChunk bound the printable ASCII range used by the encoding.
	minChunk = 63
	maxChunk = 63 + 0x3f

	// maxShift caps a single value at 7 groups (35 bits), well past any valid degree delta.
	maxShift = 35
)

// Coordinate represents a geographic point with latitude and longitude in WGS-84 degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// DecodeError describes where and why an encoded polyline could not be decoded.
type DecodeError struct {
	Offset int    // Byte offset at which decoding failed
	Reason string // Human-readable reason
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed polyline at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// Codec is the standard precision-5 decoder as a value, for call sites that take
// the decoder as an injected capability.
type Codec struct{}

// Decode implements the decoder capability using the package-level Decode.
func (Codec) Decode(encoded string) ([]Coordinate, error) {
	return Decode(encoded)
}

// Decode decodes a polyline-encoded string into a slice of coordinates.
// The whole string must be consumed; a truncated value, a dangling latitude without
// its longitude, or a byte outside the encoding alphabet yields a *DecodeError and no
// coordinates. An empty string decodes to an empty path.
func Decode(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords := make([]Coordinate, 0, len(encoded)/4)
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, &DecodeError{Offset: next, Reason: "latitude without longitude"}
		}
		index = next
		lat += latDelta

		lonDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		index = next
		lon += lonDelta

		coords = append(coords, Coordinate{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}

	return coords, nil
}

// decodeValue decodes a single zig-zag value starting at index.
// Returns the decoded delta and the index of the next unread byte.
func decodeValue(encoded string, index int) (int, int, error) {
	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, index, &DecodeError{Offset: index, Reason: "truncated continuation sequence"}
		}
		c := encoded[index]
		if c < minChunk || c > maxChunk {
			return 0, index, &DecodeError{Offset: index, Reason: fmt.Sprintf("byte %q outside encoding range", c)}
		}
		if shift >= maxShift {
			return 0, index, &DecodeError{Offset: index, Reason: "value overflow"}
		}

		b := int(c) - minChunk
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Odd values carry the sign
	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes a slice of coordinates into a polyline-encoded string.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLon := 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * precision))
		lon := int(math.Round(coord.Lon * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

// encodeValue encodes a single integer value using the polyline algorithm.
func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+minChunk)
		value >>= 5
	}
	buf = append(buf, byte(value)+minChunk)

	return buf
}

// Length calculates the total length of a path in meters using the haversine formula.
func Length(coords []Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between two coordinates in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
