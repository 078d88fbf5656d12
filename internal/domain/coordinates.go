package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coordinates is a WGS-84 latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both values are finite and within geographic bounds.
// Unlike placeholder-detecting checks, (0,0) is accepted.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// CoordinateKind tags which record shape a CoordinateForm was decoded from.
type CoordinateKind string

const (
	CoordinateObject CoordinateKind = "object" // "coordinates": {"latitude", "longitude"} or {"lat", "lng"}
	CoordinateFlat   CoordinateKind = "flat"   // record-level "latitude" / "longitude"
	CoordinatePair   CoordinateKind = "pair"   // "coordinates": [lat, lng]
)

// coordinatePriority is the fixed order in which shapes are tried.
var coordinatePriority = []CoordinateKind{CoordinateObject, CoordinateFlat, CoordinatePair}

// CoordinateForm is one coordinate shape found on a record. The value is
// carried as decoded; validity is only decided during resolution.
type CoordinateForm struct {
	Kind CoordinateKind `json:"kind"`
	Coordinates
}

// ResolveCoordinates returns the first valid point, trying object, flat and
// pair forms in that order. ok is false when no form holds a valid point.
func ResolveCoordinates(forms []CoordinateForm) (Coordinates, bool) {
	for _, kind := range coordinatePriority {
		for _, f := range forms {
			if f.Kind == kind && f.Valid() {
				return f.Coordinates, true
			}
		}
	}
	return Coordinates{}, false
}

// decodeCoordinateForms extracts every well-formed numeric coordinate shape
// from a raw record. Shapes holding non-numeric values are dropped.
func decodeCoordinateForms(rec RawProblemRecord) []CoordinateForm {
	var forms []CoordinateForm

	coords := bytes.TrimSpace(rec.Coordinates)
	if len(coords) > 0 {
		switch coords[0] {
		case '{':
			if c, ok := decodeObject(coords); ok {
				forms = append(forms, CoordinateForm{Kind: CoordinateObject, Coordinates: c})
			}
		case '[':
			if c, ok := decodePair(coords); ok {
				forms = append(forms, CoordinateForm{Kind: CoordinatePair, Coordinates: c})
			}
		}
	}

	lat, latOK := parseCoordinateValue(rec.Latitude)
	lng, lngOK := parseCoordinateValue(rec.Longitude)
	if latOK && lngOK {
		forms = append(forms, CoordinateForm{Kind: CoordinateFlat, Coordinates: Coordinates{Lat: lat, Lng: lng}})
	}

	return forms
}

// decodeObject reads the object shape. Each axis takes the first spelling
// that holds a usable number, so {"latitude": null, "lat": -19.7} still
// decodes.
func decodeObject(data []byte) (Coordinates, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Coordinates{}, false
	}

	lat, latOK := firstNumber(obj, "latitude", "lat")
	lng, lngOK := firstNumber(obj, "longitude", "lng", "lon")
	if !latOK || !lngOK {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lng: lng}, true
}

func decodePair(data []byte) (Coordinates, bool) {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) != 2 {
		return Coordinates{}, false
	}

	lat, latOK := parseCoordinateValue(pair[0])
	lng, lngOK := parseCoordinateValue(pair[1])
	if !latOK || !lngOK {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lng: lng}, true
}

func firstNumber(obj map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := parseCoordinateValue(obj[k]); ok {
			return v, true
		}
	}
	return 0, false
}

// parseCoordinateValue accepts a JSON number or a numeric string.
// null, booleans, non-numeric strings and non-finite values are rejected.
func parseCoordinateValue(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
