// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package history

import (
	"time"

	"github.com/wneessen/geotrail/internal/geo"
)

// Coordinates holds the position of a Sample. Only Latitude and Longitude take part in the
// merge decision, the remaining fields are optional metadata that is stored as received.
type Coordinates struct {
	Latitude         float64  `json:"latitude" dynamodbav:"latitude"`
	Longitude        float64  `json:"longitude" dynamodbav:"longitude"`
	Accuracy         *float64 `json:"accuracy,omitempty" dynamodbav:"accuracy,omitempty"`
	Altitude         *float64 `json:"altitude,omitempty" dynamodbav:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty" dynamodbav:"altitudeAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty" dynamodbav:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty" dynamodbav:"speed,omitempty"`
}

// Sample is a single observed position.
type Sample struct {
	Coords    Coordinates `json:"coords" dynamodbav:"coords"`
	Timestamp int64       `json:"timestamp" dynamodbav:"timestamp"` // epoch milliseconds
	Mocked    bool        `json:"mocked" dynamodbav:"mocked"`
}

// History is the chronological list of stored samples.
type History struct {
	Locations []Sample `json:"locations" dynamodbav:"locations"`
}

// NewSample returns a Sample for the given position observed at t.
func NewSample(lat, lon float64, t time.Time) Sample {
	return Sample{
		Coords:    Coordinates{Latitude: lat, Longitude: lon},
		Timestamp: t.UnixMilli(),
	}
}

// Time returns the sample timestamp as time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Coordinate returns the sample position as geo.Coordinate. A missing accuracy is reported as 0.
func (s Sample) Coordinate() geo.Coordinate {
	coord := geo.Coordinate{Lat: s.Coords.Latitude, Lon: s.Coords.Longitude}
	if s.Coords.Accuracy != nil {
		coord.Acc = *s.Coords.Accuracy
	}
	return coord
}

// Empty returns an empty, non-nil History.
func Empty() History {
	return History{Locations: make([]Sample, 0)}
}

// Clone returns a copy of h that does not share its backing array. The optional metadata
// pointers are shared, they are never written through.
func (h History) Clone() History {
	locations := make([]Sample, len(h.Locations))
	copy(locations, h.Locations)
	return History{Locations: locations}
}

// Len returns the number of stored samples.
func (h History) Len() int {
	return len(h.Locations)
}

// First returns the oldest sample, if any.
func (h History) First() (Sample, bool) {
	if len(h.Locations) == 0 {
		return Sample{}, false
	}
	return h.Locations[0], true
}

// Last returns the most recent sample, if any.
func (h History) Last() (Sample, bool) {
	if len(h.Locations) == 0 {
		return Sample{}, false
	}
	return h.Locations[len(h.Locations)-1], true
}

// TrackLength returns the sum of the distances between consecutive samples in meters.
func (h History) TrackLength() float64 {
	var total float64
	for i := 1; i < len(h.Locations); i++ {
		prev, cur := h.Locations[i-1].Coords, h.Locations[i].Coords
		total += geo.Distance(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	}
	return total
}

// Float returns a pointer to v, for filling the optional Coordinates fields.
func Float(v float64) *float64 {
	return &v
}
