// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import "github.com/wneessen/geotrail/internal/geo"

// GeolocationState tracks the last position a provider emitted, so that unchanged positions
// are not reported twice.
type GeolocationState struct {
	last     geo.Coordinate
	haveLast bool
}

// HasChanged reports whether the position differs from the last emitted one. Accuracy changes
// alone do not count as a change.
func (s *GeolocationState) HasChanged(c geo.Coordinate) bool {
	if !s.haveLast {
		return true
	}
	return s.last.Lat != c.Lat || s.last.Lon != c.Lon
}

// Update stores c as the last emitted position.
func (s *GeolocationState) Update(c geo.Coordinate) {
	s.last = c
	s.haveLast = true
}
