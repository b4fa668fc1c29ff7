// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode resolves positions of the location history to human readable places.
package geocode

import (
	"context"

	"github.com/wneessen/geotrail/internal/geo"
)

type Address struct {
	AddressFound bool
	CacheHit     bool
	Latitude     float64
	Longitude    float64
	DisplayName  string
	Country      string
	State        string
	Postcode     string
	City         string
	Suburb       string
	Street       string
	HouseNumber  string
}

type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coords geo.Coordinate) (Address, error)
}

// Label returns a short name for the address: "Suburb, City" where available, otherwise the
// most specific part that is known.
func (a Address) Label() string {
	switch {
	case !a.AddressFound:
		return ""
	case a.Suburb != "" && a.City != "":
		return a.Suburb + ", " + a.City
	case a.City != "":
		return a.City
	case a.State != "":
		return a.State
	case a.Country != "":
		return a.Country
	default:
		return a.DisplayName
	}
}
