// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import "github.com/vorlif/spreak/localize"

var labels = map[string]localize.MsgID{
	"places":        "Places",
	"place":         "Place",
	"last position": "Last position",
	"first seen":    "First seen",
	"last seen":     "Last seen",
	"track length":  "Track length",
	"sunrise":       "Sunrise",
	"sunset":        "Sunset",
	"accuracy":      "Accuracy",
}
