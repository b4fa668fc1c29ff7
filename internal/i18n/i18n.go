// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/Xuanwo/go-locale"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"
)

const domain = "geotrail"

//go:embed locale/*
var locales embed.FS

// Locale holds the resolved language and the message catalog for it.
type Locale struct {
	Tag       language.Tag
	Localizer *spreak.Localizer
}

// New resolves the configured locale and loads the matching message catalog. Languages without
// a catalog fall back to the English source messages.
func New(loc string) (*Locale, error) {
	tag := Tag(loc)

	localeFS, err := fs.Sub(locales, "locale")
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}

	bundle, err := spreak.NewBundle(
		spreak.WithSourceLanguage(language.English),
		spreak.WithFallbackLanguage(language.English),
		spreak.WithDefaultDomain(domain),
		spreak.WithDomainFs(domain, localeFS),
		spreak.WithLanguage(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create i18n bundle: %w", err)
	}
	return &Locale{Tag: tag, Localizer: spreak.NewLocalizer(bundle, tag)}, nil
}

// Tag resolves the configured locale to a language tag. An empty or unparsable locale falls back
// to the system locale, and English when that cannot be detected either.
func Tag(loc string) language.Tag {
	if loc != "" {
		if tag, err := language.Parse(loc); err == nil {
			return tag
		}
	}
	tag, err := locale.Detect()
	if err != nil {
		return language.English
	}
	return tag
}
