// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/i18n"
)

const (
	OutputClass = "geotrail"
	EmptyClass  = "empty"
	MockedClass = "mocked"

	IconEmpty    = "❔"
	IconPosition = "📍"
	IconMocked   = "📌"
)

var (
	ErrNoConfig = errors.New("presenter requires a config")
	ErrNoLocale = errors.New("presenter requires a locale")
)

// TemplateContext is what the text and tooltip templates are rendered with.
type TemplateContext struct {
	Count     int
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Mocked    bool
	Place     string

	FirstSeen   time.Time
	LastSeen    time.Time
	TrackLength float64
	Threshold   float64

	SunriseTime time.Time
	SunsetTime  time.Time
	IsDaytime   bool

	Icon          string
	IconWithSpace string
}

// Output is the JSON object waybar expects from a custom module.
type Output struct {
	Text    string   `json:"text"`
	Tooltip string   `json:"tooltip"`
	Classes []string `json:"class"`
}

type Presenter struct {
	text      *template.Template
	tooltip   *template.Template
	humanizer *humanize.Humanizer
	localizer *spreak.Localizer
	threshold float64
	now       func() time.Time
}

// New parses the configured templates and checks that they render against a sample context.
func New(conf *config.Config, loc *i18n.Locale) (*Presenter, error) {
	if conf == nil {
		return nil, ErrNoConfig
	}
	if loc == nil || loc.Localizer == nil {
		return nil, ErrNoLocale
	}

	threshold, ok := conf.Threshold().Get()
	if !ok {
		threshold = history.DefaultDistanceThreshold
	}

	collection := humanize.MustNew(humanize.WithLocale(de.New()))
	pres := &Presenter{
		humanizer: collection.CreateHumanizer(loc.Tag),
		localizer: loc.Localizer,
		threshold: threshold,
		now:       time.Now,
	}

	var err error
	if pres.text, err = template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text); err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	if pres.tooltip, err = template.New("tooltip").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Tooltip); err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}

	sample := history.History{Locations: []history.Sample{
		history.NewSample(52.520008, 13.404954, pres.now()),
	}}
	if _, err = pres.Render(pres.BuildContext(sample)); err != nil {
		return nil, err
	}

	return pres, nil
}

// BuildContext summarizes the history for rendering. The position fields describe the last entry.
func (p *Presenter) BuildContext(hist history.History) TemplateContext {
	ctx := TemplateContext{
		Count:     hist.Len(),
		Threshold: p.threshold,
		Icon:      IconEmpty,
	}
	ctx.IconWithSpace = EmojiWithSpace(ctx.Icon)

	last, ok := hist.Last()
	if !ok {
		return ctx
	}
	first, _ := hist.First()

	ctx.Latitude = last.Coords.Latitude
	ctx.Longitude = last.Coords.Longitude
	if last.Coords.Accuracy != nil {
		ctx.Accuracy = *last.Coords.Accuracy
	}
	ctx.Mocked = last.Mocked
	ctx.FirstSeen = first.Time()
	ctx.LastSeen = last.Time()
	ctx.TrackLength = hist.TrackLength()

	now := p.now()
	ctx.SunriseTime, ctx.SunsetTime = sunrise.SunriseSunset(ctx.Latitude, ctx.Longitude, now.Year(),
		now.Month(), now.Day())
	ctx.SunriseTime, ctx.SunsetTime = ctx.SunriseTime.In(now.Location()), ctx.SunsetTime.In(now.Location())
	ctx.IsDaytime = now.After(ctx.SunriseTime) && now.Before(ctx.SunsetTime)

	ctx.Icon = IconPosition
	if ctx.Mocked {
		ctx.Icon = IconMocked
	}
	ctx.IconWithSpace = EmojiWithSpace(ctx.Icon)

	return ctx
}

// Render executes both templates and attaches the CSS classes for the given context.
func (p *Presenter) Render(ctx TemplateContext) (Output, error) {
	text := bytes.NewBuffer(nil)
	if err := p.text.Execute(text, ctx); err != nil {
		return Output{}, fmt.Errorf("failed to render text template: %w", err)
	}
	tooltip := bytes.NewBuffer(nil)
	if err := p.tooltip.Execute(tooltip, ctx); err != nil {
		return Output{}, fmt.Errorf("failed to render tooltip template: %w", err)
	}

	classes := []string{OutputClass}
	switch {
	case ctx.Count == 0:
		classes = append(classes, EmptyClass)
	case ctx.Mocked:
		classes = append(classes, MockedClass)
	}

	return Output{
		Text:    text.String(),
		Tooltip: tooltip.String(),
		Classes: classes,
	}, nil
}
