// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/geobus"
	"github.com/wneessen/geotrail/internal/geocode"
	nominatim "github.com/wneessen/geotrail/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/http"
	"github.com/wneessen/geotrail/internal/i18n"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/presenter"
	"github.com/wneessen/geotrail/internal/store"
)

const (
	DesktopID = "geotrail"

	subscriberBufferSize = 32
	geocoderHitTTL       = time.Hour * 24
	geocoderMissTTL      = time.Minute * 30
)

var ErrNoLogger = errors.New("logger is required")

type Service struct {
	config    *config.Config
	geobus    *geobus.GeoBus
	logger    *logger.Logger
	scheduler gocron.Scheduler
	presenter *presenter.Presenter
	store     store.Store
	SignalSrc signalSource

	// sleepMonitor watches for system resume, nil disables it
	sleepMonitor func(context.Context)

	outputLock sync.Mutex
	output     io.Writer

	// manager is not safe for concurrent use, every access goes through historyLock
	historyLock sync.Mutex
	manager     *history.Manager

	// geocoder resolves the place name of the last position, nil disables it
	geocoder  geocode.Geocoder
	placeLock sync.RWMutex
	place     string
}

func New(ctx context.Context, conf *config.Config, log *logger.Logger, loc *i18n.Locale) (*Service, error) {
	if log == nil {
		return nil, ErrNoLogger
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	backend, err := store.New(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}

	manager, err := history.New(history.Config{
		DistanceThreshold: conf.Threshold(),
		Loader:            backend,
		Saver:             backend,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history manager: %w", err)
	}

	service := &Service{
		config:    conf,
		geobus:    geobus.New(log),
		logger:    log,
		scheduler: scheduler,
		presenter: pres,
		store:     backend,
		SignalSrc: stdLibSignalSource{},
		output:    os.Stdout,
		manager:   manager,
	}
	service.sleepMonitor = service.monitorSleepResume

	if !conf.Geocoder.Disable {
		coder, err := nominatim.New(http.New(log), loc.Tag)
		if err != nil {
			return nil, fmt.Errorf("failed to create geocoder: %w", err)
		}
		service.geocoder = geocode.NewCachedGeocoder(coder, geocoderHitTTL, geocoderMissTTL)
	}
	return service, nil
}

func (s *Service) Run(ctx context.Context) error {
	providers, err := s.selectGeobusProviders()
	if err != nil {
		return err
	}

	// Load the persisted history before any new location can arrive
	s.historyLock.Lock()
	err = s.manager.Initialize(ctx)
	entries := s.manager.History().Len()
	s.historyLock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to load location history: %w", err)
	}
	s.logger.Info("location history loaded", slog.String("backend", s.store.Name()),
		slog.Int("entries", entries))
	s.resolvePlace(ctx, s.History())

	// Start scheduled jobs
	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printStatus,
		"status_output_job"); err != nil {
		return err
	}
	s.scheduler.Start()
	s.printStatus(ctx)

	// Subscribe to geolocation updates from the geobus
	sub, unsub := s.geobus.Subscribe(subscriberBufferSize)
	go s.processLocationUpdates(ctx, sub)
	go s.geobus.NewOrchestrator(providers).Track(ctx, DesktopID)

	if s.sleepMonitor != nil {
		go s.sleepMonitor(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.HandleSignals(ctx, sigChan)

	// Wait for the context to cancel
	<-ctx.Done()
	s.SignalSrc.Stop(sigChan)
	unsub()
	return s.scheduler.Shutdown()
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// printStatus renders the current history through the presenter and writes it as a single
// JSON line to the output.
func (s *Service) printStatus(context.Context) {
	tplCtx := s.presenter.BuildContext(s.History())
	tplCtx.Place = s.Place()

	out, err := s.presenter.Render(tplCtx)
	if err != nil {
		s.logger.Error("failed to render status output", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err = json.NewEncoder(s.output).Encode(out); err != nil {
		s.logger.Error("failed to encode status output", logger.Err(err))
	}
}

// History returns a copy of the current location history.
func (s *Service) History() history.History {
	s.historyLock.Lock()
	defer s.historyLock.Unlock()
	return s.manager.History()
}

// addLocation feeds a geobus result into the history manager. A failed save is logged only,
// the in-memory history keeps the sample and the next successful save persists it.
func (s *Service) addLocation(ctx context.Context, r geobus.Result) {
	s.historyLock.Lock()
	hist, err := s.manager.AddLocation(ctx, sampleFromResult(r))
	s.historyLock.Unlock()
	if err != nil {
		s.logger.Error("failed to persist location history", logger.Err(err),
			slog.String("backend", s.store.Name()))
	}
	s.logger.Debug("location history updated", slog.Int("entries", hist.Len()),
		slog.String("source", r.Source))
	s.resolvePlace(ctx, hist)
	s.printStatus(ctx)
}

// Place returns the place name of the last recorded position, if one was resolved.
func (s *Service) Place() string {
	s.placeLock.RLock()
	defer s.placeLock.RUnlock()
	return s.place
}

// resolvePlace looks up the place name of the last entry of hist. A failed lookup clears the
// place, so the output never shows the name of a position that was left behind.
func (s *Service) resolvePlace(ctx context.Context, hist history.History) {
	if s.geocoder == nil {
		return
	}
	last, ok := hist.Last()
	if !ok {
		return
	}

	place := ""
	addr, err := s.geocoder.Reverse(ctx, last.Coordinate())
	if err != nil {
		s.logger.Error("failed to resolve place name", logger.Err(err),
			slog.String("geocoder", s.geocoder.Name()))
	} else {
		place = addr.Label()
		s.logger.Debug("place name resolved", slog.String("place", place),
			slog.Bool("cache_hit", addr.CacheHit))
	}

	s.placeLock.Lock()
	s.place = place
	s.placeLock.Unlock()
}

// processLocationUpdates consumes geolocation updates from the geobus until the subscription
// or the context ends.
func (s *Service) processLocationUpdates(ctx context.Context, sub <-chan geobus.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received geolocation update",
				slog.Float64("lat", r.Lat), slog.Float64("lon", r.Lon), slog.String("source", r.Source))
			s.addLocation(ctx, r)
		}
	}
}

func sampleFromResult(r geobus.Result) history.Sample {
	sample := history.NewSample(r.Lat, r.Lon, r.At)
	sample.Mocked = r.Mocked
	if r.AccuracyMeters > 0 {
		sample.Coords.Accuracy = history.Float(r.AccuracyMeters)
	}
	if r.Alt != 0 {
		sample.Coords.Altitude = history.Float(r.Alt)
	}
	return sample
}
