/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback decides which single source the player streams and drives
// the audio adapters accordingly.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/schedule"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// Source is the state the orchestrator reads and the one key it writes.
type Source interface {
	ListBlocks(ctx context.Context) ([]models.ScheduleBlock, error)
	Library(ctx context.Context) (models.Library, error)
	Settings(ctx context.Context) (models.Settings, error)
	SetSetting(ctx context.Context, key string, value any) error
	Subscribe(types ...events.EventType) (<-chan events.Event, func())
}

// Options configures an Orchestrator.
type Options struct {
	Clock     Clock
	Location  *time.Location
	Debounce  time.Duration
	Publisher events.Broker
}

// State is the player's externally visible status.
type State struct {
	Choice    *schedule.PlaybackChoice `json:"choice"`
	Playing   bool                     `json:"playing"`
	Paused    bool                     `json:"paused"`
	Volume    int                      `json:"volume"`
	LastError string                   `json:"last_error,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// adapterState tracks what one adapter was last told.
type adapterState struct {
	loaded  string
	playing bool
	volume  int
}

// edgeDetector remembers the last in-block observation while following the schedule.
type edgeDetector struct {
	armed      bool
	inBlock    bool
	lastMinute time.Time
}

// Orchestrator owns the active adapter. All adapter calls happen on the Run goroutine.
type Orchestrator struct {
	source   Source
	adapters map[models.SourceType]Adapter
	clock    Clock
	loc      *time.Location
	debounce time.Duration
	pub      events.Broker
	logger   zerolog.Logger

	// Owned by the Run goroutine.
	active     models.SourceType
	perAdapter map[models.SourceType]*adapterState
	edge       edgeDetector
	waitReady  <-chan struct{}
	lastErr    error

	mu    sync.RWMutex
	state State
}

// New creates an orchestrator. adapters maps each source kind to its output.
func New(source Source, adapters map[models.SourceType]Adapter, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	per := make(map[models.SourceType]*adapterState, len(adapters))
	for kind := range adapters {
		per[kind] = &adapterState{volume: -1}
	}
	return &Orchestrator{
		source:     source,
		adapters:   adapters,
		clock:      opts.Clock,
		loc:        opts.Location,
		debounce:   opts.Debounce,
		pub:        opts.Publisher,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		perAdapter: per,
	}
}

// State returns the last published player status.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Run evaluates immediately, then on every minute boundary, on debounced store
// changes and when a waiting adapter becomes ready. It returns when ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	changes, release := o.source.Subscribe(events.ChangeTypes...)
	defer release()

	debounce := NewDebouncer(o.clock, o.debounce)
	o.evaluate(ctx, false)
	tick := o.clock.After(untilNextMinute(o.clock.Now()))

	o.logger.Info().Msg("player orchestrator started")
	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("player orchestrator stopped")
			return nil
		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			o.noteChange(ev)
			debounce.Trigger()
		case <-debounce.C():
			debounce.Done()
			o.evaluate(ctx, false)
		case <-tick:
			o.evaluate(ctx, true)
			tick = o.clock.After(untilNextMinute(o.clock.Now()))
		case <-o.waitReady:
			o.waitReady = nil
			o.logger.Debug().Msg("adapter ready, flushing buffered intents")
			o.evaluate(ctx, false)
		}
	}
}

// noteChange handles the parts of a store change that cannot wait for the
// debounced evaluation. Any write to follow_schedule disarms the edge detector,
// so an off and on toggle between two evaluations still re-applies the
// schedule's transport state.
func (o *Orchestrator) noteChange(ev events.Event) {
	if ev.Type != events.EventSettingsChanged {
		return
	}
	if key, _ := ev.Payload["key"].(string); key == models.KeyFollowSchedule {
		o.edge = edgeDetector{}
	}
}

// evaluate re-reads the store and reconciles the adapters with it. minuteTick
// marks evaluations driven by the clock, which are the only ones allowed to
// act on schedule edges after the first.
func (o *Orchestrator) evaluate(ctx context.Context, minuteTick bool) {
	telemetry.OrchestratorEvaluationsTotal.Inc()

	settings, err := o.source.Settings(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("load settings failed")
		return
	}
	blocks, err := o.source.ListBlocks(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("load blocks failed")
		return
	}
	lib, err := o.source.Library(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("load library failed")
		return
	}

	now := o.clock.Now().In(o.loc)
	settings = o.followSchedule(ctx, settings, blocks, now, minuteTick)

	choice := schedule.ResolveCurrent(blocks, lib, settings, now)
	o.reconcile(ctx, choice, settings)
}

// followSchedule applies the edge-triggered auto pause/resume and returns
// settings with any transport change folded in.
func (o *Orchestrator) followSchedule(ctx context.Context, settings models.Settings, blocks []models.ScheduleBlock, now time.Time, minuteTick bool) models.Settings {
	if !settings.FollowSchedule {
		o.edge = edgeDetector{}
		return settings
	}

	minute := now.Truncate(time.Minute)
	_, inBlock := schedule.ActiveBlock(blocks, now)
	prev := o.edge

	switch {
	case !o.edge.armed:
		o.edge = edgeDetector{armed: true, inBlock: inBlock, lastMinute: minute}
	case minuteTick && minute.After(o.edge.lastMinute):
		o.edge.lastMinute = minute
		if inBlock == o.edge.inBlock {
			return settings
		}
		o.edge.inBlock = inBlock
	default:
		return settings
	}

	paused := !inBlock
	if err := o.source.SetSetting(ctx, models.KeyIsPaused, paused); err != nil {
		// Roll back so the next evaluation tries again.
		o.edge = prev
		o.logger.Warn().Err(err).Bool("paused", paused).Msg("auto transport write failed")
		return settings
	}
	o.logger.Info().Bool("in_block", inBlock).Bool("paused", paused).Msg("schedule transport applied")
	settings.IsPaused = paused
	return settings
}

// reconcile issues the minimal adapter commands for choice under settings.
func (o *Orchestrator) reconcile(ctx context.Context, choice *schedule.PlaybackChoice, settings models.Settings) {
	defer o.publish(choice, settings)

	if choice == nil {
		o.silence(ctx)
		return
	}

	adapter, ok := o.adapterFor(choice.Kind)
	if !ok {
		o.lastErr = fmt.Errorf("no adapter for %s", choice.Kind)
		o.logger.Warn().Str("kind", string(choice.Kind)).Msg("no adapter configured")
		return
	}

	if o.active != choice.Kind {
		// Never two audible outputs: quiet the old kind before the new one starts.
		o.silence(ctx)
		o.active = choice.Kind
	}

	if !isReady(adapter) {
		o.waitReady = adapter.Ready()
		o.logger.Debug().Str("kind", string(choice.Kind)).Msg("adapter not ready, buffering")
		return
	}

	st := o.perAdapter[choice.Kind]
	identity := choice.Identity()

	if settings.IsPaused {
		if st.playing {
			o.command(ctx, choice.Kind, "pause", adapter.Pause)
			st.playing = false
		}
	} else {
		switch {
		case st.loaded == "":
			o.command(ctx, choice.Kind, "start", func(ctx context.Context) error {
				return adapter.Start(ctx, *choice, settings.Volume)
			})
			st.loaded, st.playing, st.volume = identity, true, settings.Volume
		case st.loaded != identity:
			o.command(ctx, choice.Kind, "switch", func(ctx context.Context) error {
				return adapter.Switch(ctx, *choice)
			})
			st.loaded, st.playing = identity, true
		case !st.playing:
			o.command(ctx, choice.Kind, "resume", adapter.Resume)
			st.playing = true
		}
	}

	if st.loaded != "" && st.volume != settings.Volume {
		o.command(ctx, choice.Kind, "volume", func(ctx context.Context) error {
			return adapter.SetVolume(ctx, settings.Volume)
		})
		st.volume = settings.Volume
	}
}

// silence pauses the active adapter if it is producing output.
func (o *Orchestrator) silence(ctx context.Context) {
	if o.active == "" {
		return
	}
	adapter, ok := o.adapters[o.active]
	st := o.perAdapter[o.active]
	if !ok || !st.playing {
		return
	}
	st.playing = false
	o.command(ctx, o.active, "pause", adapter.Pause)
}

// adapterFor maps a source kind to its adapter. Every kind must be listed.
func (o *Orchestrator) adapterFor(kind models.SourceType) (Adapter, bool) {
	switch kind {
	case models.SourceStation, models.SourceSpotify:
		a, ok := o.adapters[kind]
		return a, ok && a != nil
	default:
		return nil, false
	}
}

// command runs one adapter call. Failures are logged, counted and kept for
// the status until the next successful command; they are never retried.
func (o *Orchestrator) command(ctx context.Context, kind models.SourceType, name string, fn func(context.Context) error) {
	telemetry.OrchestratorCommandsTotal.WithLabelValues(string(kind), name).Inc()
	if err := fn(ctx); err != nil {
		telemetry.AdapterErrorsTotal.WithLabelValues(string(kind), name).Inc()
		o.logger.Warn().Err(err).Str("kind", string(kind)).Str("command", name).Msg("adapter command failed")
		o.lastErr = fmt.Errorf("%s %s: %w", kind, name, err)
		return
	}
	o.lastErr = nil
}

func (o *Orchestrator) publish(choice *schedule.PlaybackChoice, settings models.Settings) {
	playing := false
	if st, ok := o.perAdapter[o.active]; ok {
		playing = st.playing
	}

	state := State{
		Choice:    choice,
		Playing:   playing,
		Paused:    settings.IsPaused,
		Volume:    settings.Volume,
		UpdatedAt: o.clock.Now(),
	}
	if o.lastErr != nil {
		state.LastError = o.lastErr.Error()
	}

	o.mu.Lock()
	prev := o.state
	o.state = state
	o.mu.Unlock()

	if settings.IsPaused {
		telemetry.PlaybackPaused.Set(1)
	} else {
		telemetry.PlaybackPaused.Set(0)
	}
	telemetry.PlaybackVolume.Set(float64(settings.Volume))

	if o.pub == nil {
		return
	}
	if prev.Choice.Identity() == state.Choice.Identity() && prev.Playing == state.Playing &&
		prev.Paused == state.Paused && prev.Volume == state.Volume && prev.LastError == state.LastError {
		return
	}
	o.pub.Publish(events.EventPlaybackState, events.Payload{
		"source":     state.Choice.Identity(),
		"name":       state.Choice.Name(),
		"playing":    state.Playing,
		"paused":     state.Paused,
		"volume":     state.Volume,
		"last_error": state.LastError,
	})
}
