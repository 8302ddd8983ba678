package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	maxReconnects = 3
)

type PlaybackConfig struct {
	Catalog entity.Catalog
	Cascade *CascadeConfig
}

// PlaybackUseCase owns the playback state. It drives the engine through the
// url cascade and turns engine events into state changes.
type PlaybackUseCase struct {
	cfg      *PlaybackConfig
	engine   Engine
	cascade  *Cascade
	tracker  Tracker
	messages *Messages
	log      *logger.Zerolog

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu keeps mutation and delivery of one change atomic with respect
	// to other changes, so observers see snapshots in order.
	emitMu sync.Mutex
	// runMu serialises cascade runs.
	runMu sync.Mutex

	mu         sync.Mutex
	state      entity.PlaybackState
	runID      string
	cancelRun  context.CancelFunc
	activeGen  uint64
	lastTitle  titleAt
	lastEnd    entity.EngineEvent
	reconnects int
	observers  []observer
}

type observer struct {
	token string
	cb    entity.StateObserver
}

type titleAt struct {
	gen   uint64
	title string
}

func NewPlaybackUseCase(cfg *PlaybackConfig, engine Engine, tracker Tracker, messages *Messages, log *logger.Zerolog) *PlaybackUseCase {
	ctx, cancel := context.WithCancel(context.Background())

	uc := &PlaybackUseCase{
		cfg:      cfg,
		engine:   engine,
		cascade:  NewCascade(cfg.Cascade, engine, log),
		tracker:  tracker,
		messages: messages,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		state:    entity.NewPlaybackState(),
	}

	uc.engine.SetVolume(uc.state.Volume)
	uc.engine.SetEventCallback(uc.onEngineEvent)

	return uc
}

// Context is cancelled when the use case is closed. Callers that fire
// playback operations asynchronously use it as their parent.
func (uc *PlaybackUseCase) Context() context.Context {
	return uc.ctx
}

func (uc *PlaybackUseCase) Catalog() entity.Catalog {
	return uc.cfg.Catalog
}

func (uc *PlaybackUseCase) State() entity.PlaybackState {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	return uc.state.Clone()
}

func (uc *PlaybackUseCase) Subscribe(cb entity.StateObserver) string {
	token := uuid.NewString()

	uc.mu.Lock()
	uc.observers = append(uc.observers, observer{token: token, cb: cb})
	uc.mu.Unlock()

	return token
}

func (uc *PlaybackUseCase) Unsubscribe(token string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for i, o := range uc.observers {
		if o.token == token {
			uc.observers = append(uc.observers[:i:i], uc.observers[i+1:]...)
			return
		}
	}
}

// SelectStation starts the station, or toggles it when it is already the
// playing one. It returns the state once the attempt settled or ctx is done,
// whichever comes first.
func (uc *PlaybackUseCase) SelectStation(ctx context.Context, station *entity.Station) entity.PlaybackState {
	if station == nil {
		return uc.State()
	}

	uc.mu.Lock()
	cur := uc.state.CurrentStation
	same := cur != nil && cur.ID == station.ID && uc.state.IsPlaying
	uc.mu.Unlock()

	if same {
		return uc.TogglePlayPause(ctx)
	}

	uc.mu.Lock()
	uc.reconnects = 0
	uc.mu.Unlock()

	return uc.play(ctx, station.Clone())
}

func (uc *PlaybackUseCase) SelectStationByID(ctx context.Context, id string) (entity.PlaybackState, error) {
	station, _ := uc.cfg.Catalog.Find(id)
	if station == nil {
		return uc.State(), entity.ErrUnknownStation
	}
	return uc.SelectStation(ctx, station), nil
}

func (uc *PlaybackUseCase) TogglePlayPause(ctx context.Context) entity.PlaybackState {
	uc.mu.Lock()
	station := uc.state.CurrentStation
	playing := uc.state.IsPlaying
	uc.mu.Unlock()

	if station == nil {
		return uc.State()
	}

	if playing {
		uc.engine.Pause()
		uc.update(func(s *entity.PlaybackState) bool {
			if !s.IsPlaying {
				return false
			}
			s.IsPlaying = false
			return true
		})
		return uc.State()
	}

	return uc.play(ctx, station)
}

func (uc *PlaybackUseCase) NextStation(ctx context.Context) entity.PlaybackState {
	return uc.step(ctx, uc.cfg.Catalog.Next)
}

func (uc *PlaybackUseCase) PrevStation(ctx context.Context) entity.PlaybackState {
	return uc.step(ctx, uc.cfg.Catalog.Prev)
}

func (uc *PlaybackUseCase) step(ctx context.Context, pick func(id string) *entity.Station) entity.PlaybackState {
	uc.mu.Lock()
	cur := uc.state.CurrentStation
	uc.mu.Unlock()

	if cur == nil {
		return uc.State()
	}

	station := pick(cur.ID)
	if station == nil {
		return uc.State()
	}
	return uc.SelectStation(ctx, station)
}

// SetVolume clamps v to 0..100 and applies it immediately.
func (uc *PlaybackUseCase) SetVolume(v int) entity.PlaybackState {
	v = entity.ClampVolume(v)
	uc.engine.SetVolume(v)

	uc.update(func(s *entity.PlaybackState) bool {
		if s.Volume == v {
			return false
		}
		s.Volume = v
		return true
	})

	return uc.State()
}

func (uc *PlaybackUseCase) Close() error {
	uc.cancel()

	uc.mu.Lock()
	if uc.cancelRun != nil {
		uc.cancelRun()
	}
	uc.mu.Unlock()

	uc.runMu.Lock()
	defer uc.runMu.Unlock()

	return uc.engine.Close()
}

// play starts a run for station and waits until it settles or ctx is done.
// The run itself only stops when it is superseded or the use case is closed.
func (uc *PlaybackUseCase) play(ctx context.Context, station *entity.Station) entity.PlaybackState {
	if ctx.Err() != nil || uc.ctx.Err() != nil {
		return uc.State()
	}

	runCtx, cancel := context.WithCancel(uc.ctx)
	id := uuid.NewString()

	uc.mu.Lock()
	if uc.cancelRun != nil {
		uc.cancelRun()
	}
	uc.runID = id
	uc.cancelRun = cancel
	uc.activeGen = 0
	uc.mu.Unlock()

	uc.update(func(s *entity.PlaybackState) bool {
		if uc.runID != id {
			return false
		}
		s.CurrentStation = station
		s.IsLoading = true
		s.IsPlaying = false
		s.Error = ""
		s.Track = ""
		return true
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		uc.run(runCtx, id, station)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		uc.log.Debug().Msgf("station %s: caller stopped waiting, run %s continues", station.ID, id)
	}

	return uc.State()
}

func (uc *PlaybackUseCase) run(ctx context.Context, id string, station *entity.Station) {
	uc.runMu.Lock()
	defer uc.runMu.Unlock()

	if ctx.Err() != nil {
		uc.abort(id, station)
		return
	}

	res, err := uc.cascade.Run(ctx, station)
	if err != nil && ctx.Err() != nil {
		uc.abort(id, station)
		return
	}

	var ended *entity.EngineEvent
	settled := false
	uc.update(func(s *entity.PlaybackState) bool {
		if uc.runID != id {
			return false
		}
		settled = true
		uc.cancelRun = nil
		s.IsLoading = false

		if err != nil {
			s.IsPlaying = false
			s.Error = uc.messages.StationFailed()
			return true
		}

		s.IsPlaying = true
		s.Error = ""
		if uc.lastTitle.gen == res.Gen {
			s.Track = uc.lastTitle.title
		}

		// the bind may already have ended while the cascade was returning
		if uc.lastEnd.Gen == res.Gen {
			ev := uc.lastEnd
			ended = &ev
			if ev.Type == entity.EventError {
				s.IsPlaying = false
				s.Error = uc.messages.ForCode(ev.Code)
			}
			return true
		}

		uc.activeGen = res.Gen
		return true
	})

	switch {
	case !settled:
		uc.log.Debug().Msgf("station %s: superseded run %s dropped", station.ID, id)
		return
	case err != nil:
		var cascadeErr *entity.CascadeError
		if errors.As(err, &cascadeErr) {
			for _, a := range cascadeErr.Attempts {
				uc.log.Debug().Msgf("station %s: %s %s after %s: %v", station.ID, a.URL, a.Outcome, a.Elapsed, a.Err)
			}
		}
		uc.log.Error().Stack().Err(err).Msgf("failed to play station %s", station.ID)
		uc.tracker.TrackError("station_failed", station.ID)
		return
	}

	uc.log.Info().Msgf("playing %s via %s", station.ID, res.URL)
	uc.tracker.TrackStationPlay(station)

	if ended != nil {
		uc.ended(*ended, station)
	}
}

// abort settles a run that was cancelled before it could finish. It never
// sets an error: nothing failed.
func (uc *PlaybackUseCase) abort(id string, station *entity.Station) {
	uc.update(func(s *entity.PlaybackState) bool {
		if uc.runID != id {
			return false
		}
		uc.cancelRun = nil
		s.IsLoading = false
		s.IsPlaying = false
		return true
	})
	uc.log.Debug().Msgf("station %s: run %s aborted", station.ID, id)
}

func (uc *PlaybackUseCase) onEngineEvent(ev entity.EngineEvent) {
	if ev.Type == entity.EventMetadata {
		uc.mu.Lock()
		uc.lastTitle = titleAt{gen: ev.Gen, title: ev.Title}
		uc.mu.Unlock()
	}

	active := false
	var station *entity.Station

	uc.update(func(s *entity.PlaybackState) bool {
		if ev.Gen == 0 {
			return false
		}
		if ev.Gen != uc.activeGen {
			if ev.Type == entity.EventError || ev.Type == entity.EventStalled {
				uc.lastEnd = ev
			}
			return false
		}
		active = true
		station = s.CurrentStation

		switch ev.Type {
		case entity.EventPaused:
			s.IsPlaying = false
		case entity.EventPlaying:
			s.IsPlaying = true
			s.Error = ""
		case entity.EventMetadata:
			s.Track = ev.Title
		case entity.EventError:
			uc.activeGen = 0
			s.IsPlaying = false
			s.IsLoading = false
			s.Error = uc.messages.ForCode(ev.Code)
		case entity.EventStalled:
			uc.activeGen = 0
			return false
		default:
			return false
		}
		return true
	})

	if !active {
		return
	}

	uc.ended(ev, station)
}

// ended reacts to the end of the active bind.
func (uc *PlaybackUseCase) ended(ev entity.EngineEvent, station *entity.Station) {
	switch ev.Type {
	case entity.EventError:
		uc.log.Error().Err(ev.Err).Msgf("playback error on %s", ev.URL)
		uc.tracker.TrackError(ev.Code.String(), ev.URL)
	case entity.EventStalled:
		uc.reconnect(station)
	}
}

// reconnect restarts the station after its stream ended on its own.
func (uc *PlaybackUseCase) reconnect(station *entity.Station) {
	if station == nil {
		return
	}

	uc.mu.Lock()
	uc.reconnects++
	n := uc.reconnects
	uc.mu.Unlock()

	if n > maxReconnects {
		uc.log.Error().Msgf("station %s: giving up after %d reconnects", station.ID, maxReconnects)
		uc.update(func(s *entity.PlaybackState) bool {
			if s.CurrentStation == nil || s.CurrentStation.ID != station.ID {
				return false
			}
			s.IsPlaying = false
			s.IsLoading = false
			s.Error = uc.messages.ForCode(entity.ErrorNetwork)
			return true
		})
		uc.tracker.TrackError("reconnect_exhausted", station.ID)
		return
	}

	uc.log.Warn().Msgf("station %s: stream ended, reconnecting (%d/%d)", station.ID, n, maxReconnects)
	go uc.play(uc.ctx, station)
}

// update applies fn to a copy of the state under the lock and notifies the
// observers when the result differs. fn returns false to veto the change.
func (uc *PlaybackUseCase) update(fn func(s *entity.PlaybackState) bool) {
	uc.emitMu.Lock()
	defer uc.emitMu.Unlock()

	uc.mu.Lock()
	next := uc.state.Clone()
	if !fn(&next) {
		uc.mu.Unlock()
		return
	}

	if next.Error != "" {
		next.IsPlaying = false
	}
	if next.IsPlaying {
		next.IsLoading = false
	}

	if next.Equal(uc.state) {
		uc.mu.Unlock()
		return
	}
	uc.state = next

	observers := make([]observer, len(uc.observers))
	copy(observers, uc.observers)
	uc.mu.Unlock()

	for _, o := range observers {
		o.cb(next.Clone())
	}
}
