package usecase

import (
	"context"
	"sync"
	"time"

	"nexus-radio/adapter/broker"
	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeFail
	outcomeHang
	outcomeGate
)

// fakeEngine resolves every url according to its scripted outcome.
type fakeEngine struct {
	mu        sync.Mutex
	outcomes  map[string]outcome
	gates     map[string]chan struct{}
	gen       uint64
	cur       string
	ready     bool
	supersede chan struct{}
	loaded    []string
	playing   bool
	pauses    int
	resets    int
	volume    int
	closed    bool
	cb        entity.EngineEventCallback

	// onPlay runs after Play succeeded, outside the lock, like a pump that
	// reports on its own goroutine.
	onPlay     func(gen uint64)
	resetDelay time.Duration
}

func newFakeEngine(outcomes map[string]outcome) *fakeEngine {
	return &fakeEngine{
		outcomes:  outcomes,
		gates:     make(map[string]chan struct{}),
		supersede: make(chan struct{}),
	}
}

func (e *fakeEngine) gate(url string) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.gates[url]
	if !ok {
		ch = make(chan struct{})
		e.gates[url] = ch
	}
	return ch
}

func (e *fakeEngine) Load(url string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	close(e.supersede)
	e.supersede = make(chan struct{})
	e.gen++
	e.cur = url
	e.ready = false
	e.playing = false
	e.loaded = append(e.loaded, url)
	return e.gen
}

func (e *fakeEngine) Await(ctx context.Context, gen uint64) (entity.StreamInfo, error) {
	e.mu.Lock()
	if gen != e.gen || e.cur == "" {
		e.mu.Unlock()
		return entity.StreamInfo{}, &entity.PlaybackError{Code: entity.ErrorAborted, Err: context.Canceled}
	}
	url := e.cur
	o := e.outcomes[url]
	sup := e.supersede
	gate, ok := e.gates[url]
	if !ok {
		gate = make(chan struct{})
		e.gates[url] = gate
	}
	e.mu.Unlock()

	aborted := &entity.PlaybackError{Code: entity.ErrorAborted, URL: url, Err: context.Canceled}

	switch o {
	case outcomeFail:
		return entity.StreamInfo{}, &entity.PlaybackError{Code: entity.ErrorNetwork, URL: url}
	case outcomeHang:
		select {
		case <-ctx.Done():
			return entity.StreamInfo{}, ctx.Err()
		case <-sup:
			return entity.StreamInfo{}, aborted
		}
	case outcomeGate:
		select {
		case <-gate:
		case <-ctx.Done():
			return entity.StreamInfo{}, ctx.Err()
		case <-sup:
			return entity.StreamInfo{}, aborted
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return entity.StreamInfo{}, aborted
	}
	e.ready = true
	return entity.StreamInfo{URL: url, ContentType: "audio/mpeg"}, nil
}

func (e *fakeEngine) Play() error {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return entity.ErrPlaybackRejected
	}
	e.playing = true
	gen := e.gen
	hook := e.onPlay
	e.mu.Unlock()

	if hook != nil {
		hook(gen)
	}
	return nil
}

func (e *fakeEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.pauses++
}

func (e *fakeEngine) SetVolume(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = percent
}

func (e *fakeEngine) Reset() {
	if e.resetDelay > 0 {
		time.Sleep(e.resetDelay)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	close(e.supersede)
	e.supersede = make(chan struct{})
	e.cur = ""
	e.ready = false
	e.playing = false
	e.resets++
}

func (e *fakeEngine) SetEventCallback(cb entity.EngineEventCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) emit(ev entity.EngineEvent) {
	e.mu.Lock()
	cb := e.cb
	e.mu.Unlock()
	cb(ev)
}

func (e *fakeEngine) currentGen() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func (e *fakeEngine) loadedURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loaded...)
}

type fakeTracker struct {
	mu     sync.Mutex
	plays  []string
	errors []string
}

func (t *fakeTracker) TrackStationPlay(station *entity.Station) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plays = append(t.plays, station.ID)
}

func (t *fakeTracker) TrackError(kind, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, kind+":"+context)
}

func (t *fakeTracker) errorCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errors)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []entity.PlaybackState
}

func (r *stateRecorder) observe(s entity.PlaybackState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []entity.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.PlaybackState(nil), r.states...)
}

func (r *stateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

type fakeBroker struct {
	mu           sync.Mutex
	published    [][]byte
	subs         map[string]broker.MessageHandler
	onConnect    broker.ConnectHandler
	onDisconnect broker.DisconnectHandler
	startErr     error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string]broker.MessageHandler)}
}

func (b *fakeBroker) Start() error {
	return b.startErr
}

func (b *fakeBroker) PublishState(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, data)
}

func (b *fakeBroker) Subscribe(topic string, handler broker.MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = handler
}

func (b *fakeBroker) SetConnectHandler(h broker.ConnectHandler) {
	b.onConnect = h
}

func (b *fakeBroker) SetDisconnectHandler(h broker.DisconnectHandler) {
	b.onDisconnect = h
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	h := b.subs[topic]
	b.mu.Unlock()
	h(topic, payload)
}

func (b *fakeBroker) lastPublished() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) == 0 {
		return nil
	}
	return b.published[len(b.published)-1]
}

var testLog = logger.Nop()
