package engine

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

// Engine owns one output device and at most one bound source at a time.
// Every Load starts a new bind generation; events carry the generation so
// that consumers can drop what belongs to a superseded bind.
//
// Event callbacks run on the engine's dispatcher goroutine and must not call
// back into the engine synchronously.
type Engine struct {
	cfg    *Config
	log    *logger.Zerolog
	opener Opener
	out    Output

	bindMu sync.Mutex
	wg     sync.WaitGroup

	mu     sync.Mutex
	gen    uint64
	cur    *bind
	volume int

	cbMu     sync.RWMutex
	callback entity.EngineEventCallback

	evMu       sync.RWMutex
	closed     bool
	events     chan entity.EngineEvent
	dispatched chan struct{}
	closeOnce  sync.Once
}

type bind struct {
	gen    uint64
	url    string
	ctx    context.Context
	cancel context.CancelFunc

	ready chan struct{}
	done  chan struct{}
	once  sync.Once
	err   error
	info  entity.StreamInfo

	src     io.Closer
	decoder beep.StreamSeekCloser
	stream  beep.Streamer
	chunk   *chunk
	gain    *effects.Volume
	paused  bool
	dead    bool
	wake    chan struct{}
}

func (b *bind) isReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

// chunk lets the volume effect work in place on the samples the pump
// already holds.
type chunk struct{}

func (c *chunk) Stream(samples [][2]float64) (int, bool) {
	return len(samples), true
}

func (c *chunk) Err() error {
	return nil
}

func NewEngine(cfg *Config, opener Opener, out Output, log *logger.Zerolog) *Engine {
	e := &Engine{
		cfg:        cfg.withDefaults(),
		log:        log,
		opener:     opener,
		out:        out,
		volume:     entity.DefaultVolume,
		events:     make(chan entity.EngineEvent, eventQueueSize),
		dispatched: make(chan struct{}),
	}

	go e.dispatch()

	return e
}

// NewMutedEngine builds an engine whose output is discarded.
func NewMutedEngine(cfg *Config, opener Opener, log *logger.Zerolog) *Engine {
	cfg = cfg.withDefaults()
	return NewEngine(cfg, opener, NewMutedOutput(cfg.SampleRate), log)
}

func (e *Engine) SetEventCallback(cb entity.EngineEventCallback) {
	e.cbMu.Lock()
	e.callback = cb
	e.cbMu.Unlock()
}

// Load tears down the current bind and starts opening url in the background.
// The returned generation identifies the new bind.
func (e *Engine) Load(url string) uint64 {
	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	e.reset()

	ctx, cancel := context.WithCancel(context.Background())
	b := &bind{
		url:    url,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		chunk:  &chunk{},
		paused: true,
		wake:   make(chan struct{}, 1),
	}
	b.gain = &effects.Volume{Streamer: b.chunk, Base: volumeBase}

	e.mu.Lock()
	e.gen++
	b.gen = e.gen
	applyVolume(b.gain, e.volume)
	e.cur = b
	e.wg.Add(1)
	e.mu.Unlock()

	e.log.Debug().Msgf("bind %d: loading %s", b.gen, url)
	e.emit(entity.EngineEvent{Type: entity.EventLoadingStarted, Gen: b.gen, URL: url})

	go e.open(b)

	return b.gen
}

// Await blocks until the bind gen is ready to play, failed, was superseded or
// ctx is done.
func (e *Engine) Await(ctx context.Context, gen uint64) (entity.StreamInfo, error) {
	e.mu.Lock()
	b := e.cur
	e.mu.Unlock()

	if b == nil || b.gen != gen {
		return entity.StreamInfo{}, &entity.PlaybackError{Code: entity.ErrorAborted, Err: context.Canceled}
	}

	select {
	case <-b.ready:
		return b.info, nil
	case <-b.done:
		return entity.StreamInfo{}, b.err
	case <-b.ctx.Done():
		return entity.StreamInfo{}, &entity.PlaybackError{Code: entity.ErrorAborted, URL: b.url, Err: context.Canceled}
	case <-ctx.Done():
		return entity.StreamInfo{}, ctx.Err()
	}
}

func (e *Engine) Play() error {
	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	e.mu.Lock()
	b := e.cur
	if b == nil || b.dead || !b.isReady() {
		e.mu.Unlock()
		return entity.ErrPlaybackRejected
	}
	paused := b.paused
	e.mu.Unlock()

	if !paused {
		return nil
	}

	// announced before the pump resumes, so that a short stream cannot
	// report its end ahead of its start
	e.emit(entity.EngineEvent{Type: entity.EventPlaying, Gen: b.gen, URL: b.url})

	e.mu.Lock()
	b.paused = false
	select {
	case b.wake <- struct{}{}:
	default:
	}
	e.mu.Unlock()

	return nil
}

func (e *Engine) Pause() {
	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	e.mu.Lock()
	b := e.cur
	if b == nil || b.dead || b.paused || !b.isReady() {
		e.mu.Unlock()
		return
	}
	b.paused = true
	e.mu.Unlock()

	e.emit(entity.EngineEvent{Type: entity.EventPaused, Gen: b.gen, URL: b.url})
}

// SetVolume sets the output gain, percent is clamped to 0..100.
func (e *Engine) SetVolume(percent int) {
	percent = entity.ClampVolume(percent)

	e.mu.Lock()
	e.volume = percent
	if e.cur != nil {
		applyVolume(e.cur.gain, percent)
	}
	e.mu.Unlock()
}

// Reset detaches the current source. It returns once the previous bind's
// goroutines are gone.
func (e *Engine) Reset() {
	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	e.reset()
}

func (e *Engine) reset() {
	e.mu.Lock()
	b := e.cur
	e.cur = nil
	if b != nil {
		b.cancel()
		if b.src != nil {
			if err := b.src.Close(); err != nil {
				e.log.Debug().Msgf("bind %d: failed to close source: %v", b.gen, err)
			}
		}
	}
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.Reset()

		e.evMu.Lock()
		e.closed = true
		close(e.events)
		e.evMu.Unlock()
		<-e.dispatched

		err = e.out.Close()
	})
	return err
}

func (e *Engine) open(b *bind) {
	defer e.wg.Done()

	src, err := e.opener.Open(b.ctx, b.url, func(title string) {
		e.emit(entity.EngineEvent{Type: entity.EventMetadata, Gen: b.gen, URL: b.url, Title: title})
	})
	if err != nil {
		e.fail(b, classify(err, b.url, entity.ErrorNetwork))
		return
	}

	e.mu.Lock()
	if e.cur != b {
		e.mu.Unlock()
		_ = src.Body.Close()
		return
	}
	b.src = src.Body
	e.mu.Unlock()

	decoder, format, err := decode(src, b.url)
	if err != nil {
		e.fail(b, classify(err, b.url, entity.ErrorDecode))
		return
	}

	var stream beep.Streamer = decoder
	if rate := e.out.SampleRate(); format.SampleRate != rate {
		e.log.Debug().Msgf("bind %d: resample %d -> %d", b.gen, format.SampleRate, rate)
		stream = beep.Resample(resampleQuality, format.SampleRate, rate, decoder)
	}

	info := src.Info
	info.URL = b.url
	info.SampleRate = int(format.SampleRate)
	if info.ContentType == "" {
		info.ContentType = src.ContentType
	}

	e.mu.Lock()
	if e.cur != b {
		e.mu.Unlock()
		_ = decoder.Close()
		return
	}
	b.decoder = decoder
	b.stream = stream
	b.info = info
	close(b.ready)
	e.mu.Unlock()

	e.log.Debug().Msgf("bind %d: ready %s (%s, %d Hz, %d channels)", b.gen, b.url, info.ContentType, format.SampleRate, format.NumChannels)
	e.emit(entity.EngineEvent{Type: entity.EventReady, Gen: b.gen, URL: b.url})

	e.pump(b)
}

func (e *Engine) pump(b *bind) {
	defer func() {
		if err := b.decoder.Close(); err != nil {
			e.log.Debug().Msgf("bind %d: failed to close decoder: %v", b.gen, err)
		}
	}()

	samples := make([][2]float64, e.cfg.ChunkSamples)
	buf := make([]byte, len(samples)*bytesPerFrame)

	for {
		e.mu.Lock()
		paused := b.paused
		e.mu.Unlock()

		if paused {
			select {
			case <-b.ctx.Done():
				return
			case <-b.wake:
			}
			continue
		}

		n, ok := b.stream.Stream(samples)
		if b.ctx.Err() != nil {
			return
		}

		if n > 0 {
			e.mu.Lock()
			b.gain.Stream(samples[:n])
			e.mu.Unlock()

			encode(buf, samples[:n])
			if _, err := e.out.Write(buf[:n*bytesPerFrame]); err != nil {
				e.fail(b, classify(err, b.url, entity.ErrorUnknown))
				return
			}
		}

		if !ok {
			if err := b.stream.Err(); err != nil {
				e.fail(b, classify(err, b.url, entity.ErrorDecode))
				return
			}
			e.stall(b)
			return
		}
	}
}

func (e *Engine) fail(b *bind, pe *entity.PlaybackError) {
	e.mu.Lock()
	stale := e.cur != b || b.ctx.Err() != nil
	if !stale {
		b.dead = true
		b.once.Do(func() {
			b.err = pe
			close(b.done)
		})
	}
	e.mu.Unlock()

	if stale {
		e.log.Debug().Msgf("bind %d: dropped error of superseded source: %v", b.gen, pe)
		return
	}

	e.log.Warn().Err(pe).Msgf("bind %d: %s failed", b.gen, pe.Code)
	e.emit(entity.EngineEvent{Type: entity.EventError, Gen: b.gen, URL: b.url, Code: pe.Code, Err: pe})
}

func (e *Engine) stall(b *bind) {
	e.mu.Lock()
	stale := e.cur != b || b.ctx.Err() != nil
	if !stale {
		b.dead = true
	}
	e.mu.Unlock()

	if stale {
		return
	}

	e.log.Warn().Msgf("bind %d: stream ended: %s", b.gen, b.url)
	e.emit(entity.EngineEvent{Type: entity.EventStalled, Gen: b.gen, URL: b.url})
}

func (e *Engine) emit(ev entity.EngineEvent) {
	e.evMu.RLock()
	defer e.evMu.RUnlock()

	if e.closed {
		return
	}
	e.events <- ev
}

// dispatch delivers events in emission order, off the caller's goroutine.
func (e *Engine) dispatch() {
	defer close(e.dispatched)

	for ev := range e.events {
		e.cbMu.RLock()
		cb := e.callback
		e.cbMu.RUnlock()

		if cb != nil {
			cb(ev)
		}
	}
}

func applyVolume(v *effects.Volume, percent int) {
	v.Silent = percent <= 0
	v.Volume = percentToExponent(percent)
}

// percentToExponent maps 1..100 onto a perceptual curve between minVolumeDB
// and unity gain.
func percentToExponent(percent int) float64 {
	if percent <= 0 {
		return minVolumeDB
	}
	if percent >= 100 {
		return 0
	}
	return minVolumeDB * (1 - math.Pow(float64(percent)/100, volumeCurve))
}

func encode(buf []byte, samples [][2]float64) {
	for i, s := range samples {
		for c := 0; c < 2; c++ {
			v := s[c]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint16(buf[i*bytesPerFrame+c*2:], uint16(int16(v*math.MaxInt16)))
		}
	}
}
