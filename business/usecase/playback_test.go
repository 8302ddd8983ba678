package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-radio/business/entity"
)

var testCatalog = entity.Catalog{
	{ID: "mfm", Name: "MFM", URL: "mfm-1", FallbackURL: "mfm-2"},
	{ID: "hit", Name: "Hit Radio", URL: "hit-1"},
	{ID: "snrt", Name: "SNRT Inter", URL: "snrt-1", AlternativeURLs: []string{"snrt-2"}, FallbackURL: "snrt-3"},
}

func newTestPlayback(t *testing.T, eng *fakeEngine) (*PlaybackUseCase, *fakeTracker, *stateRecorder) {
	tracker := &fakeTracker{}
	uc := NewPlaybackUseCase(&PlaybackConfig{
		Catalog: testCatalog,
		Cascade: &CascadeConfig{AttemptTimeout: time.Second},
	}, eng, tracker, NewMessages("en"), testLog)

	rec := &stateRecorder{}
	uc.Subscribe(rec.observe)

	t.Cleanup(func() { _ = uc.Close() })

	return uc, tracker, rec
}

func TestSelectStationPlays(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, tracker, rec := newTestPlayback(t, eng)

	state := uc.SelectStation(context.Background(), testCatalog[0])

	assert.True(t, state.IsPlaying)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)
	require.NotNil(t, state.CurrentStation)
	assert.Equal(t, "mfm", state.CurrentStation.ID)
	assert.Equal(t, entity.DefaultVolume, eng.volume)

	states := rec.all()
	require.Len(t, states, 2)
	assert.True(t, states[0].IsLoading)
	assert.False(t, states[0].IsPlaying)
	assert.True(t, states[1].IsPlaying)
	assert.Equal(t, []string{"mfm"}, tracker.plays)
}

func TestSelectPlayingStationToggles(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, _, rec := newTestPlayback(t, eng)

	uc.SelectStation(context.Background(), testCatalog[1])
	state := uc.SelectStation(context.Background(), testCatalog[1])

	assert.False(t, state.IsPlaying)
	assert.False(t, state.IsLoading)
	assert.Equal(t, []string{"hit-1"}, eng.loadedURLs(), "no refetch")
	assert.Equal(t, 1, eng.pauses)
	assert.Equal(t, 3, rec.count())

	state = uc.TogglePlayPause(context.Background())
	assert.True(t, state.IsPlaying)
	assert.Equal(t, []string{"hit-1", "hit-1"}, eng.loadedURLs())
}

func TestToggleWithoutStation(t *testing.T) {
	uc, _, rec := newTestPlayback(t, newFakeEngine(nil))

	state := uc.TogglePlayPause(context.Background())
	assert.Nil(t, state.CurrentStation)
	assert.Zero(t, rec.count())
}

func TestSelectStationExhausted(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{"mfm-1": outcomeFail, "mfm-2": outcomeFail})
	uc, tracker, rec := newTestPlayback(t, eng)

	state := uc.SelectStation(context.Background(), testCatalog[0])

	assert.False(t, state.IsPlaying)
	assert.False(t, state.IsLoading)
	assert.Equal(t, uc.messages.StationFailed(), state.Error)
	assert.Equal(t, []string{"mfm-1", "mfm-2"}, eng.loadedURLs())
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 1, tracker.errorCount())
}

func TestSelectStationScenario(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{
		"u1": outcomeFail,
		"u2": outcomeFail,
		"u3": outcomeOK,
		"u4": outcomeOK,
	})
	uc, _, _ := newTestPlayback(t, eng)

	state := uc.SelectStation(context.Background(), &entity.Station{
		ID:              "s",
		URL:             "u1",
		AlternativeURLs: []string{"u2", "u3"},
		FallbackURL:     "u4",
	})

	assert.True(t, state.IsPlaying)
	assert.Equal(t, []string{"u1", "u2", "u3"}, eng.loadedURLs())
}

func TestSelectStationSupersedesSlowLoad(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{"mfm-1": outcomeHang})
	uc, _, rec := newTestPlayback(t, eng)

	done := make(chan entity.PlaybackState, 1)
	go func() {
		done <- uc.SelectStation(context.Background(), testCatalog[0])
	}()

	require.Eventually(t, func() bool {
		return len(eng.loadedURLs()) == 1
	}, time.Second, 5*time.Millisecond)

	state := uc.SelectStation(context.Background(), testCatalog[1])
	assert.True(t, state.IsPlaying)
	assert.Equal(t, "hit", state.CurrentStation.ID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded select did not return")
	}

	final := uc.State()
	assert.Equal(t, "hit", final.CurrentStation.ID)
	assert.True(t, final.IsPlaying)
	assert.Empty(t, final.Error)
	assert.Equal(t, []string{"mfm-1", "hit-1"}, eng.loadedURLs(), "fallback of the superseded station is never tried")

	states := rec.all()
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.Equal(t, "hit", last.CurrentStation.ID)
	assert.True(t, last.IsPlaying)
	for _, s := range states[1:] {
		assert.Equal(t, "hit", s.CurrentStation.ID)
	}
}

func TestSetVolume(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, _, rec := newTestPlayback(t, eng)

	uc.SelectStation(context.Background(), testCatalog[1])
	n := rec.count()

	state := uc.SetVolume(150)
	assert.Equal(t, 100, state.Volume)
	assert.Equal(t, 100, eng.volume)
	assert.True(t, state.IsPlaying)

	state = uc.SetVolume(-5)
	assert.Equal(t, 0, state.Volume)

	uc.SetVolume(0)
	assert.Equal(t, n+2, rec.count(), "unchanged volume does not notify")
}

func TestEngineEvents(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, tracker, rec := newTestPlayback(t, eng)

	uc.SelectStation(context.Background(), testCatalog[1])
	gen := eng.currentGen()

	eng.emit(entity.EngineEvent{Type: entity.EventMetadata, Gen: gen, Title: "Artist - Song"})
	assert.Equal(t, "Artist - Song", uc.State().Track)

	n := rec.count()
	eng.emit(entity.EngineEvent{Type: entity.EventMetadata, Gen: gen - 1, Title: "stale"})
	eng.emit(entity.EngineEvent{Type: entity.EventError, Gen: gen + 1, Code: entity.ErrorNetwork})
	assert.Equal(t, n, rec.count(), "events of other binds are ignored")

	eng.emit(entity.EngineEvent{Type: entity.EventPaused, Gen: gen})
	assert.False(t, uc.State().IsPlaying)
	eng.emit(entity.EngineEvent{Type: entity.EventPlaying, Gen: gen})
	assert.True(t, uc.State().IsPlaying)

	eng.emit(entity.EngineEvent{Type: entity.EventError, Gen: gen, Code: entity.ErrorDecode, URL: "hit-1"})
	state := uc.State()
	assert.False(t, state.IsPlaying)
	assert.False(t, state.IsLoading)
	assert.Equal(t, uc.messages.ForCode(entity.ErrorDecode), state.Error)
	assert.Equal(t, 1, tracker.errorCount())

	n = rec.count()
	eng.emit(entity.EngineEvent{Type: entity.EventPlaying, Gen: gen})
	assert.Equal(t, n, rec.count(), "a failed bind no longer drives the state")
}

func TestMetadataBeforeSettle(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{"hit-1": outcomeGate})
	uc, _, _ := newTestPlayback(t, eng)

	done := make(chan entity.PlaybackState, 1)
	go func() {
		done <- uc.SelectStation(context.Background(), testCatalog[1])
	}()

	require.Eventually(t, func() bool { return eng.currentGen() == 1 }, time.Second, 5*time.Millisecond)
	eng.emit(entity.EngineEvent{Type: entity.EventMetadata, Gen: 1, Title: "Early Title"})
	close(eng.gate("hit-1"))

	state := <-done
	assert.True(t, state.IsPlaying)
	assert.Equal(t, "Early Title", state.Track)
}

func TestStalledStreamReconnects(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, _, _ := newTestPlayback(t, eng)

	uc.SelectStation(context.Background(), testCatalog[1])
	eng.emit(entity.EngineEvent{Type: entity.EventStalled, Gen: eng.currentGen()})

	require.Eventually(t, func() bool {
		return len(eng.loadedURLs()) == 2 && uc.State().IsPlaying
	}, time.Second, 5*time.Millisecond)
}

func TestStalledStreamGivesUp(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, tracker, _ := newTestPlayback(t, eng)

	uc.SelectStation(context.Background(), testCatalog[1])

	for i := 1; i <= maxReconnects; i++ {
		eng.emit(entity.EngineEvent{Type: entity.EventStalled, Gen: eng.currentGen()})
		want := i + 1
		require.Eventually(t, func() bool {
			return len(eng.loadedURLs()) == want && uc.State().IsPlaying
		}, time.Second, 5*time.Millisecond)
	}

	eng.emit(entity.EngineEvent{Type: entity.EventStalled, Gen: eng.currentGen()})
	state := uc.State()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, uc.messages.ForCode(entity.ErrorNetwork), state.Error)
	assert.Equal(t, 1, tracker.errorCount())
}

func TestSelectStationByID(t *testing.T) {
	uc, _, rec := newTestPlayback(t, newFakeEngine(nil))

	_, err := uc.SelectStationByID(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrUnknownStation)
	assert.Zero(t, rec.count())

	state, err := uc.SelectStationByID(context.Background(), "snrt")
	require.NoError(t, err)
	assert.Equal(t, "snrt", state.CurrentStation.ID)
}

func TestNextPrevStation(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, _, rec := newTestPlayback(t, eng)

	assert.Nil(t, uc.NextStation(context.Background()).CurrentStation)
	assert.Nil(t, uc.PrevStation(context.Background()).CurrentStation)
	assert.Zero(t, rec.count(), "nothing to step from")
	assert.Empty(t, eng.loadedURLs())

	uc.SelectStation(context.Background(), testCatalog[0])
	assert.Equal(t, "hit", uc.NextStation(context.Background()).CurrentStation.ID)
	assert.Equal(t, "mfm", uc.PrevStation(context.Background()).CurrentStation.ID)
	assert.Equal(t, "snrt", uc.PrevStation(context.Background()).CurrentStation.ID)
	assert.Equal(t, "mfm", uc.NextStation(context.Background()).CurrentStation.ID)
}

func TestSelectNilStation(t *testing.T) {
	uc, _, rec := newTestPlayback(t, newFakeEngine(nil))

	assert.NotPanics(t, func() {
		state := uc.SelectStation(context.Background(), nil)
		assert.Nil(t, state.CurrentStation)
	})
	assert.Zero(t, rec.count())
}

func TestCallerGivesUpBeforeSettle(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{"hit-1": outcomeGate})
	uc, tracker, _ := newTestPlayback(t, eng)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	state := uc.SelectStation(ctx, testCatalog[1])
	assert.True(t, state.IsLoading)
	assert.Empty(t, state.Error)

	close(eng.gate("hit-1"))

	require.Eventually(t, func() bool {
		s := uc.State()
		return s.IsPlaying && !s.IsLoading
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, uc.State().Error)
	assert.Equal(t, []string{"hit-1"}, eng.loadedURLs())
	assert.Zero(t, tracker.errorCount())
}

func TestCallerGivesUpWhileSupersededRunResets(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{"mfm-1": outcomeHang})
	eng.resetDelay = 300 * time.Millisecond
	uc, _, _ := newTestPlayback(t, eng)

	go uc.SelectStation(context.Background(), testCatalog[0])
	require.Eventually(t, func() bool { return len(eng.loadedURLs()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	uc.SelectStation(ctx, testCatalog[1])

	require.Eventually(t, func() bool {
		s := uc.State()
		return s.CurrentStation.ID == "hit" && s.IsPlaying && !s.IsLoading
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, uc.State().Error)
}

func TestCloseDuringRunClearsLoading(t *testing.T) {
	eng := newFakeEngine(map[string]outcome{"hit-1": outcomeHang})
	uc, _, _ := newTestPlayback(t, eng)

	done := make(chan entity.PlaybackState, 1)
	go func() { done <- uc.SelectStation(context.Background(), testCatalog[1]) }()
	require.Eventually(t, func() bool { return len(eng.loadedURLs()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, uc.Close())

	select {
	case state := <-done:
		assert.False(t, state.IsLoading)
		assert.False(t, state.IsPlaying)
		assert.Empty(t, state.Error, "an aborted run is not a failure")
	case <-time.After(2 * time.Second):
		t.Fatal("select did not return after close")
	}
}

func TestStallBeforeSettleReconnects(t *testing.T) {
	eng := newFakeEngine(nil)
	var once sync.Once
	eng.onPlay = func(gen uint64) {
		once.Do(func() {
			eng.emit(entity.EngineEvent{Type: entity.EventStalled, Gen: gen})
		})
	}
	uc, _, _ := newTestPlayback(t, eng)

	uc.SelectStation(context.Background(), testCatalog[1])

	require.Eventually(t, func() bool {
		return len(eng.loadedURLs()) == 2 && uc.State().IsPlaying
	}, time.Second, 5*time.Millisecond)
}

func TestErrorBeforeSettleIsReported(t *testing.T) {
	eng := newFakeEngine(nil)
	eng.onPlay = func(gen uint64) {
		eng.emit(entity.EngineEvent{Type: entity.EventError, Gen: gen, Code: entity.ErrorDecode, URL: "hit-1"})
	}
	uc, tracker, _ := newTestPlayback(t, eng)

	state := uc.SelectStation(context.Background(), testCatalog[1])
	assert.False(t, state.IsPlaying)
	assert.False(t, state.IsLoading)
	assert.Equal(t, uc.messages.ForCode(entity.ErrorDecode), state.Error)
	assert.Equal(t, 1, tracker.errorCount())

	n := len(tracker.plays)
	eng.emit(entity.EngineEvent{Type: entity.EventPlaying, Gen: eng.currentGen()})
	assert.False(t, uc.State().IsPlaying, "the failed bind stays inactive")
	assert.Equal(t, n, len(tracker.plays))
}

func TestStateIsACopy(t *testing.T) {
	uc, _, _ := newTestPlayback(t, newFakeEngine(nil))
	uc.SelectStation(context.Background(), testCatalog[2])

	state := uc.State()
	state.CurrentStation.Name = "changed"
	state.CurrentStation.AlternativeURLs[0] = "changed"

	fresh := uc.State()
	assert.Equal(t, "SNRT Inter", fresh.CurrentStation.Name)
	assert.Equal(t, "snrt-2", fresh.CurrentStation.AlternativeURLs[0])
	assert.Equal(t, "snrt-2", testCatalog[2].AlternativeURLs[0])
}

func TestUnsubscribe(t *testing.T) {
	uc, _, rec := newTestPlayback(t, newFakeEngine(nil))

	other := &stateRecorder{}
	token := uc.Subscribe(other.observe)
	uc.SetVolume(10)
	uc.Unsubscribe(token)
	uc.SetVolume(20)

	assert.Equal(t, 1, other.count())
	assert.Equal(t, 2, rec.count())
}

func TestCloseClosesEngine(t *testing.T) {
	eng := newFakeEngine(nil)
	uc, _, _ := newTestPlayback(t, eng)

	require.NoError(t, uc.Close())
	assert.True(t, eng.closed)

	state := uc.SelectStation(uc.Context(), testCatalog[0])
	assert.Nil(t, state.CurrentStation)
}
