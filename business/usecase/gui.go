package usecase

import (
	"encoding/json"
	"regexp"
	"sync"

	"github.com/gen2brain/beeep"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

type GUIConfig struct {
	Icon string
}

type GUIUseCase struct {
	cfg    *GUIConfig
	broker Broker
	log    *logger.Zerolog
	notify func(title, message, appIcon string) error
	mu     sync.Mutex
	last   entity.PlaybackState
}

var (
	trackRe = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

func NewGUIUseCase(cfg *GUIConfig, broker Broker, log *logger.Zerolog) (*GUIUseCase, error) {
	if cfg == nil {
		cfg = &GUIConfig{}
	}
	uc := &GUIUseCase{
		cfg:    cfg,
		broker: broker,
		log:    log,
		notify: beeep.Notify,
	}

	uc.broker.SetConnectHandler(uc.OnConnect)

	return uc, uc.broker.Start()
}

func (uc *GUIUseCase) OnConnect() {
	uc.broker.Subscribe(stateTopic, func(topic string, payload []byte) {
		uc.log.Debug().Msgf("%s - %s", topic, string(payload))

		state, err := uc.parseState(payload)
		if err != nil {
			uc.log.Error().Msgf("failed to parse state: %v", err)
			return
		}

		uc.show(state)
	})
}

func (uc *GUIUseCase) parseState(payload []byte) (*entity.PlaybackState, error) {
	state := &entity.PlaybackState{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, err
	}
	return state, nil
}

// show raises a desktop notification when the station, the track or the
// error changed since the previous state.
func (uc *GUIUseCase) show(state *entity.PlaybackState) {
	uc.mu.Lock()
	prev := uc.last
	uc.last = state.Clone()
	uc.mu.Unlock()

	st := state.CurrentStation
	if st == nil || st.Name == "" {
		return
	}

	stationChanged := prev.CurrentStation == nil || prev.CurrentStation.ID != st.ID
	trackChanged := state.Track != "" && state.Track != prev.Track
	errorChanged := state.Error != "" && state.Error != prev.Error
	if !stationChanged && !trackChanged && !errorChanged {
		return
	}

	title := st.Name
	if st.NameEn != "" && st.NameEn != st.Name {
		title += " • " + st.NameEn
	}
	switch {
	case state.IsLoading:
		title += " [LOADING]"
	case !state.IsPlaying && state.Error == "":
		title += " [PAUSE]"
	}

	message := uc.prepareTrackName(state.Track)
	switch {
	case state.Error != "":
		message = state.Error
	case message == "":
		message = st.Description
	}

	if err := uc.notify(title, message, uc.cfg.Icon); err != nil {
		uc.log.Error().Msgf("failed to show notification: %v", err)
	}
}

func (uc *GUIUseCase) prepareTrackName(t string) string {
	// ICY titles sometimes carry control bytes from the metadata block padding
	return trackRe.ReplaceAllLiteralString(t, "")
}
