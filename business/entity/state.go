package entity

type PlaybackState struct {
	CurrentStation *Station `json:"current_station"`
	IsPlaying      bool     `json:"is_playing"`
	Volume         int      `json:"volume"`
	IsLoading      bool     `json:"is_loading"`
	Error          string   `json:"error,omitempty"`
	Track          string   `json:"track,omitempty"`
}

const DefaultVolume = 70

func NewPlaybackState() PlaybackState {
	return PlaybackState{Volume: DefaultVolume}
}

func (s PlaybackState) Clone() PlaybackState {
	s.CurrentStation = s.CurrentStation.Clone()
	return s
}

func (s PlaybackState) Equal(o PlaybackState) bool {
	if s.IsPlaying != o.IsPlaying || s.Volume != o.Volume || s.IsLoading != o.IsLoading ||
		s.Error != o.Error || s.Track != o.Track {
		return false
	}
	if s.CurrentStation == nil || o.CurrentStation == nil {
		return s.CurrentStation == o.CurrentStation
	}
	return s.CurrentStation.ID == o.CurrentStation.ID
}

func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type StateObserver func(state PlaybackState)
