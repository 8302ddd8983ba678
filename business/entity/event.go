package entity

import (
	"time"
)

type EngineEventType string

const (
	EventLoadingStarted EngineEventType = "loading-started"
	EventReady          EngineEventType = "ready"
	EventPlaying        EngineEventType = "playing"
	EventPaused         EngineEventType = "paused"
	EventStalled        EngineEventType = "stalled"
	EventError          EngineEventType = "error"
	EventMetadata       EngineEventType = "metadata"
)

// EngineEvent is a resource-level notification. Gen identifies the bind it
// belongs to, so consumers can drop events of superseded binds.
type EngineEvent struct {
	Type  EngineEventType
	Gen   uint64
	URL   string
	Code  ErrorCode
	Err   error
	Title string
}

type EngineEventCallback func(ev EngineEvent)

type StreamInfo struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Name        string `json:"name,omitempty"`
	Bitrate     int    `json:"bitrate,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	HLS         bool   `json:"hls"`
}

type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
	AttemptTimedOut  AttemptOutcome = "timed-out"
)

type AttemptResult struct {
	URL     string
	Outcome AttemptOutcome
	Err     error
	Elapsed time.Duration
	Gen     uint64
	Info    StreamInfo
}
