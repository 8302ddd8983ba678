package entity

type ProbeStatus string

const (
	ProbeSuccess     ProbeStatus = "success"
	ProbeFailed      ProbeStatus = "failed"
	ProbeTimeout     ProbeStatus = "timeout"
	ProbeCORSBlocked ProbeStatus = "cors-blocked"
)

type ProbeResult struct {
	URL            string      `json:"url"`
	Status         ProbeStatus `json:"status"`
	ResponseTimeMs int64       `json:"response_time_ms"`
	Error          string      `json:"error,omitempty"`
	Format         string      `json:"format,omitempty"`
	IsHLS          bool        `json:"is_hls"`
}
