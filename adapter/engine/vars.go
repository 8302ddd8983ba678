package engine

import (
	"time"
)

const (
	defaultSampleRate   = 44100
	defaultBufferSize   = 250 * time.Millisecond
	defaultChunkSamples = 1024
	defaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) nexus-radio/1.0"

	bytesPerFrame   = 4 // stereo, 16 bit
	resampleQuality = 4
	volumeBase      = 2
	minVolumeDB     = -10.0
	volumeCurve     = 0.5
	eventQueueSize  = 64
)

type Config struct {
	SampleRate   int
	BufferSize   time.Duration
	ChunkSamples int
	UserAgent    string
}

func (c *Config) withDefaults() *Config {
	res := Config{}
	if c != nil {
		res = *c
	}
	if res.SampleRate <= 0 {
		res.SampleRate = defaultSampleRate
	}
	if res.BufferSize <= 0 {
		res.BufferSize = defaultBufferSize
	}
	if res.ChunkSamples <= 0 {
		res.ChunkSamples = defaultChunkSamples
	}
	if res.UserAgent == "" {
		res.UserAgent = defaultUserAgent
	}
	return &res
}
