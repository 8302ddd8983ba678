package engine

import (
	"time"

	"github.com/faiface/beep"
	"github.com/hajimehoshi/oto"
)

// Output is the physical sink the engine writes 16 bit stereo PCM into.
type Output interface {
	SampleRate() beep.SampleRate
	Write(p []byte) (int, error)
	Close() error
}

type OtoOutput struct {
	rate    beep.SampleRate
	context *oto.Context
	player  *oto.Player
}

// NewOtoOutput opens the sound device once; the same player is reused by
// every station the engine binds.
func NewOtoOutput(sampleRate int, buffer time.Duration) (*OtoOutput, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	rate := beep.SampleRate(sampleRate)

	ctx, err := oto.NewContext(sampleRate, 2, 2, rate.N(buffer)*bytesPerFrame)
	if err != nil {
		return nil, err
	}

	return &OtoOutput{
		rate:    rate,
		context: ctx,
		player:  ctx.NewPlayer(),
	}, nil
}

func (o *OtoOutput) SampleRate() beep.SampleRate {
	return o.rate
}

func (o *OtoOutput) Write(p []byte) (int, error) {
	return o.player.Write(p)
}

func (o *OtoOutput) Close() error {
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.context.Close()
}

// MutedOutput discards samples. Probe engines use it so that diagnosis never
// reaches the speakers.
type MutedOutput struct {
	rate beep.SampleRate
}

func NewMutedOutput(sampleRate int) *MutedOutput {
	return &MutedOutput{rate: beep.SampleRate(sampleRate)}
}

func (o *MutedOutput) SampleRate() beep.SampleRate {
	return o.rate
}

func (o *MutedOutput) Write(p []byte) (int, error) {
	return len(p), nil
}

func (o *MutedOutput) Close() error {
	return nil
}
