package logger

import (
	stdlog "log"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

type Zerolog struct {
	zerolog.Logger
}

type ZeroConfig struct {
	Level             string
	TimeFieldFormat   string
	PrettyPrint       bool
	DisableSampling   bool
	RedirectStdLogger bool
	ErrorStack        bool
	ShowCaller        bool
}

const (
	defaultLevel           = zerolog.InfoLevel
	defaultTimeFieldFormat = time.RFC3339
)

func NewDefaultZerolog() *Zerolog {
	return NewZerolog(ZeroConfig{
		Level:           defaultLevel.String(),
		TimeFieldFormat: defaultTimeFieldFormat,
		PrettyPrint:     true,
		DisableSampling: true,
	})
}

func NewZerolog(cfg ZeroConfig) *Zerolog {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = defaultLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = defaultTimeFieldFormat
	if cfg.TimeFieldFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFieldFormat
	}

	if cfg.ErrorStack {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	}

	var l zerolog.Logger
	if cfg.PrettyPrint {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: zerolog.TimeFieldFormat})
	} else {
		l = zerolog.New(os.Stderr)
	}

	ctx := l.With().Timestamp()
	if cfg.ShowCaller {
		ctx = ctx.Caller()
	}
	l = ctx.Logger()

	if !cfg.DisableSampling {
		l = l.Sample(zerolog.LevelSampler{
			DebugSampler: &zerolog.BurstSampler{
				Burst:       20,
				Period:      time.Second,
				NextSampler: &zerolog.BasicSampler{N: 50},
			},
		})
	}

	// third-party packages (shoutcast) write through the std logger
	if cfg.RedirectStdLogger {
		stdlog.SetFlags(0)
		stdlog.SetOutput(l.With().Str("source", "stdlog").Logger())
	}

	return &Zerolog{Logger: l}
}

// Component returns a child logger tagged with the component name.
func (z *Zerolog) Component(name string) *Zerolog {
	return &Zerolog{Logger: z.With().Str("component", name).Logger()}
}

// Nop returns a logger that discards everything, mostly for tests.
func Nop() *Zerolog {
	return &Zerolog{Logger: zerolog.Nop()}
}
