package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	defaultAttemptTimeout = 15 * time.Second
)

type CascadeConfig struct {
	AttemptTimeout time.Duration
}

type CascadeResult struct {
	URL      string
	Gen      uint64
	Info     entity.StreamInfo
	Attempts []entity.AttemptResult
}

// Cascade tries the urls of a station one after another until one plays.
type Cascade struct {
	cfg    *CascadeConfig
	engine Engine
	log    *logger.Zerolog
}

func NewCascade(cfg *CascadeConfig, engine Engine, log *logger.Zerolog) *Cascade {
	if cfg == nil {
		cfg = &CascadeConfig{}
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	return &Cascade{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

// Candidates lists the urls of a station in the order they are tried.
func Candidates(station *entity.Station) []string {
	if station == nil {
		return nil
	}

	res := make([]string, 0, len(station.AlternativeURLs)+2)
	if station.URL != "" {
		res = append(res, station.URL)
	}
	for _, u := range station.AlternativeURLs {
		if u != "" {
			res = append(res, u)
		}
	}
	if station.FallbackURL != "" {
		res = append(res, station.FallbackURL)
	}
	return res
}

func (c *Cascade) Run(ctx context.Context, station *entity.Station) (*CascadeResult, error) {
	urls := Candidates(station)
	if len(urls) == 0 {
		return nil, fmt.Errorf("station %s: %w", station.ID, entity.ErrNoCandidates)
	}

	attempts := make([]entity.AttemptResult, 0, len(urls))

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		gen := c.engine.Load(u)
		info, err := c.attempt(ctx, gen)

		res := entity.AttemptResult{
			URL:     u,
			Gen:     gen,
			Elapsed: time.Since(started),
			Info:    info,
		}

		if err == nil {
			res.Outcome = entity.AttemptSucceeded
			attempts = append(attempts, res)
			c.log.Debug().Msgf("station %s: playing url %d/%d %s (%s)", station.ID, i+1, len(urls), u, res.Elapsed)
			return &CascadeResult{URL: u, Gen: gen, Info: info, Attempts: attempts}, nil
		}

		c.engine.Reset()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res.Err = err
		res.Outcome = entity.AttemptFailed
		if errors.Is(err, entity.ErrTimeout) {
			res.Outcome = entity.AttemptTimedOut
		}
		attempts = append(attempts, res)

		c.log.Warn().Msgf("station %s: url %d/%d %s %s: %v", station.ID, i+1, len(urls), u, res.Outcome, err)
	}

	return nil, pkgerrors.WithStack(&entity.CascadeError{StationID: station.ID, Attempts: attempts})
}

func (c *Cascade) attempt(ctx context.Context, gen uint64) (entity.StreamInfo, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	info, err := c.engine.Await(actx, gen)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return info, entity.ErrTimeout
		}
		return info, err
	}

	if err := c.engine.Play(); err != nil {
		return info, err
	}
	return info, nil
}
