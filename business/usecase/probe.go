package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nexus-radio/adapter/hls"
	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	defaultProbeTimeout     = 10 * time.Second
	defaultProbeConcurrency = 8
	defaultProbeUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) nexus-radio/1.0"
)

type ProbeConfig struct {
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
}

// ProbeUseCase checks stream urls without touching the playback state.
type ProbeUseCase struct {
	cfg     *ProbeConfig
	client  *http.Client
	factory EngineFactory
	log     *logger.Zerolog
}

func NewProbeUseCase(cfg *ProbeConfig, factory EngineFactory, log *logger.Zerolog) *ProbeUseCase {
	if cfg == nil {
		cfg = &ProbeConfig{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultProbeConcurrency
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultProbeUserAgent
	}

	return &ProbeUseCase{
		cfg:     cfg,
		client:  &http.Client{},
		factory: factory,
		log:     log,
	}
}

// IsHLS reports whether the url or the content type point to an HLS playlist.
func IsHLS(url, contentType string) bool {
	return hls.IsPlaylistURL(url) || hls.IsPlaylistContentType(contentType)
}

func (uc *ProbeUseCase) TestStream(ctx context.Context, url string) entity.ProbeResult {
	started := time.Now()
	res := entity.ProbeResult{
		URL:   url,
		IsHLS: IsHLS(url, ""),
	}

	pctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	uc.head(pctx, &res)

	res.ResponseTimeMs = time.Since(started).Milliseconds()
	uc.log.Debug().Msgf("probe %s: %s in %dms %s", url, res.Status, res.ResponseTimeMs, res.Error)

	return res
}

func (uc *ProbeUseCase) head(ctx context.Context, res *entity.ProbeResult) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, res.URL, nil)
	if err != nil {
		res.Status = entity.ProbeFailed
		res.Error = err.Error()
		return
	}
	req.Header.Set("User-Agent", uc.cfg.UserAgent)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := uc.client.Do(req)
	if err != nil {
		switch {
		case isTimeout(err):
			res.Status = entity.ProbeTimeout
			res.Error = "Request timeout"
		case isMalformedResponse(err):
			uc.playback(ctx, res)
		default:
			res.Status = entity.ProbeFailed
			res.Error = err.Error()
		}
		return
	}
	resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	res.IsHLS = IsHLS(res.URL, ct)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.Status = entity.ProbeSuccess
		res.Format = ct
	case resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotImplemented:
		uc.playback(ctx, res)
	default:
		res.Status = entity.ProbeFailed
		res.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
}

// playback loads the url into a muted throwaway engine when the server
// refuses to answer a plain HEAD request.
func (uc *ProbeUseCase) playback(ctx context.Context, res *entity.ProbeResult) {
	if uc.factory == nil {
		res.Status = entity.ProbeCORSBlocked
		res.Error = "Request blocked by the server"
		return
	}

	eng := uc.factory()
	defer func() {
		if err := eng.Close(); err != nil {
			uc.log.Error().Msgf("failed to close probe engine: %v", err)
		}
	}()

	info, err := eng.Await(ctx, eng.Load(res.URL))
	switch {
	case err == nil:
		res.Status = entity.ProbeSuccess
		res.Format = info.ContentType
		if res.Format == "" {
			res.Format = "audio/*"
		}
		res.IsHLS = res.IsHLS || info.HLS
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = entity.ProbeTimeout
		res.Error = "Audio load timeout"
	default:
		res.Status = entity.ProbeFailed
		res.Error = fmt.Sprintf("Audio error: %d - %v", entity.CodeOf(err), err)
	}
}

// TestMultipleStreams probes all urls concurrently. Results keep the order
// of urls.
func (uc *ProbeUseCase) TestMultipleStreams(ctx context.Context, urls []string) []entity.ProbeResult {
	results := make([]entity.ProbeResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = uc.TestStream(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FindWorkingStream probes urls one by one and returns the first success,
// nil when none works.
func (uc *ProbeUseCase) FindWorkingStream(ctx context.Context, urls []string) *entity.ProbeResult {
	for _, u := range urls {
		if ctx.Err() != nil {
			return nil
		}
		res := uc.TestStream(ctx, u)
		if res.Status == entity.ProbeSuccess {
			return &res
		}
	}
	return nil
}

func (uc *ProbeUseCase) TestStation(ctx context.Context, station *entity.Station) []entity.ProbeResult {
	return uc.TestMultipleStreams(ctx, Candidates(station))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isMalformedResponse matches servers that answer with something other than
// HTTP/1.x, such as old shoutcast servers replying "ICY 200 OK".
func isMalformedResponse(err error) bool {
	return strings.Contains(err.Error(), "malformed HTTP")
}
