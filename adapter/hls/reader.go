package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/grafov/m3u8"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	minPollInterval = time.Second
	maxPollInterval = 10 * time.Second
)

var (
	ErrEmptyPlaylist = errors.New("hls: playlist has no segments")
	ErrNoVariant     = errors.New("hls: master playlist has no playable variant")
)

type Config struct {
	UserAgent string
}

type segment struct {
	seq uint64
	uri string
}

// Reader exposes the segments of an HLS media playlist as one continuous
// byte stream. Live playlists are re-polled until the reader is closed.
type Reader struct {
	cfg         *Config
	client      *http.Client
	log         *logger.Zerolog
	ctx         context.Context
	cancel      context.CancelFunc
	pr          *io.PipeReader
	pw          *io.PipeWriter
	wg          sync.WaitGroup
	mediaURL    *url.URL
	contentType string
	nextSeq     uint64
}

// IsPlaylistURL reports whether the url looks like an HLS manifest.
func IsPlaylistURL(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), ".m3u8")
}

// IsPlaylistContentType reports whether the content type is an HLS manifest.
func IsPlaylistContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "mpegurl")
}

func Open(ctx context.Context, client *http.Client, rawURL string, cfg *Config, log *logger.Zerolog) (*Reader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	rctx, cancel := context.WithCancel(context.Background())
	r := &Reader{
		cfg:    cfg,
		client: client,
		log:    log,
		ctx:    rctx,
		cancel: cancel,
	}

	media, mediaURL, err := r.resolveMedia(ctx, rawURL)
	if err != nil {
		cancel()
		return nil, err
	}
	r.mediaURL = mediaURL

	segments := r.segments(media)
	if len(segments) == 0 {
		cancel()
		return nil, ErrEmptyPlaylist
	}

	first := segments[0]
	body, ct, err := r.fetchSegment(ctx, first.uri)
	if err != nil {
		cancel()
		return nil, err
	}
	r.contentType = ct
	r.nextSeq = first.seq + 1

	r.pr, r.pw = io.Pipe()

	r.wg.Add(1)
	go r.run(body, segments[1:], media)

	return r, nil
}

func (r *Reader) ContentType() string {
	return r.contentType
}

func (r *Reader) Read(p []byte) (int, error) {
	return r.pr.Read(p)
}

func (r *Reader) Close() error {
	r.cancel()
	err := r.pr.Close()
	r.wg.Wait()
	return err
}

func (r *Reader) run(first io.ReadCloser, pending []segment, media *m3u8.MediaPlaylist) {
	var runErr error
	defer func() {
		r.wg.Done()
		if runErr != nil {
			r.pw.CloseWithError(runErr)
		} else {
			r.pw.Close()
		}
	}()

	if runErr = r.copy(first); runErr != nil {
		return
	}

	for {
		for _, seg := range pending {
			if r.ctx.Err() != nil {
				return
			}
			body, _, err := r.fetchSegment(r.ctx, seg.uri)
			if err != nil {
				runErr = err
				return
			}
			if runErr = r.copy(body); runErr != nil {
				return
			}
			r.nextSeq = seg.seq + 1
		}

		if media.Closed {
			r.log.Debug().Msgf("hls playlist ended: %s", r.mediaURL)
			return
		}

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(pollInterval(media.TargetDuration)):
		}

		pl, err := r.fetchPlaylist(r.ctx, r.mediaURL)
		if err != nil {
			runErr = err
			return
		}
		var ok bool
		if media, ok = pl.(*m3u8.MediaPlaylist); !ok {
			runErr = fmt.Errorf("hls: %s is no longer a media playlist", r.mediaURL)
			return
		}
		pending = r.segments(media)
	}
}

func (r *Reader) copy(body io.ReadCloser) error {
	defer body.Close()
	if _, err := io.Copy(r.pw, body); err != nil {
		if r.ctx.Err() != nil || errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		return fmt.Errorf("hls: segment read: %w", err)
	}
	return nil
}

// segments returns the not yet consumed segments of the playlist, resolved
// against the media playlist url.
func (r *Reader) segments(media *m3u8.MediaPlaylist) []segment {
	res := make([]segment, 0, media.Count())
	for i, s := range media.Segments {
		if s == nil {
			continue
		}
		seq := media.SeqNo + uint64(i)
		if r.nextSeq > 0 && seq < r.nextSeq {
			continue
		}
		res = append(res, segment{seq: seq, uri: resolve(r.mediaURL, s.URI)})
	}
	return res
}

func (r *Reader) resolveMedia(ctx context.Context, rawURL string) (*m3u8.MediaPlaylist, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, err
	}

	pl, err := r.fetchPlaylist(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	switch p := pl.(type) {
	case *m3u8.MediaPlaylist:
		return p, u, nil
	case *m3u8.MasterPlaylist:
		// no adaptive switching: the first listed variant is used
		for _, v := range p.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			vu, err := url.Parse(resolve(u, v.URI))
			if err != nil {
				return nil, nil, err
			}
			r.log.Debug().Msgf("hls variant selected: %s (bandwidth %d)", vu, v.Bandwidth)
			vpl, err := r.fetchPlaylist(ctx, vu)
			if err != nil {
				return nil, nil, err
			}
			media, ok := vpl.(*m3u8.MediaPlaylist)
			if !ok {
				return nil, nil, fmt.Errorf("hls: nested master playlist at %s", vu)
			}
			return media, vu, nil
		}
		return nil, nil, ErrNoVariant
	default:
		return nil, nil, fmt.Errorf("hls: unexpected playlist type at %s", u)
	}
}

func (r *Reader) fetchPlaylist(ctx context.Context, u *url.URL) (m3u8.Playlist, error) {
	resp, err := r.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	pl, _, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, fmt.Errorf("hls: decode playlist %s: %w", u, err)
	}
	return pl, nil
}

func (r *Reader) fetchSegment(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	resp, err := r.get(ctx, uri)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, segmentContentType(uri, resp.Header.Get("Content-Type")), nil
}

func (r *Reader) get(ctx context.Context, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &entity.HTTPStatusError{URL: uri, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}
	return resp, nil
}

func segmentContentType(uri, header string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	switch ct {
	case "", "application/octet-stream", "binary/octet-stream":
	case "text/plain":
		// what servers without a mime table, and Go's sniffer, fall back to
		ct = ""
	default:
		return ct
	}

	p := uri
	if u, err := url.Parse(uri); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".mp3":
		return "audio/mpeg"
	case ".aac":
		return "audio/aac"
	case ".ts":
		return "video/mp2t"
	case ".m4s", ".mp4", ".m4a":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	}
	return ct
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func pollInterval(target float64) time.Duration {
	d := time.Duration(target * float64(time.Second) / 2)
	if d < minPollInterval {
		return minPollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}
