package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/romantomjak/shoutcast"

	"nexus-radio/adapter/hls"
	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

// Source is an opened, not yet decoded, audio resource.
type Source struct {
	Body        io.ReadCloser
	ContentType string
	Info        entity.StreamInfo
}

type Opener interface {
	Open(ctx context.Context, url string, onTitle func(title string)) (*Source, error)
}

// StreamOpener connects to shoutcast/icecast servers, plain HTTP audio and
// HLS playlists.
type StreamOpener struct {
	cfg    *Config
	client *http.Client
	log    *logger.Zerolog
}

func NewStreamOpener(cfg *Config, log *logger.Zerolog) *StreamOpener {
	return &StreamOpener{
		cfg: cfg.withDefaults(),
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				DisableCompression:    true,
			},
		},
		log: log,
	}
}

func (o *StreamOpener) Open(ctx context.Context, rawURL string, onTitle func(title string)) (*Source, error) {
	if hls.IsPlaylistURL(rawURL) {
		return o.openHLS(ctx, rawURL)
	}

	src, err := o.openICY(ctx, rawURL, onTitle)
	if err == nil {
		return src, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return nil, err
	}

	o.log.Debug().Msgf("no icy handshake on %s (%v), using plain http", rawURL, err)
	return o.openHTTP(ctx, rawURL)
}

func (o *StreamOpener) openICY(ctx context.Context, rawURL string, onTitle func(title string)) (*Source, error) {
	type result struct {
		stream *shoutcast.Stream
		err    error
	}

	ch := make(chan result, 1)
	go func() {
		s, err := shoutcast.Open(rawURL)
		ch <- result{stream: s, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.stream != nil {
				_ = r.stream.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		r.stream.MetadataCallbackFunc = func(m *shoutcast.Metadata) {
			o.log.Debug().Msgf("now listening to: %s", m.StreamTitle)
			if onTitle != nil {
				onTitle(m.StreamTitle)
			}
		}

		ct := contentTypeByExt(rawURL)
		if ct == "" {
			ct = "audio/mpeg"
		}
		return &Source{
			Body:        r.stream,
			ContentType: ct,
			Info:        entity.StreamInfo{URL: rawURL, ContentType: ct},
		}, nil
	}
}

func (o *StreamOpener) openHTTP(ctx context.Context, rawURL string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", o.cfg.UserAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &entity.HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	ct := resp.Header.Get("Content-Type")
	if hls.IsPlaylistContentType(ct) {
		resp.Body.Close()
		return o.openHLS(ctx, rawURL)
	}

	bitrate, _ := strconv.Atoi(resp.Header.Get("icy-br"))
	return &Source{
		Body:        resp.Body,
		ContentType: ct,
		Info: entity.StreamInfo{
			URL:         rawURL,
			ContentType: ct,
			Name:        resp.Header.Get("icy-name"),
			Bitrate:     bitrate,
		},
	}, nil
}

func (o *StreamOpener) openHLS(ctx context.Context, rawURL string) (*Source, error) {
	r, err := hls.Open(ctx, o.client, rawURL, &hls.Config{UserAgent: o.cfg.UserAgent}, o.log)
	if err != nil {
		return nil, err
	}
	return &Source{
		Body:        r,
		ContentType: r.ContentType(),
		Info:        entity.StreamInfo{URL: rawURL, ContentType: r.ContentType(), HLS: true},
	}, nil
}
