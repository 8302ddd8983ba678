package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"

	"nexus-radio/business/entity"
)

// classify maps a failure to a media error code. fallback is used when
// the error carries no better hint.
func classify(err error, rawURL string, fallback entity.ErrorCode) *entity.PlaybackError {
	var pe *entity.PlaybackError
	if errors.As(err, &pe) {
		return pe
	}

	code := fallback

	var (
		statusErr *entity.HTTPStatusError
		urlErr    *url.Error
		netErr    net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		code = entity.ErrorAborted
	case errors.Is(err, errUnsupportedFormat):
		code = entity.ErrorFormatUnsupported
	case errors.As(err, &statusErr):
		// a missing resource is what browsers report as an unsupported source
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			code = entity.ErrorFormatUnsupported
		} else {
			code = entity.ErrorNetwork
		}
	case errors.As(err, &urlErr),
		errors.As(err, &netErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded):
		code = entity.ErrorNetwork
	}

	return &entity.PlaybackError{Code: code, URL: rawURL, Err: err}
}
