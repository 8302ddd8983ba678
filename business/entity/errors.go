package entity

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode int

// Codes follow the HTML media error numbering.
const (
	ErrorAborted           ErrorCode = 1
	ErrorNetwork           ErrorCode = 2
	ErrorDecode            ErrorCode = 3
	ErrorFormatUnsupported ErrorCode = 4
	ErrorUnknown           ErrorCode = 5
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorAborted:
		return "aborted"
	case ErrorNetwork:
		return "network"
	case ErrorDecode:
		return "decode"
	case ErrorFormatUnsupported:
		return "format-unsupported"
	default:
		return "unknown"
	}
}

var (
	ErrTimeout             = errors.New("connection timeout")
	ErrAllCandidatesFailed = errors.New("all stream urls failed")
	ErrPlaybackRejected    = errors.New("playback rejected: source is not ready")
	ErrUnknownStation      = errors.New("unknown station")
	ErrNoCandidates        = errors.New("station has no stream urls")
)

type PlaybackError struct {
	Code ErrorCode
	URL  string
	Err  error
}

func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error on %s", e.Code, e.URL)
	}
	return fmt.Sprintf("%s error on %s: %v", e.Code, e.URL, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the media error code carried by err.
func CodeOf(err error) ErrorCode {
	var pe *PlaybackError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, context.Canceled):
		return ErrorAborted
	default:
		return ErrorUnknown
	}
}

type CascadeError struct {
	StationID string
	Attempts  []AttemptResult
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("station %s: %v after %d attempts", e.StationID, ErrAllCandidatesFailed, len(e.Attempts))
}

func (e *CascadeError) Unwrap() error {
	return ErrAllCandidatesFailed
}

// HTTPStatusError reports a non-2xx answer from a stream or playlist server.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
