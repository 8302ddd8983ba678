package engine

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

type audioFormat int

const (
	formatUnsupported audioFormat = iota
	formatMP3
	formatVorbis
	formatFLAC
	formatWAV
)

var errUnsupportedFormat = errors.New("unsupported stream format")

func decode(src *Source, rawURL string) (beep.StreamSeekCloser, beep.Format, error) {
	switch formatOf(src.ContentType, rawURL) {
	case formatMP3:
		return mp3.Decode(src.Body)
	case formatVorbis:
		return vorbis.Decode(src.Body)
	case formatFLAC:
		return flac.Decode(src.Body)
	case formatWAV:
		return wav.Decode(src.Body)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", errUnsupportedFormat, src.ContentType)
	}
}

func formatOf(contentType, rawURL string) audioFormat {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	switch {
	case ct == "", ct == "application/octet-stream", ct == "binary/octet-stream":
		return formatByExt(rawURL)
	case strings.Contains(ct, "mpegurl"),
		strings.Contains(ct, "aac"),
		strings.Contains(ct, "mp2t"),
		strings.Contains(ct, "mp4"),
		strings.Contains(ct, "m4a"),
		strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "html"),
		strings.Contains(ct, "json"),
		strings.Contains(ct, "xml"):
		return formatUnsupported
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return formatMP3
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "vorbis"):
		return formatVorbis
	case strings.Contains(ct, "flac"):
		return formatFLAC
	case strings.Contains(ct, "wav"), strings.Contains(ct, "wave"):
		return formatWAV
	}

	// most radio servers that send something exotic still serve mp3
	return formatMP3
}

func formatByExt(rawURL string) audioFormat {
	switch ext(rawURL) {
	case ".ogg", ".oga":
		return formatVorbis
	case ".flac":
		return formatFLAC
	case ".wav":
		return formatWAV
	case ".aac", ".aacp", ".m4a", ".mp4", ".ts":
		return formatUnsupported
	default:
		return formatMP3
	}
}

func contentTypeByExt(rawURL string) string {
	switch ext(rawURL) {
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".aac", ".aacp":
		return "audio/aac"
	}
	return ""
}

func ext(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
