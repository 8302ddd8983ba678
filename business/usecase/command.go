package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	replyOK = "OK"
)

// CommandUseCase executes the text commands received over the unix socket
// and the broker command topic. Every command yields one reply line.
type CommandUseCase struct {
	playback *PlaybackUseCase
	probe    *ProbeUseCase
	log      *logger.Zerolog
}

func NewCommandUseCase(playback *PlaybackUseCase, probe *ProbeUseCase, log *logger.Zerolog) *CommandUseCase {
	return &CommandUseCase{
		playback: playback,
		probe:    probe,
		log:      log,
	}
}

func (uc *CommandUseCase) Execute(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return replyError("empty command")
	}

	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	uc.log.Debug().Msgf("command: %s %v", verb, args)

	switch verb {
	case "PING":
		return "PONG"

	case "STATE":
		return uc.json(uc.playback.State())

	case "STATIONS":
		return uc.json(uc.playback.Catalog())

	case "SELECT":
		if len(args) != 1 {
			return replyError("usage: SELECT <station id>")
		}
		station, _ := uc.playback.Catalog().Find(args[0])
		if station == nil {
			return replyError(entity.ErrUnknownStation.Error())
		}
		go uc.playback.SelectStation(uc.playback.Context(), station)
		return replyOK

	case "TOGGLE":
		go uc.playback.TogglePlayPause(uc.playback.Context())
		return replyOK

	case "NEXT":
		go uc.playback.NextStation(uc.playback.Context())
		return replyOK

	case "PREV":
		go uc.playback.PrevStation(uc.playback.Context())
		return replyOK

	case "VOLUME":
		if len(args) != 1 {
			return replyError("usage: VOLUME <0..100>")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return replyError("invalid volume " + args[0])
		}
		uc.playback.SetVolume(v)
		return replyOK

	case "PROBE":
		if len(args) != 1 {
			return replyError("usage: PROBE <url>")
		}
		return uc.json(uc.probe.TestStream(ctx, args[0]))

	case "PROBE-STATION":
		if len(args) != 1 {
			return replyError("usage: PROBE-STATION <station id>")
		}
		station, _ := uc.playback.Catalog().Find(args[0])
		if station == nil {
			return replyError(entity.ErrUnknownStation.Error())
		}
		return uc.json(uc.probe.TestStation(ctx, station))

	case "FIND":
		if len(args) == 0 {
			return replyError("usage: FIND <url> [url...]")
		}
		return uc.json(uc.probe.FindWorkingStream(ctx, args))
	}

	return replyError("unknown command " + verb)
}

func (uc *CommandUseCase) json(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		uc.log.Error().Msgf("failed to marshal reply: %v", err)
		return replyError(err.Error())
	}
	return string(data)
}

func replyError(msg string) string {
	return "ERR " + msg
}
