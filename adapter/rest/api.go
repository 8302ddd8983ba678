package rest

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	probeModeAll   = "all"
	probeModeFirst = "first"
	eventBuffer    = 16
)

type API struct {
	playback PlaybackUseCase
	probe    ProbeUseCase
	stats    StatsProvider
	log      *logger.Zerolog
}

type VolumeRequest struct {
	Volume *int `json:"volume" binding:"required"`
}

type ProbeRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
	Mode string   `json:"mode"`
}

func NewAPI(playback PlaybackUseCase, probe ProbeUseCase, stats StatsProvider, log *logger.Zerolog) *API {
	return &API{
		playback: playback,
		probe:    probe,
		stats:    stats,
		log:      log,
	}
}

func (a *API) Stations(c *gin.Context) {
	c.JSON(http.StatusOK, a.playback.Catalog())
}

func (a *API) State(c *gin.Context) {
	c.JSON(http.StatusOK, a.playback.State())
}

// Select starts a station. With ?wait=true the reply carries the settled
// state, otherwise the request returns as soon as the station is accepted.
func (a *API) Select(c *gin.Context) {
	id := c.Param("id")

	if station, _ := a.playback.Catalog().Find(id); station == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": entity.ErrUnknownStation.Error()})
		return
	}

	if wait(c) {
		state, err := a.playback.SelectStationByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, state)
		return
	}

	go func() {
		if _, err := a.playback.SelectStationByID(a.playback.Context(), id); err != nil {
			a.log.Error().Msgf("failed to select station %s: %v", id, err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (a *API) Toggle(c *gin.Context) {
	a.control(c, a.playback.TogglePlayPause)
}

func (a *API) Next(c *gin.Context) {
	a.control(c, a.playback.NextStation)
}

func (a *API) Prev(c *gin.Context) {
	a.control(c, a.playback.PrevStation)
}

func (a *API) Volume(c *gin.Context) {
	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.playback.SetVolume(*req.Volume))
}

func (a *API) Probe(c *gin.Context) {
	var req ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Mode {
	case "", probeModeAll:
		c.JSON(http.StatusOK, a.probe.TestMultipleStreams(c.Request.Context(), req.URLs))
	case probeModeFirst:
		res := a.probe.FindWorkingStream(c.Request.Context(), req.URLs)
		if res == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no working stream"})
			return
		}
		c.JSON(http.StatusOK, res)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode " + req.Mode})
	}
}

func (a *API) ProbeStation(c *gin.Context) {
	station, _ := a.playback.Catalog().Find(c.Param("id"))
	if station == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": entity.ErrUnknownStation.Error()})
		return
	}
	c.JSON(http.StatusOK, a.probe.TestStation(c.Request.Context(), station))
}

func (a *API) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, a.stats.Stats())
}

// Events streams every state change as a server-sent event.
func (a *API) Events(c *gin.Context) {
	ch := make(chan entity.PlaybackState, eventBuffer)
	token := a.playback.Subscribe(func(state entity.PlaybackState) {
		select {
		case ch <- state:
		default:
			a.log.Warn().Msg("sse client too slow, state dropped")
		}
	})
	defer a.playback.Unsubscribe(token)

	c.SSEvent("state", a.playback.State())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-a.playback.Context().Done():
			return false
		case state := <-ch:
			c.SSEvent("state", state)
			return true
		}
	})
}

func (a *API) control(c *gin.Context, op func(ctx context.Context) entity.PlaybackState) {
	if wait(c) {
		c.JSON(http.StatusOK, op(c.Request.Context()))
		return
	}
	go op(a.playback.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func wait(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.DefaultQuery("wait", "false"))
	return err == nil && v
}
