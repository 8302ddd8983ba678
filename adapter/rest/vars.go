package rest

import (
	"context"

	"nexus-radio/adapter/analytics"
	"nexus-radio/business/entity"
)

type PlaybackUseCase interface {
	Context() context.Context
	Catalog() entity.Catalog
	State() entity.PlaybackState
	SelectStationByID(ctx context.Context, id string) (entity.PlaybackState, error)
	TogglePlayPause(ctx context.Context) entity.PlaybackState
	NextStation(ctx context.Context) entity.PlaybackState
	PrevStation(ctx context.Context) entity.PlaybackState
	SetVolume(v int) entity.PlaybackState
	Subscribe(cb entity.StateObserver) string
	Unsubscribe(token string)
}

type ProbeUseCase interface {
	TestMultipleStreams(ctx context.Context, urls []string) []entity.ProbeResult
	FindWorkingStream(ctx context.Context, urls []string) *entity.ProbeResult
	TestStation(ctx context.Context, station *entity.Station) []entity.ProbeResult
}

type StatsProvider interface {
	Stats() analytics.Stats
}
