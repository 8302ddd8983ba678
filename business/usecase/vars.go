package usecase

import (
	"context"

	"nexus-radio/adapter/broker"
	"nexus-radio/business/entity"
)

type Broker interface {
	Start() error
	PublishState(data []byte)
	Subscribe(topic string, handler broker.MessageHandler)
	SetConnectHandler(h broker.ConnectHandler)
	SetDisconnectHandler(h broker.DisconnectHandler)
}

// Engine is the audio resource a PlaybackUseCase drives.
type Engine interface {
	Load(url string) uint64
	Await(ctx context.Context, gen uint64) (entity.StreamInfo, error)
	Play() error
	Pause()
	SetVolume(percent int)
	Reset()
	SetEventCallback(cb entity.EngineEventCallback)
	Close() error
}

// EngineFactory returns a fresh engine that is not connected to the speakers.
type EngineFactory func() Engine

type Tracker interface {
	TrackStationPlay(station *entity.Station)
	TrackError(kind, context string)
}

var (
	stateTopic   string
	commandTopic string
)

func SetStateTopic(t string) {
	stateTopic = t
}

func SetCommandTopic(t string) {
	commandTopic = t
}
