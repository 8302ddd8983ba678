package usecase

import (
	"encoding/json"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

// BrokerUseCase mirrors the playback state to the broker and executes the
// commands published on the command topic.
type BrokerUseCase struct {
	broker   Broker
	playback *PlaybackUseCase
	commands *CommandUseCase
	log      *logger.Zerolog
	token    string
}

func NewBrokerUseCase(broker Broker, playback *PlaybackUseCase, commands *CommandUseCase, log *logger.Zerolog) (*BrokerUseCase, error) {
	uc := &BrokerUseCase{
		broker:   broker,
		playback: playback,
		commands: commands,
		log:      log,
	}

	uc.broker.SetConnectHandler(uc.OnConnect)
	uc.broker.SetDisconnectHandler(uc.OnDisconnect)
	uc.token = uc.playback.Subscribe(uc.publish)

	return uc, uc.broker.Start()
}

func (uc *BrokerUseCase) OnConnect() {
	uc.log.Info().Msg("broker connected")

	uc.publish(uc.playback.State())

	if commandTopic == "" {
		return
	}
	uc.broker.Subscribe(commandTopic, func(topic string, payload []byte) {
		reply := uc.commands.Execute(uc.playback.Context(), string(payload))
		uc.log.Debug().Msgf("%s - %s -> %s", topic, string(payload), reply)
	})
}

func (uc *BrokerUseCase) OnDisconnect(err error) {
	uc.log.Warn().Msgf("broker connection lost: %v", err)
}

func (uc *BrokerUseCase) Close() {
	uc.playback.Unsubscribe(uc.token)
}

func (uc *BrokerUseCase) publish(state entity.PlaybackState) {
	data, err := json.Marshal(state)
	if err != nil {
		uc.log.Error().Msgf("failed to marshal state: %v", err)
		return
	}
	uc.broker.PublishState(data)
}
