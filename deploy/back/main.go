package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soellman/pidfile"

	"nexus-radio/adapter/analytics"
	"nexus-radio/adapter/broker"
	"nexus-radio/adapter/engine"
	"nexus-radio/adapter/rest"
	"nexus-radio/adapter/uds"
	"nexus-radio/business/usecase"
	"nexus-radio/pkg/logger"
)

var (
	log *logger.Zerolog

	brokerClient *broker.Client
	udsServer    *uds.Server
	restServer   *rest.Server
	output       *engine.OtoOutput
	opener       *engine.StreamOpener
	player       *engine.Engine
	tracker      *analytics.Tracker

	playbackUseCase *usecase.PlaybackUseCase
	probeUseCase    *usecase.ProbeUseCase
	commandUseCase  *usecase.CommandUseCase
	brokerUseCase   *usecase.BrokerUseCase
)

// GOOS=linux GOARCH=arm go build

func main() {
	defer shutdown()

	log = logger.NewZerolog(logger.ZeroConfig{
		Level:             cfg.Logger.Level,
		TimeFieldFormat:   cfg.Logger.TimeFieldFormat,
		PrettyPrint:       cfg.Logger.PrettyPrint,
		DisableSampling:   cfg.Logger.DisableSampling,
		RedirectStdLogger: cfg.Logger.RedirectStdLogger,
		ErrorStack:        cfg.Logger.ErrorStack,
		ShowCaller:        cfg.Logger.ShowCaller,
	})

	if err := pidfile.Write(cfg.PidFile); err != nil {
		log.Fatal().Msgf("failed to create pid file: %v", err)
	}

	initAdapters()
	initUseCases()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func initAdapters() {
	engineCfg := &engine.Config{
		SampleRate: cfg.Engine.SampleRate,
		BufferSize: time.Duration(cfg.Engine.BufferMs) * time.Millisecond,
		UserAgent:  cfg.Engine.UserAgent,
	}

	var err error
	output, err = engine.NewOtoOutput(engineCfg.SampleRate, engineCfg.BufferSize)
	if err != nil {
		log.Fatal().Msgf("failed to open audio output: %v", err)
	}

	opener = engine.NewStreamOpener(engineCfg, log.Component("opener"))
	player = engine.NewEngine(engineCfg, opener, output, log.Component("engine"))
	tracker = analytics.NewTracker(log.Component("analytics"))

	brokerClient, err = broker.NewBrokerClient(&broker.Config{
		Host:         cfg.Broker.Host,
		Port:         cfg.Broker.Port,
		StateTopic:   cfg.Broker.StateTopic,
		CommandTopic: cfg.Broker.CommandTopic,
		ClientID:     cfg.Broker.ClientID,
		UserName:     cfg.Broker.UserName,
		Password:     cfg.Broker.Password,
	}, log.Component("broker"))
	if errors.Is(err, broker.ErrNotConfigured) {
		log.Info().Msg("broker is not configured, state will not be published")
	} else if err != nil {
		log.Fatal().Msg(err.Error())
	}

	if cfg.UDS.ServerSocket != "" {
		udsServer, err = uds.NewUDSServer(&uds.ServerConfig{
			SocketPath:     cfg.UDS.ServerSocket,
			CommandTimeout: cfg.UDS.CommandTimeoutSec,
		}, log.Component("uds"))
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
	}
}

func initUseCases() {
	engineCfg := &engine.Config{
		SampleRate: cfg.Engine.SampleRate,
		UserAgent:  cfg.Engine.UserAgent,
	}

	playbackUseCase = usecase.NewPlaybackUseCase(&usecase.PlaybackConfig{
		Catalog: cfg.Stations,
		Cascade: &usecase.CascadeConfig{
			AttemptTimeout: time.Duration(cfg.Engine.AttemptTimeoutSec) * time.Second,
		},
	}, player, tracker, usecase.NewMessages(cfg.Language), log.Component("playback"))

	probeUseCase = usecase.NewProbeUseCase(&usecase.ProbeConfig{
		Timeout:     time.Duration(cfg.Probe.TimeoutSec) * time.Second,
		Concurrency: cfg.Probe.Concurrency,
		UserAgent:   cfg.Engine.UserAgent,
	}, func() usecase.Engine {
		return engine.NewMutedEngine(engineCfg, opener, log.Component("probe-engine"))
	}, log.Component("probe"))

	commandUseCase = usecase.NewCommandUseCase(playbackUseCase, probeUseCase, log.Component("command"))
	uds.SetCommandUseCase(commandUseCase)

	if brokerClient != nil {
		usecase.SetStateTopic(cfg.Broker.StateTopic)
		usecase.SetCommandTopic(cfg.Broker.CommandTopic)

		var err error
		brokerUseCase, err = usecase.NewBrokerUseCase(brokerClient, playbackUseCase, commandUseCase, log.Component("broker"))
		if err != nil {
			log.Fatal().Msgf("failed to connect to broker: %v", err)
		}
	}

	if cfg.HTTP.Addr != "" {
		restServer = rest.NewRESTServer(&rest.ServerConfig{
			Addr:      cfg.HTTP.Addr,
			DebugMode: cfg.HTTP.Debug,
		}, rest.NewAPI(playbackUseCase, probeUseCase, tracker, log.Component("rest")), log.Component("http"))
		restServer.Start()
	}

	log.Info().Msgf("nexus radio started with %d stations", len(cfg.Stations))
}

func shutdown() {
	if r := recover(); r != nil {
		fmt.Println(r)
	}
	_ = pidfile.Remove(cfg.PidFile)

	udsServer.Close()
	if brokerUseCase != nil {
		brokerUseCase.Close()
	}
	brokerClient.Close()

	// closing playback ends the event streams, so the http server drains quickly
	if playbackUseCase != nil {
		if err := playbackUseCase.Close(); err != nil {
			log.Error().Msgf("failed to close playback: %v", err)
		}
	}
	restServer.Close()
}
