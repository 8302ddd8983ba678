package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nexus-radio/adapter/engine"
	"nexus-radio/business/entity"
	"nexus-radio/business/usecase"
	"nexus-radio/pkg/logger"
)

type urlList []string

func (l *urlList) String() string {
	return strings.Join(*l, ",")
}

func (l *urlList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type catalogFile struct {
	Stations entity.Catalog `json:"stations"`
}

func main() {
	var urls urlList
	flag.Var(&urls, "url", "stream url to probe, may be repeated")
	configPath := flag.String("config", "nexus-radio-back.json", "config file with the station catalog")
	stationID := flag.String("station", "", "probe every url of this station")
	mode := flag.String("mode", "all", "all or first")
	timeout := flag.Int("timeout", 10, "per url timeout in seconds")
	concurrency := flag.Int("concurrency", 8, "urls probed at once")
	noEngine := flag.Bool("no-engine", false, "do not fall back to a muted playback probe")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.NewZerolog(logger.ZeroConfig{
		Level:           level,
		TimeFieldFormat: time.RFC3339,
		PrettyPrint:     true,
		DisableSampling: true,
	})

	if *stationID != "" {
		station, err := findStation(*configPath, *stationID)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
		urls = append(urls, usecase.Candidates(station)...)
	}
	if len(urls) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var factory usecase.EngineFactory
	if !*noEngine {
		opener := engine.NewStreamOpener(nil, log)
		factory = func() usecase.Engine {
			return engine.NewMutedEngine(nil, opener, log)
		}
	}

	probe := usecase.NewProbeUseCase(&usecase.ProbeConfig{
		Timeout:     time.Duration(*timeout) * time.Second,
		Concurrency: *concurrency,
	}, factory, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out interface{}
	switch *mode {
	case "all":
		out = probe.TestMultipleStreams(ctx, urls)
	case "first":
		res := probe.FindWorkingStream(ctx, urls)
		if res == nil {
			fmt.Fprintln(os.Stderr, "no working stream")
			os.Exit(1)
		}
		out = res
	default:
		log.Fatal().Msgf("unknown mode %s", *mode)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func findStation(path, id string) (*entity.Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	station, _ := f.Stations.Find(id)
	if station == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownStation, id)
	}
	return station, nil
}
