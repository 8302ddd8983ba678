package main

import (
	"encoding/json"
	"os"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	defaultConfigPath = "nexus-radio-back.json"
	defaultPidFile    = "/tmp/nexus-radio.pid"
)

type Config struct {
	PidFile  string         `json:"pid_file"`
	Language string         `json:"language"`
	Broker   *BrokerConfig  `json:"broker"`
	UDS      *UDSConfig     `json:"uds"`
	HTTP     *HTTPConfig    `json:"http"`
	Engine   *EngineConfig  `json:"engine"`
	Probe    *ProbeConfig   `json:"probe"`
	Stations entity.Catalog `json:"stations"`
	Logger   *LoggerConfig  `json:"logger"`
}

type LoggerConfig struct {
	Level             string `json:"level"`
	TimeFieldFormat   string `json:"time_field_format"`
	PrettyPrint       bool   `json:"pretty_print"`
	DisableSampling   bool   `json:"disable_sampling"`
	RedirectStdLogger bool   `json:"redirect_std_logger"`
	ErrorStack        bool   `json:"error_stack"`
	ShowCaller        bool   `json:"show_caller"`
}

type BrokerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic"`
	ClientID     string `json:"client_id"`
	UserName     string `json:"user_name"`
	Password     string `json:"password"`
}

type UDSConfig struct {
	ServerSocket      string `json:"server_socket"`
	CommandTimeoutSec int    `json:"command_timeout_sec"`
}

type HTTPConfig struct {
	Addr  string `json:"addr"`
	Debug bool   `json:"debug"`
}

type EngineConfig struct {
	SampleRate        int    `json:"sample_rate"`
	BufferMs          int    `json:"buffer_ms"`
	AttemptTimeoutSec int    `json:"attempt_timeout_sec"`
	UserAgent         string `json:"user_agent"`
}

type ProbeConfig struct {
	TimeoutSec  int `json:"timeout_sec"`
	Concurrency int `json:"concurrency"`
}

var (
	cfg = &Config{}
)

func init() {
	log := logger.NewDefaultZerolog()

	path, ok := os.LookupEnv("NEXUS_RADIO_BACK_CONFIG")
	if !ok {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		log.Fatal().Msg(err.Error())
	}

	cfg.applyDefaults()

	if err := cfg.Stations.Validate(); err != nil {
		log.Fatal().Msgf("invalid station catalog: %v", err)
	}
}

func (c *Config) applyDefaults() {
	if c.PidFile == "" {
		c.PidFile = defaultPidFile
	}
	if c.Broker == nil {
		c.Broker = &BrokerConfig{}
	}
	if c.UDS == nil {
		c.UDS = &UDSConfig{}
	}
	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.Engine == nil {
		c.Engine = &EngineConfig{}
	}
	if c.Probe == nil {
		c.Probe = &ProbeConfig{}
	}
	if c.Logger == nil {
		c.Logger = &LoggerConfig{Level: "info", PrettyPrint: true}
	}
}
