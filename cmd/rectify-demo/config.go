package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultFrameRateNum    = 25
	defaultFrameRateDen    = 1
	defaultMaxQueueFrames  = 30
	defaultMaxMissed       = 30
	defaultAudioFrameTicks = 3840
	defaultRunDuration     = 10 * time.Second
)

// Config is the demo harness's fully-resolved configuration, staged
// through yamlConfig the way bridge.LoadConfig stages through yamlConfig
// before producing a typed bridge.Config.
type Config struct {
	FrameRateNum int64
	FrameRateDen int64

	MaxQueueFrames int
	MaxMissed      int

	Ports       []PortConfig
	RunDuration time.Duration

	MetricsAddr string
}

// PortConfig describes one simulated input: its media kind and the
// jitter/loss/reorder knobs the generator applies to it.
type PortConfig struct {
	Kind           string // "video", "audio" or "raw"
	FrameTicks     int64  // nominal inter-frame media-time delta
	JitterTicks    int64  // uniform +/- jitter applied to each push
	DropProbPct    int    // percent chance a frame is dropped before push
	ReorderWindow  int    // max lookahead frames a push may be reordered within
}

type yamlConfig struct {
	FrameRate struct {
		Num int64 `yaml:"num"`
		Den int64 `yaml:"den"`
	} `yaml:"frame_rate"`
	Queue struct {
		MaxFrames int `yaml:"max_frames"`
		MaxMissed int `yaml:"max_missed"`
	} `yaml:"queue"`
	Ports []struct {
		Kind          string `yaml:"kind"`
		FrameTicks    int64  `yaml:"frame_ticks"`
		JitterTicks   int64  `yaml:"jitter_ticks"`
		DropProbPct   int    `yaml:"drop_prob_pct"`
		ReorderWindow int    `yaml:"reorder_window"`
	} `yaml:"ports"`
	RunSeconds  float64 `yaml:"run_seconds"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

// LoadConfig reads a yaml demo config from path, falling back to a
// single-video-port default scenario when path is empty.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		FrameRateNum:   defaultFrameRateNum,
		FrameRateDen:   defaultFrameRateDen,
		MaxQueueFrames: defaultMaxQueueFrames,
		MaxMissed:      defaultMaxMissed,
		RunDuration:    defaultRunDuration,
		MetricsAddr:    ":2112",
		Ports: []PortConfig{
			{Kind: "video", FrameTicks: 7200, JitterTicks: 200, ReorderWindow: 2},
		},
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.FrameRate.Num > 0 {
		cfg.FrameRateNum = yc.FrameRate.Num
	}
	if yc.FrameRate.Den > 0 {
		cfg.FrameRateDen = yc.FrameRate.Den
	}
	if yc.Queue.MaxFrames > 0 {
		cfg.MaxQueueFrames = yc.Queue.MaxFrames
	}
	if yc.Queue.MaxMissed > 0 {
		cfg.MaxMissed = yc.Queue.MaxMissed
	}
	if yc.RunSeconds > 0 {
		cfg.RunDuration = time.Duration(yc.RunSeconds * float64(time.Second))
	}
	if yc.MetricsAddr != "" {
		cfg.MetricsAddr = yc.MetricsAddr
	}

	if len(yc.Ports) > 0 {
		ports := make([]PortConfig, 0, len(yc.Ports))
		for _, p := range yc.Ports {
			if p.Kind != "video" && p.Kind != "audio" && p.Kind != "raw" {
				return Config{}, fmt.Errorf("ports[].kind must be video, audio, or raw, got %q", p.Kind)
			}
			if p.FrameTicks <= 0 {
				return Config{}, errors.New("ports[].frame_ticks must be > 0")
			}
			ports = append(ports, PortConfig{
				Kind:          p.Kind,
				FrameTicks:    p.FrameTicks,
				JitterTicks:   p.JitterTicks,
				DropProbPct:   p.DropProbPct,
				ReorderWindow: p.ReorderWindow,
			})
		}
		cfg.Ports = ports
	}

	if cfg.Ports[0].Kind != "video" {
		return Config{}, errors.New("ports[0].kind must be video (the rectifier's master port)")
	}

	return cfg, nil
}
