package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type AnalysisConfig struct {
	Command       string        `env:"ANALYSIS_COMMAND, default=python ./esports_processor_simple.py"`
	Timeout       time.Duration `env:"ANALYSIS_TIMEOUT, default=0s"`
	ReportCommand string        `env:"REPORT_COMMAND, default=python ./pdf_generator.py"`
	ReportTimeout time.Duration `env:"REPORT_TIMEOUT, default=2m"`
	FFmpegPath    string        `env:"FFMPEG_PATH, default=ffmpeg"`
}

func NewAnalysisConfigFromEnv() (*AnalysisConfig, error) {
	var cfg AnalysisConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
