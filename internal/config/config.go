package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quizboard"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"127.0.0.1:8844"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"10s"`

	Store Store
	Audio Audio
	Game  Game
}

// Store locates the two sqlite files backing the board.
type Store struct {
	DataDir    string `env:"DATA_DIR" envDefault:"data"`
	StateFile  string `env:"STATE_FILE" envDefault:"state.db"`
	AssetsFile string `env:"ASSETS_FILE" envDefault:"assets.db"`
}

// StatePath is the structured store location.
func (s Store) StatePath() string {
	return filepath.Join(s.DataDir, s.StateFile)
}

// AssetsPath is the blob store location.
func (s Store) AssetsPath() string {
	return filepath.Join(s.DataDir, s.AssetsFile)
}

// Audio configures the playback device.
type Audio struct {
	Enabled    bool `env:"AUDIO_ENABLED" envDefault:"true"`
	SampleRate int  `env:"AUDIO_SAMPLE_RATE" envDefault:"44100"`
}

// Game groups gameplay policy.
type Game struct {
	// AllowNoWinnerConfirm lets the operator close a reveal with no team
	// selected; the tile is consumed without awarding points.
	AllowNoWinnerConfirm bool `env:"ALLOW_NO_WINNER_CONFIRM" envDefault:"true"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
