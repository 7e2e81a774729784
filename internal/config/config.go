// Package config loads server settings from a .env file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/DoyleJ11/labcards/internal/engine"
)

type Config struct {
	HTTPAddr       string        `env:"LABCARDS_HTTP_ADDR"       envDefault:":5000"`
	Port           string        `env:"PORT"`
	MaterialsDir   string        `env:"LABCARDS_MATERIALS_DIR"   envDefault:"materials"`
	StaticDir      string        `env:"LABCARDS_STATIC_DIR"      envDefault:"static"`
	Mode           string        `env:"LABCARDS_MODE"            envDefault:"suit-sequence"`
	OutboxSize     int           `env:"LABCARDS_OUTBOX_SIZE"     envDefault:"16"`
	WriteTimeout   time.Duration `env:"LABCARDS_WRITE_TIMEOUT"   envDefault:"3s"`
	PingInterval   time.Duration `env:"LABCARDS_PING_INTERVAL"   envDefault:"25s"`
	AllowedOrigins []string      `env:"LABCARDS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	Dev            bool          `env:"LABCARDS_DEV"`
}

// Parse loads envFile if it exists, then the environment, then flags.
func Parse(fset *flag.FlagSet, args []string, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	// PORT only applies when no address was given explicitly.
	if _, set := os.LookupEnv("LABCARDS_HTTP_ADDR"); !set && cfg.Port != "" {
		cfg.HTTPAddr = ":" + cfg.Port
	}

	fset.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fset.StringVar(&cfg.MaterialsDir, "materials", cfg.MaterialsDir, "directory holding cards.json or cards.tsv and instructions.docx")
	fset.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory holding index.html and assets")
	fset.StringVar(&cfg.Mode, "mode", cfg.Mode, "draw mode: suit-sequence or sequential")
	fset.IntVar(&cfg.OutboxSize, "outbox", cfg.OutboxSize, "per participant event buffer")
	fset.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per message delivery timeout")
	fset.DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "websocket keepalive interval")
	fset.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging")
	if args == nil {
		args = []string{}
	}
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := engine.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.OutboxSize <= 0 {
		return fmt.Errorf("outbox size must be positive, got %d", c.OutboxSize)
	}
	if c.WriteTimeout <= 0 || c.PingInterval <= 0 {
		return errors.New("write timeout and ping interval must be positive")
	}
	return nil
}

func (c Config) DrawMode() engine.Mode {
	m, _ := engine.ParseMode(c.Mode)
	return m
}

// InstructionsPath is where the downloadable rules document lives.
func (c Config) InstructionsPath() string {
	return filepath.Join(c.MaterialsDir, "instructions.docx")
}
