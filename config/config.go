package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"avatarsync/game"
	"avatarsync/protocol"
)

const envPrefix = "AVATARSYNC_"

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type Config struct {
	Addr          string
	SimTickHz     int
	BroadcastHz   int
	ClientInputHz int
	InputBurst    int
	Variant       string
	PalettePath   string // empty uses the embedded palette
	Tuning        game.Tuning
	Logging       LoggingConfig
	WriteTimeout  time.Duration
	PongTimeout   time.Duration
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		SimTickHz:     protocol.SimTickHz,
		BroadcastHz:   protocol.BroadcastHz,
		ClientInputHz: protocol.ClientInputHz,
		InputBurst:    protocol.ClientInputHz / 2,
		Variant:       game.VariantDancer,
		Tuning:        game.DefaultTuning(),
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		WriteTimeout:  10 * time.Second,
		PongTimeout:   60 * time.Second,
	}
}

// Load reads the optional dotenv files (".env" when none are given) into
// the process environment and applies AVATARSYNC_* overrides on top of
// Default. A missing dotenv file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv applies overrides looked up through lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int, least int) {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < least {
			errs = append(errs, fmt.Errorf("invalid %s%s=%q", envPrefix, key, v))
			return
		}
		*dst = n
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s=%q: %w", envPrefix, key, v, err))
			return
		}
		*dst = f
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s=%q: %w", envPrefix, key, v, err))
			return
		}
		*dst = d
	}

	str("ADDR", &cfg.Addr)
	str("VARIANT", &cfg.Variant)
	str("PALETTE", &cfg.PalettePath)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	integer("SIM_TICK_HZ", &cfg.SimTickHz, 1)
	integer("BROADCAST_HZ", &cfg.BroadcastHz, 1)
	integer("CLIENT_INPUT_HZ", &cfg.ClientInputHz, 1)
	integer("INPUT_BURST", &cfg.InputBurst, 1)
	integer("BLEND_SHAPES", &cfg.Tuning.BlendShapeCount, 0) // 0: a mesh without blend shapes
	float("SPEED", &cfg.Tuning.Speed)
	float("FLOOR_Y", &cfg.Tuning.FloorY)
	float("CORRECTION_GAIN", &cfg.Tuning.CorrectionGain)
	float("TURN_RATE", &cfg.Tuning.TurnRate)
	duration("WRITE_TIMEOUT", &cfg.WriteTimeout)
	duration("PONG_TIMEOUT", &cfg.PongTimeout)

	if cfg.SimTickHz%cfg.BroadcastHz != 0 {
		errs = append(errs, fmt.Errorf("sim tick rate %d is not a multiple of broadcast rate %d", cfg.SimTickHz, cfg.BroadcastHz))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GetEnvVariable returns the non-empty value of v.
func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}

	return b, nil
}
