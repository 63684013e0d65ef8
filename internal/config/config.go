package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JudgeURL    string

	HeartbeatInterval time.Duration
	StaleMultiple     int
	ReconnectGrace    time.Duration
	VoteWindow        time.Duration
	JudgeTimeout      time.Duration
	BasePoints        int
}

// Load reads the environment, after merging a .env file if one is
// present. Everything has a default; a fully empty environment yields
// a runnable dev config (no database, accept-all judge).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        envStr("ADDR", ":8080"),
		DatabaseURL: envStr("DATABASE_URL", ""),
		JudgeURL:    envStr("JUDGE_URL", ""),
		BasePoints:  100,
	}

	var err error
	if cfg.HeartbeatInterval, err = envDur("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StaleMultiple, err = envInt("HEARTBEAT_STALE_MULTIPLE", 2); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectGrace, err = envDur("RECONNECT_GRACE", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.VoteWindow, err = envDur("REMATCH_VOTE_WINDOW", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.JudgeTimeout, err = envDur("JUDGE_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BasePoints, err = envInt("BASE_POINTS", 100); err != nil {
		return Config{}, err
	}

	if cfg.StaleMultiple < 1 {
		return Config{}, fmt.Errorf("HEARTBEAT_STALE_MULTIPLE must be >= 1, got %d", cfg.StaleMultiple)
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
