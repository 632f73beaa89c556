package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the process-wide deskbot configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`
	// BaseDir holds the logs/ directory. Empty means the job file's directory.
	BaseDir string `json:"base_dir"`
	JobFile string `json:"job_file"`
	// Corner is the fail-safe tolerance in pixels around (0,0).
	Corner  int  `json:"failsafe_corner"`
	History bool `json:"history"`
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(deskbotDir(), "deskbot.db"),
		LogLevel: "info",
		JobFile:  "config.yaml",
		History:  true,
	}
}

func deskbotDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deskbot"
	}
	return filepath.Join(home, ".deskbot")
}

func settingsPath() string {
	return filepath.Join(deskbotDir(), "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := getenv("DESKBOT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("DESKBOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("DESKBOT_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := getenv("DESKBOT_JOB_FILE"); v != "" {
		cfg.JobFile = v
	}
	if v := getenv("DESKBOT_FAILSAFE_CORNER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Corner = n
		}
	}
	if v := getenv("DESKBOT_HISTORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.History = b
		}
	}

	return cfg
}

// logBaseDir returns where run logs go for the given job file.
func (c Config) logBaseDir(jobPath string) string {
	if c.BaseDir != "" {
		return c.BaseDir
	}
	if jobPath == "" {
		return "."
	}
	return filepath.Dir(jobPath)
}
