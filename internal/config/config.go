// Package config loads mixdesk settings from a YAML file with environment
// overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jwulff/mixdesk/internal/backend"
	"github.com/jwulff/mixdesk/internal/session"
)

// LogLevel is a textual slog level.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a known level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// PromptMode selects a starter prompt for the analysis.
type PromptMode string

const (
	ModeEngineer PromptMode = "engineer"
	ModeProducer PromptMode = "producer"
)

// IsValid reports whether m is a known mode.
func (m PromptMode) IsValid() bool {
	return m == ModeEngineer || m == ModeProducer
}

// StarterPrompts seed the prompt input per mode.
var StarterPrompts = map[PromptMode]string{
	ModeEngineer: "How can I improve the mix and master of this section? Point out problem frequencies and dynamics issues.",
	ModeProducer: "Suggest additional parts, layers and arrangement ideas for this section, with specific notes and durations.",
}

// Config is the root configuration.
type Config struct {
	BackendURL     string        `yaml:"backend_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Model          ModelConfig   `yaml:"model"`
	Mode           PromptMode    `yaml:"mode"`
	Prompt         string        `yaml:"prompt"`
	LogLevel       LogLevel      `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	ArchivePath    string        `yaml:"archive_path"`
	FFplayPath     string        `yaml:"ffplay_path"`
	FFmpegPath     string        `yaml:"ffmpeg_path"`
	ExportDir      string        `yaml:"export_dir"`
}

// ModelConfig is the YAML form of [session.ModelConfig].
type ModelConfig struct {
	ID             string  `yaml:"id"`
	Temperature    float64 `yaml:"temperature"`
	ThinkingBudget int     `yaml:"thinking_budget"`
}

// Session converts to the orchestration type.
func (m ModelConfig) Session() session.ModelConfig {
	return session.ModelConfig{
		ModelID:        session.ModelID(m.ID),
		Temperature:    m.Temperature,
		ThinkingBudget: m.ThinkingBudget,
	}
}

// StartPrompt returns the configured prompt, or the mode's starter prompt.
func (c *Config) StartPrompt() string {
	if c.Prompt != "" {
		return c.Prompt
	}
	return StarterPrompts[c.Mode]
}

// Default returns the built-in configuration.
func Default() *Config {
	def := session.DefaultModelConfig()
	return &Config{
		BackendURL: backend.DefaultURL,
		Model: ModelConfig{
			ID:             string(def.ModelID),
			Temperature:    def.Temperature,
			ThinkingBudget: def.ThinkingBudget,
		},
		Mode:        ModeEngineer,
		LogLevel:    LogInfo,
		LogFile:     filepath.Join(stateDir(), "mixdesk.log"),
		ArchivePath: filepath.Join(stateDir(), "archive.sqlite"),
		FFplayPath:  "ffplay",
		FFmpegPath:  "ffmpeg",
		ExportDir:   ".",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mixdesk", "config.yaml")
}

// stateDir holds the log file and archive.
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "mixdesk")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "mixdesk")
}
