// Package config loads application settings from, in order of
// precedence, environment variables, an optional config file, and
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the resolved application configuration
type Settings struct {
	// Directories
	DataDir       string `mapstructure:"data_dir"`
	MemoryDir     string `mapstructure:"memory_dir"`
	SessionLogDir string `mapstructure:"session_log_dir"`
	MonitorDir    string `mapstructure:"monitor_dir"`
	LogFile       string `mapstructure:"log_file"`

	// Model access
	MistralAPIKey string `mapstructure:"mistral_api_key"`
	TextModel     string `mapstructure:"text_model"`
	VisionModel   string `mapstructure:"vision_model"`

	// Conversation tuning
	MaxIterations     int `mapstructure:"max_iterations"`
	MaxRecent         int `mapstructure:"max_recent"`
	CompressThreshold int `mapstructure:"compress_threshold"`
	KeepRecent        int `mapstructure:"keep_recent"`

	// Rate limiting
	TextInterval   time.Duration `mapstructure:"text_interval"`
	VisionInterval time.Duration `mapstructure:"vision_interval"`

	// Background monitoring
	MonitorTick time.Duration `mapstructure:"monitor_tick"`

	// Memory search scoring
	Scoring ScoringSettings `mapstructure:"scoring"`

	Debug bool `mapstructure:"debug"`
}

// ScoringSettings are the relevance-scoring weights for memory search
type ScoringSettings struct {
	ExactMatch     float64 `mapstructure:"exact_match"`
	WordOverlap    float64 `mapstructure:"word_overlap"`
	TagMatch       float64 `mapstructure:"tag_match"`
	ContextMatch   float64 `mapstructure:"context_match"`
	FuzzyMatch     float64 `mapstructure:"fuzzy_match"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	MinScore       float64 `mapstructure:"min_score"`
}

// Load resolves settings. A config file at ~/.miniagent/config.yaml is
// used when present; MINIAGENT_* environment variables override it.
func Load() (*Settings, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".miniagent")

	v.SetDefault("data_dir", dataDir)
	v.SetDefault("memory_dir", filepath.Join(dataDir, "memory"))
	v.SetDefault("session_log_dir", filepath.Join(dataDir, "sessions"))
	v.SetDefault("monitor_dir", filepath.Join(dataDir, "monitor"))
	v.SetDefault("log_file", filepath.Join(dataDir, "miniagent.log"))
	v.SetDefault("text_model", "mistral-medium-latest")
	v.SetDefault("vision_model", "pixtral-12b-latest")
	v.SetDefault("max_iterations", 10)
	v.SetDefault("max_recent", 30)
	v.SetDefault("compress_threshold", 40)
	v.SetDefault("keep_recent", 15)
	v.SetDefault("text_interval", 2*time.Second)
	v.SetDefault("vision_interval", 3*time.Second)
	v.SetDefault("monitor_tick", time.Minute)
	v.SetDefault("scoring.exact_match", 10.0)
	v.SetDefault("scoring.word_overlap", 8.0)
	v.SetDefault("scoring.tag_match", 4.0)
	v.SetDefault("scoring.context_match", 2.0)
	v.SetDefault("scoring.fuzzy_match", 2.0)
	v.SetDefault("scoring.fuzzy_threshold", 0.6)
	v.SetDefault("scoring.min_score", 0.5)
	v.SetDefault("debug", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MINIAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// The API key also comes from the provider's conventional variable.
	if settings.MistralAPIKey == "" {
		settings.MistralAPIKey = os.Getenv("MISTRAL_API_KEY")
	}

	return &settings, nil
}
