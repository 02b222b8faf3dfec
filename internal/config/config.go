// ABOUTME: agora configuration management
// ABOUTME: Handles storage paths, logging, job schedule and site settings

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// DefaultJobSchedule is how often the job runner looks for due jobs.
const DefaultJobSchedule = "@every 10s"

// SiteSettings are the tunable forum rules.
type SiteSettings struct {
	MinTopicTitleLength          int  `json:"min_topic_title_length"`
	MaxTopicTitleLength          int  `json:"max_topic_title_length"`
	MinPrivateMessageTitleLength int  `json:"min_private_message_title_length"`
	AllowDuplicateTopicTitles    bool `json:"allow_duplicate_topic_titles"`
	TitlePrettify                bool `json:"title_prettify"`
	AllowUppercasePosts          bool `json:"allow_uppercase_posts"`
	TitleMinEntropy              int  `json:"title_min_entropy"`
	MaxWordLength                int  `json:"max_word_length"`
	MinTitleSimilarLength        int  `json:"min_title_similar_length"`
	SimilarTopicsLimit           int  `json:"similar_topics_limit"`
}

// DefaultSiteSettings returns the stock forum rules.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		MinTopicTitleLength:          15,
		MaxTopicTitleLength:          255,
		MinPrivateMessageTitleLength: 2,
		TitlePrettify:                true,
		TitleMinEntropy:              10,
		MaxWordLength:                30,
		MinTitleSimilarLength:        10,
		SimilarTopicsLimit:           5,
	}
}

// Config stores agora configuration
type Config struct {
	// DBPath is the SQLite database file (default: XDG data dir)
	DBPath string `json:"db_path,omitempty"`
	// QueuePath is the badger directory holding scheduled jobs
	QueuePath string `json:"queue_path,omitempty"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty"`
	// JobSchedule is a cron spec for the job runner tick
	JobSchedule string `json:"job_schedule,omitempty"`

	Site SiteSettings `json:"site"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		JobSchedule: DefaultJobSchedule,
		Site:        DefaultSiteSettings(),
	}
}

// GetConfigPath returns the config file path
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "agora", "config.json")
}

// GetDataDir returns the directory for the database and job queue.
func GetDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "agora")
}

// GetEnvPath returns the env file read beside the config file.
func GetEnvPath() string {
	return filepath.Join(filepath.Dir(GetConfigPath()), "agora.env")
}

// loadEnvFiles sets variables from ./.env and the agora.env file. Variables
// already in the environment are left alone.
func loadEnvFiles() error {
	for _, f := range []string{".env", GetEnvPath()} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads env files and the config from disk, layering them over the
// defaults.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	cfg := Default()
	data, err := os.ReadFile(GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.GetJobSchedule()); err != nil {
		return fmt.Errorf("invalid job_schedule %q: %w", c.JobSchedule, err)
	}
	s := c.Site
	if s.MinTopicTitleLength < 1 || s.MaxTopicTitleLength < s.MinTopicTitleLength {
		return fmt.Errorf("invalid topic title length bounds %d..%d", s.MinTopicTitleLength, s.MaxTopicTitleLength)
	}
	return nil
}

// GetDBPath returns the database path, preferring environment variable.
func (c *Config) GetDBPath() string {
	if p := os.Getenv("AGORA_DB"); p != "" {
		return p
	}
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(GetDataDir(), "agora.db")
}

// GetQueuePath returns the job queue directory, preferring environment variable.
func (c *Config) GetQueuePath() string {
	if p := os.Getenv("AGORA_QUEUE"); p != "" {
		return p
	}
	if c.QueuePath != "" {
		return c.QueuePath
	}
	return filepath.Join(GetDataDir(), "jobs")
}

// GetLogLevel returns the log level, preferring environment variable.
func (c *Config) GetLogLevel() string {
	if l := os.Getenv("AGORA_LOG_LEVEL"); l != "" {
		return l
	}
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

// GetJobSchedule returns the runner tick spec.
func (c *Config) GetJobSchedule() string {
	if c.JobSchedule != "" {
		return c.JobSchedule
	}
	return DefaultJobSchedule
}
