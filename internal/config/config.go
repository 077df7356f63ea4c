package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "playbook.cfg.json"

// EditorConfig holds defaults for new projects and load limits.
type EditorConfig struct {
	DefaultDuration int    `json:"defaultDuration" mapstructure:"defaultDuration"`
	DefaultSport    string `json:"defaultSport" mapstructure:"defaultSport"`
	MaxProjectBytes int    `json:"maxProjectBytes" mapstructure:"maxProjectBytes"`
}

// PlaybackConfig holds animation clock settings.
type PlaybackConfig struct {
	TickInterval time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// StorageConfig selects and configures the project storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// AutosaveConfig holds local autosave settings.
type AutosaveConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Interval     time.Duration `json:"interval" mapstructure:"interval"`
	Dir          string        `json:"dir" mapstructure:"dir"`
	QuotaBytes   int64         `json:"quotaBytes" mapstructure:"quotaBytes"`
	MaxSnapshots int           `json:"maxSnapshots" mapstructure:"maxSnapshots"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// not an error; the defaults and environment apply.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("PLAYBOOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("editor.defaultDuration", 2000)
	viper.SetDefault("editor.defaultSport", "rugby-union")
	viper.SetDefault("editor.maxProjectBytes", 1<<20)

	viper.SetDefault("playback.tickInterval", "16ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./projects")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./playbook.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "playbook")

	viper.SetDefault("autosave.enabled", true)
	viper.SetDefault("autosave.interval", "30s")
	viper.SetDefault("autosave.dir", "./autosave")
	viper.SetDefault("autosave.quotaBytes", 5<<20)
	viper.SetDefault("autosave.maxSnapshots", 5)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "playbook")
	viper.SetDefault("otel.batchTimeout", "5s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetEditorConfig returns editor defaults.
func GetEditorConfig() EditorConfig {
	return EditorConfig{
		DefaultDuration: viper.GetInt("editor.defaultDuration"),
		DefaultSport:    viper.GetString("editor.defaultSport"),
		MaxProjectBytes: viper.GetInt("editor.maxProjectBytes"),
	}
}

// GetPlaybackConfig returns the animation clock settings.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		TickInterval: viper.GetDuration("playback.tickInterval"),
	}
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetAutosaveConfig returns the autosave configuration.
func GetAutosaveConfig() AutosaveConfig {
	return AutosaveConfig{
		Enabled:      viper.GetBool("autosave.enabled"),
		Interval:     viper.GetDuration("autosave.interval"),
		Dir:          viper.GetString("autosave.dir"),
		QuotaBytes:   viper.GetInt64("autosave.quotaBytes"),
		MaxSnapshots: viper.GetInt("autosave.maxSnapshots"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
	}
}
