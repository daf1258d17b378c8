package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database     DatabaseConfig
	GeminiAPIKey string
	GeminiModel  string
	Retrieval    RetrievalConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool
}

// RetrievalConfig holds tuning knobs for the retrieval pipeline.
type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
	CacheSize           int
}

var globalConfig *Config

// Load builds the configuration from defaults, an optional config file and
// GOVHUB_* environment variables. Command-line flags override the result in
// cmd/root.go.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.dialect", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.similarity_threshold", 0.5)
	v.SetDefault("retrieval.cache_size", 100)

	v.SetEnvPrefix("GOVHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Dialect:                        v.GetString("database.dialect"),
			Host:                           v.GetString("database.host"),
			Port:                           v.GetInt("database.port"),
			User:                           v.GetString("database.user"),
			Password:                       v.GetString("database.password"),
			DBName:                         v.GetString("database.name"),
			SSLMode:                        v.GetString("database.sslmode"),
			CloudSQLInstanceConnectionName: v.GetString("database.cloudsql_instance_connection_name"),
			UsePrivateIP:                   v.GetBool("database.cloudsql_use_private_ip"),
		},
		GeminiAPIKey: v.GetString("gemini_api_key"),
		GeminiModel:  v.GetString("gemini_model"),
		Retrieval: RetrievalConfig{
			TopK:                v.GetInt("retrieval.top_k"),
			SimilarityThreshold: v.GetFloat64("retrieval.similarity_threshold"),
			CacheSize:           v.GetInt("retrieval.cache_size"),
		},
	}
	return cfg, nil
}

// GetConfig returns the global configuration, or a default one if none was set.
func GetConfig() *Config {
	if globalConfig != nil {
		return globalConfig
	}
	cfg, _ := Load("")
	return cfg
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	globalConfig = cfg
}
