// Package config loads domain.Config via Viper, layering defaults, an
// optional config file, and NLFHIR_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

// Manager owns the loaded configuration tree.
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration from defaults, ./config.yaml (if
// present), and the environment, in that order of increasing precedence.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/orderpipeline/")

	viper.SetEnvPrefix("NLFHIR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = cfg
	return nil
}

func (m *Manager) setDefaults() {
	// Pipeline defaults, per spec §4.4/§5/§6.
	viper.SetDefault("pipeline.llm_timeout", "5s")
	viper.SetDefault("pipeline.escalation_latency_budget", "100ms")
	viper.SetDefault("pipeline.complexity_escalation_threshold", 7.0)
	viper.SetDefault("pipeline.default_validation_mode", "strict")

	// Server defaults.
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// MCP defaults.
	viper.SetDefault("mcp.tool_name", "convert_clinical_order")
	viper.SetDefault("mcp.protocol_version", "2024-11-05")

	// Cache defaults.
	viper.SetDefault("cache.pattern_cache_size", 256)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.metrics_enabled", false)

	// Logging defaults.
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration tree.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetPipelineConfig returns the pipeline tuning knobs.
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// GetServerConfig returns the HTTP host configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetMCPConfig returns the MCP host configuration.
func (m *Manager) GetMCPConfig() *domain.MCPConfig {
	return &m.config.MCP
}

// GetCacheConfig returns the cache/metrics configuration.
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// Reload re-reads configuration from all sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for values the pipeline
// cannot safely run with.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	validModes := map[string]bool{"strict": true, "permissive": true, "disabled": true}
	if !validModes[strings.ToLower(cfg.Pipeline.DefaultValidationMode)] {
		return fmt.Errorf("invalid default validation mode: %s", cfg.Pipeline.DefaultValidationMode)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	if cfg.Pipeline.LLMTimeout <= 0 {
		return fmt.Errorf("pipeline.llm_timeout must be positive")
	}

	return nil
}
