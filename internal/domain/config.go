package domain

import "time"

// Config is the root configuration tree, unmarshaled by viper in
// internal/config. Shaped after the teacher's nested mapstructure config
// (one sub-struct per concern) rather than one flat struct.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Server   ServerConfig   `mapstructure:"server"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig tunes the C2-C8 pipeline itself.
type PipelineConfig struct {
	// LLMTimeout bounds the Tier-3 LLMClient.extract call (spec §5,
	// default 5s).
	LLMTimeout time.Duration `mapstructure:"llm_timeout"`
	// EscalationLatencyBudget holds C5's latency budget (spec §4.4, 100ms).
	// It is loaded from config only; the pipeline does not read it and
	// does not check C5's time against it.
	EscalationLatencyBudget time.Duration `mapstructure:"escalation_latency_budget"`
	// ComplexityEscalationThreshold is the complexity score above which
	// C5's high-complexity trigger fires (spec §4.4, 7.0).
	ComplexityEscalationThreshold float64 `mapstructure:"complexity_escalation_threshold"`
	// DefaultValidationMode is used when the caller of Convert supplies
	// none (spec §6).
	DefaultValidationMode string `mapstructure:"default_validation_mode"`
}

// ServerConfig configures the thin gin demonstration host (cmd/server).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MCPConfig configures the MCP stdio demonstration host (cmd/mcp-server).
type MCPConfig struct {
	ToolName        string `mapstructure:"tool_name"`
	ProtocolVersion string `mapstructure:"protocol_version"`
}

// CacheConfig tunes internal/metrics' optional Redis-backed counters.
// PatternCacheSize is loaded but not passed to internal/catalog, whose
// scan cache always uses its built-in default size.
type CacheConfig struct {
	PatternCacheSize int    `mapstructure:"pattern_cache_size"`
	RedisURL         string `mapstructure:"redis_url"`
	MetricsEnabled   bool   `mapstructure:"metrics_enabled"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
